package http

import (
	"net/http"
	"strings"

	"walletlens/internal/log"
)

// handleParseReceipt accepts recognised receipt text, either as the raw body
// or as {"text": "..."}, and returns the guess plus a draft transaction.
// Nothing is stored.
func (s *Server) handleParseReceipt(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)

	var text string
	if p.IsJSON() {
		var req receiptRequest
		if err := p.Decode(&req); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
		text = req.Text
	} else {
		var err error
		if text, err = p.Text(); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
	}

	if strings.TrimSpace(text) == "" {
		UnprocessableEntityError("receipt text is empty").Write(w)
		return
	}

	guess := s.svc.Receipts.Parse(text)
	log.FromContext(r.Context()).WithComponent(log.ComponentReceipt).InfoContext(r.Context(), "Receipt parsed",
		log.FieldOperation, log.OpParse,
		"merchant_found", guess.Merchant != "",
		"amount_found", guess.Amount.IsPositive(),
		log.FieldCategory, guess.SuggestedCategory)

	NewJSONResponse().Body(newReceiptResponse(guess, s.now())).Write(w)
}
