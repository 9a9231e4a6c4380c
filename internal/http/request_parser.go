// Package http provides the JSON API server and its handlers.
//
// This file implements utilities for parsing and validating request data:
// path ids, date-range and filter query parameters, and request bodies that
// may be JSON or plain text.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"walletlens/internal/core"
	"walletlens/internal/storage"
)

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

var errBadID = errors.New("invalid id")

// ParseID reads the numeric {id} path parameter.
func ParseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

// parseDay parses a YYYY-MM-DD value at midnight in loc.
func parseDay(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(s), loc)
}

// ParseWhen accepts RFC 3339 or YYYY-MM-DD. An empty value yields fallback.
func ParseWhen(s string, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := parseDay(s, fallback.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC 3339", s)
	}
	return t, nil
}

// ParseRangeParams extracts from/to (YYYY-MM-DD, both inclusive days). A
// missing bound falls back to the corresponding edge of now's month.
func ParseRangeParams(query url.Values, now time.Time) (core.DateRange, error) {
	month := core.MonthRange(now)
	r := month

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		from, err := parseDay(v, now.Location())
		if err != nil {
			return core.DateRange{}, fmt.Errorf("invalid from date %q", v)
		}
		r.Start = from
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		to, err := parseDay(v, now.Location())
		if err != nil {
			return core.DateRange{}, fmt.Errorf("invalid to date %q", v)
		}
		r.End = core.DayRange(to).End
	}

	if err := r.Validate(); err != nil {
		return core.DateRange{}, err
	}
	return r, nil
}

// ParseTransactionFilter reads from/to/category/type. Without from and to
// the filter is unbounded in time.
func ParseTransactionFilter(query url.Values, now time.Time) (storage.TransactionFilter, error) {
	var f storage.TransactionFilter

	if query.Get("from") != "" || query.Get("to") != "" {
		r, err := ParseRangeParams(query, now)
		if err != nil {
			return f, err
		}
		f.Range = r
	}

	f.Category = sanitizeInput(query.Get("category"))

	if v := strings.TrimSpace(query.Get("type")); v != "" {
		t, err := core.ParseTransactionType(v)
		if err != nil {
			return f, err
		}
		f.Type = t
	}
	return f, nil
}

// RequestBodyParser reads a request body once and decodes it as JSON or
// exposes it as plain text.
type RequestBodyParser struct {
	body        []byte
	contentType string
	err         error
}

// NewRequestBodyParser reads at most 1 MiB of the request body.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errors.New("request body too large")
	}
	return p
}

// IsJSON reports whether the body should be treated as JSON: either the
// Content-Type says so or the body starts like an object.
func (p *RequestBodyParser) IsJSON() bool {
	if strings.HasPrefix(strings.ToLower(p.contentType), "application/json") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(p.body), []byte("{"))
}

// Decode unmarshals the JSON body into v, rejecting unknown fields.
func (p *RequestBodyParser) Decode(v any) error {
	if p.err != nil {
		return p.err
	}
	if len(p.body) == 0 {
		return errors.New("empty request body")
	}
	dec := json.NewDecoder(bytes.NewReader(p.body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// Text returns the body as text.
func (p *RequestBodyParser) Text() (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return string(p.body), nil
}

// ContentType returns the Content-Type header value.
func (p *RequestBodyParser) ContentType() string {
	return p.contentType
}
