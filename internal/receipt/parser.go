package receipt

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"walletlens/internal/core"
)

// Guess is what could be read from a receipt's text. Zero fields were not
// found.
type Guess struct {
	Amount            decimal.Decimal
	Merchant          string
	Date              time.Time
	Items             []string
	SuggestedCategory string
	RawText           string
}

// Parser turns recognised receipt text into a Guess
type Parser interface {
	Parse(text string) Guess
}

const (
	amountLines   = 20
	merchantLines = 5
	dateLines     = 10
	itemLines     = 30
)

// Patterns are tried in order; within a pattern the first matching line wins.
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bGRAND TOTAL\b.*?\$?([0-9]+\.[0-9]{2})`),
	regexp.MustCompile(`(?i)\bTOTAL\b.*?\$?([0-9]+\.[0-9]{2})`),
	regexp.MustCompile(`(?i)\bAMOUNT\b.*?\$?([0-9]+\.[0-9]{2})`),
	regexp.MustCompile(`\$([0-9]+\.[0-9]{2})`),
	regexp.MustCompile(`([0-9]+\.[0-9]{2})`),
}

var (
	ymdPattern = regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})`)
	dmyPattern = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})`)
	digit      = regexp.MustCompile(`[0-9]`)
)

var merchantStopWords = []string{"TOTAL", "RECEIPT", "THANK", "WELCOME", "DATE", "TIME"}

// RegexParser reads receipts with a fixed cascade of patterns and suggests a
// category from merchant keyword rules.
type RegexParser struct {
	rules Rules
	loc   *time.Location
}

var _ Parser = (*RegexParser)(nil)

func NewRegexParser(rules Rules) *RegexParser {
	return &RegexParser{rules: rules, loc: time.Local}
}

func (p *RegexParser) Parse(text string) Guess {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	g := Guess{
		Amount:   findAmount(head(lines, amountLines)),
		Merchant: findMerchant(head(lines, merchantLines)),
		Date:     findDate(head(lines, dateLines), p.loc),
		Items:    findItems(head(lines, itemLines)),
		RawText:  text,
	}
	g.SuggestedCategory = p.rules.Suggest(g.Merchant)
	return g
}

func head(lines []string, n int) []string {
	if len(lines) > n {
		return lines[:n]
	}
	return lines
}

func findAmount(lines []string) decimal.Decimal {
	for _, re := range amountPatterns {
		for _, line := range lines {
			m := re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if d, err := decimal.NewFromString(m[1]); err == nil && d.IsPositive() {
				return d
			}
		}
	}
	return decimal.Zero
}

func findMerchant(lines []string) string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 3 || digit.MatchString(line) {
			continue
		}
		upper := strings.ToUpper(line)
		skip := false
		for _, w := range merchantStopWords {
			if strings.Contains(upper, w) {
				skip = true
				break
			}
		}
		if !skip {
			return line
		}
	}
	return ""
}

// findDate returns the first valid y/m/d or d/m/y date, or the zero time
func findDate(lines []string, loc *time.Location) time.Time {
	for _, line := range lines {
		if m := ymdPattern.FindStringSubmatch(line); m != nil {
			if t, ok := makeDate(m[1], m[2], m[3], loc); ok {
				return t
			}
			continue
		}
		if m := dmyPattern.FindStringSubmatch(line); m != nil {
			if t, ok := makeDate(m[3], m[2], m[1], loc); ok {
				return t
			}
		}
	}
	return time.Time{}
}

func makeDate(ys, ms, ds string, loc *time.Location) (time.Time, bool) {
	y, _ := strconv.Atoi(ys)
	m, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)
	if len(ys) == 2 {
		y += 2000
	}
	if m < 1 || m > 12 || d < 1 || y < 1900 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Day() != d {
		// day past the end of the month
		return time.Time{}, false
	}
	return t, true
}

func findItems(lines []string) []string {
	var items []string
	for _, line := range lines {
		if strings.Contains(line, "$") && !strings.Contains(strings.ToUpper(line), "TOTAL") && len(line) > 5 {
			items = append(items, strings.TrimSpace(line))
		}
	}
	return items
}

// Draft builds an unsaved EXPENSE from the guess. Missing fields fall back
// to the merchant "Receipt", the suggested category and now.
func (g Guess) Draft(now time.Time) core.Transaction {
	desc := g.Merchant
	if desc == "" {
		desc = "Receipt"
	}
	ts := g.Date
	if ts.IsZero() {
		ts = now
	}
	return core.Transaction{
		Amount:      g.Amount,
		Description: desc,
		Category:    g.SuggestedCategory,
		Type:        core.Expense,
		Timestamp:   ts,
	}
}
