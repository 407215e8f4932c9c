package announce

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrMissingID marks a payload that carries no usable announcement id.
	ErrMissingID = errors.New("announcement id missing")

	// ErrBlankContent marks a payload whose headline and description are
	// both blank or placeholder values.
	ErrBlankContent = errors.New("blank headline and description")
)

// Vendor payloads are loosely schemad and field names drift between feed
// versions. Each list is tried in order and the first present key wins.
var (
	idKeys          = []string{"announcement_id", "announcementid", "id", "news_id", "newsid", "annid"}
	headlineKeys    = []string{"headline", "subject", "title", "caption"}
	descriptionKeys = []string{"description", "news_body", "body", "details", "desc", "summary"}
	categoryKeys    = []string{"category", "descriptor", "type", "news_type", "news_sub_type"}
	symbolKeys      = []string{"symbol", "ticker", "scrip", "nsecode", "bsecode", "security_code"}
	exchangeKeys    = []string{"exchange", "exch", "exchange_name", "source_exchange"}
	eventTimeKeys   = []string{"announcement_datetime", "tradedate", "date", "datetime", "news_date", "time", "broadcast_datetime"}
	attachmentKeys  = []string{"attachment_id", "attachment", "file_id", "attachment_name", "pdf_link"}
)

var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-01-2006 15:04:05",
}

var (
	parenTicker = regexp.MustCompile(`\(([A-Z][A-Z0-9]{1,9})\)`)
	bareTicker  = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,9}\b`)
)

// tickerStopWords are uppercase headline tokens that look like symbols but
// never are.
var tickerStopWords = map[string]bool{
	"THE": true, "AND": true, "FOR": true, "LTD": true, "LIMITED": true,
	"INC": true, "CORP": true, "CO": true, "OF": true, "TO": true,
	"ON": true, "IN": true, "AT": true, "BY": true, "NSE": true,
	"BSE": true, "EPS": true, "CEO": true, "CFO": true, "MD": true,
	"AGM": true, "EGM": true, "IPO": true, "FY": true, "PAT": true,
	"Q1": true, "Q2": true, "Q3": true, "Q4": true, "RS": true,
	"CR": true, "PDF": true, "SEBI": true, "RBI": true,
}

// Decode parses a raw vendor payload into an Announcement. The payload must
// be a single JSON object; arrays are split upstream before decoding.
func Decode(raw []byte) (*Announcement, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse announcement payload: %w", err)
	}
	return FromMap(m, raw)
}

// FromMap builds an Announcement from an already decoded vendor object.
// raw is kept verbatim on the record for forensics.
func FromMap(m map[string]any, raw []byte) (*Announcement, error) {
	f := foldKeys(m)

	a := &Announcement{
		AnnouncementID: firstString(f, idKeys),
		Headline:       firstString(f, headlineKeys),
		Description:    firstString(f, descriptionKeys),
		Category:       firstString(f, categoryKeys),
		Exchange:       strings.ToUpper(firstString(f, exchangeKeys)),
		AttachmentID:   firstString(f, attachmentKeys),
		RawPayload:     string(raw),
	}
	a.AnnouncementDatetime = parseEventTime(firstValue(f, eventTimeKeys))

	a.Symbol = strings.ToUpper(firstString(f, symbolKeys))

	// Some feed versions nest the ticker under an exchange-keyed object.
	if nse, ok := f["nse"].(map[string]any); ok {
		a.SymbolNSE = strings.ToUpper(firstString(foldKeys(nse), symbolKeys))
	}
	if bse, ok := f["bse"].(map[string]any); ok {
		a.SymbolBSE = strings.ToUpper(firstString(foldKeys(bse), symbolKeys))
	}

	routeSymbol(a)

	if a.Symbol == "" && a.SymbolNSE == "" && a.SymbolBSE == "" {
		a.Symbol = tickerFromHeadline(a.Headline)
	}

	if a.AnnouncementID == "" {
		return nil, ErrMissingID
	}
	if IsBlank(a.Headline) && IsBlank(a.Description) {
		return nil, ErrBlankContent
	}
	return a, nil
}

// IsBlank reports whether a field value carries no real content. Vendors
// pad empty fields with placeholder strings instead of omitting them.
func IsBlank(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "-", "null", "none":
		return true
	}
	return false
}

// routeSymbol assigns the generic symbol to the exchange-specific column
// when the payload names its exchange.
func routeSymbol(a *Announcement) {
	if a.Symbol == "" {
		return
	}
	switch {
	case strings.Contains(a.Exchange, "NSE"):
		if a.SymbolNSE == "" {
			a.SymbolNSE = a.Symbol
		}
	case strings.Contains(a.Exchange, "BSE"):
		if a.SymbolBSE == "" {
			a.SymbolBSE = a.Symbol
		}
	}
}

// tickerFromHeadline is the last-resort symbol source: a ticker-shaped token
// scanned out of the headline, preferring parenthesised ones. Best effort.
func tickerFromHeadline(headline string) string {
	if m := parenTicker.FindStringSubmatch(headline); m != nil && !tickerStopWords[m[1]] {
		return m[1]
	}
	for _, tok := range bareTicker.FindAllString(headline, -1) {
		if !tickerStopWords[tok] {
			return tok
		}
	}
	return ""
}

// foldKeys lowercases the object's keys so lookups are case-insensitive.
// The first occurrence of a key wins.
func foldKeys(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		lk := strings.ToLower(k)
		if _, ok := out[lk]; !ok {
			out[lk] = v
		}
	}
	return out
}

func firstValue(m map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		if s := stringValue(v); s != "" {
			return s
		}
	}
	return ""
}

// stringValue renders scalar JSON values as trimmed strings. Numeric ids
// arrive as float64 from encoding/json and must not grow an exponent.
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// parseEventTime interprets the vendor's event timestamp. Returns nil when
// the value is absent or unparseable; a missing event time is not an error.
func parseEventTime(v any) *time.Time {
	switch t := v.(type) {
	case float64:
		if t <= 0 {
			return nil
		}
		// Millisecond timestamps passed 1e12 back in 2001.
		if t > 1e12 {
			ts := time.UnixMilli(int64(t)).UTC()
			return &ts
		}
		ts := time.Unix(int64(t), 0).UTC()
		return &ts
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		for _, layout := range eventTimeLayouts {
			if ts, err := time.Parse(layout, s); err == nil {
				return &ts
			}
		}
	}
	return nil
}
