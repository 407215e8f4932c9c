package announce

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeFieldVariants(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		id       string
		headline string
		desc     string
		category string
	}{
		{
			name:     "canonical keys",
			payload:  `{"announcement_id":"A1","headline":"Board meeting","description":"Outcome of board meeting","category":"Board Meeting"}`,
			id:       "A1",
			headline: "Board meeting",
			desc:     "Outcome of board meeting",
			category: "Board Meeting",
		},
		{
			name:     "legacy keys",
			payload:  `{"id":"A2","subject":"Dividend declared","news_body":"Interim dividend of Rs 5","descriptor":"Dividend"}`,
			id:       "A2",
			headline: "Dividend declared",
			desc:     "Interim dividend of Rs 5",
			category: "Dividend",
		},
		{
			name:     "title and body keys",
			payload:  `{"news_id":"A3","title":"Results","body":"Q4 results approved","type":"Results"}`,
			id:       "A3",
			headline: "Results",
			desc:     "Q4 results approved",
			category: "Results",
		},
		{
			name:     "numeric id",
			payload:  `{"annid":982451,"headline":"Rights issue"}`,
			id:       "982451",
			headline: "Rights issue",
		},
		{
			name:     "uppercase keys",
			payload:  `{"ANNOUNCEMENT_ID":"A4","HEADLINE":"AGM notice"}`,
			id:       "A4",
			headline: "AGM notice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.AnnouncementID != tt.id {
				t.Errorf("id: expected %q, got %q", tt.id, a.AnnouncementID)
			}
			if a.Headline != tt.headline {
				t.Errorf("headline: expected %q, got %q", tt.headline, a.Headline)
			}
			if a.Description != tt.desc {
				t.Errorf("description: expected %q, got %q", tt.desc, a.Description)
			}
			if a.Category != tt.category {
				t.Errorf("category: expected %q, got %q", tt.category, a.Category)
			}
			if a.RawPayload != tt.payload {
				t.Errorf("raw payload not preserved")
			}
		})
	}
}

func TestDecodeSymbolExtraction(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		symbol  string
		nse     string
		bse     string
	}{
		{
			name:    "direct symbol with NSE exchange routes to nse column",
			payload: `{"id":"S1","headline":"x","symbol":"reliance","exchange":"NSE"}`,
			symbol:  "RELIANCE",
			nse:     "RELIANCE",
		},
		{
			name:    "direct symbol with BSE exchange routes to bse column",
			payload: `{"id":"S2","headline":"x","scrip":"500325","exchange":"bse"}`,
			symbol:  "500325",
			bse:     "500325",
		},
		{
			name:    "nested exchange objects",
			payload: `{"id":"S3","headline":"x","nse":{"symbol":"TCS"},"bse":{"security_code":"532540"}}`,
			nse:     "TCS",
			bse:     "532540",
		},
		{
			name:    "unknown exchange leaves symbol unrouted",
			payload: `{"id":"S4","headline":"x","ticker":"INFY","exchange":"MCX"}`,
			symbol:  "INFY",
		},
		{
			name:    "parenthesised ticker recovered from headline",
			payload: `{"id":"S5","headline":"Acme Industries (ACME) announces buyback"}`,
			symbol:  "ACME",
		},
		{
			name:    "bare ticker recovered from headline skipping stop words",
			payload: `{"id":"S6","headline":"THE board OF WIPRO approves dividend"}`,
			symbol:  "WIPRO",
		},
		{
			name:    "no ticker shaped token in headline",
			payload: `{"id":"S7","headline":"Board approves the dividend"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Symbol != tt.symbol {
				t.Errorf("symbol: expected %q, got %q", tt.symbol, a.Symbol)
			}
			if a.SymbolNSE != tt.nse {
				t.Errorf("symbol_nse: expected %q, got %q", tt.nse, a.SymbolNSE)
			}
			if a.SymbolBSE != tt.bse {
				t.Errorf("symbol_bse: expected %q, got %q", tt.bse, a.SymbolBSE)
			}
		})
	}
}

func TestDecodeEventTime(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    *time.Time
	}{
		{
			name:    "rfc3339",
			payload: `{"id":"T1","headline":"x","announcement_datetime":"2026-08-14T10:30:00Z"}`,
			want:    timePtr(time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)),
		},
		{
			name:    "sql datetime",
			payload: `{"id":"T2","headline":"x","tradedate":"2026-08-14 10:30:00"}`,
			want:    timePtr(time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)),
		},
		{
			name:    "date only",
			payload: `{"id":"T3","headline":"x","date":"2026-08-14"}`,
			want:    timePtr(time.Date(2026, 8, 14, 0, 0, 0, 0, time.UTC)),
		},
		{
			name:    "day first",
			payload: `{"id":"T4","headline":"x","news_date":"14-08-2026 10:30:00"}`,
			want:    timePtr(time.Date(2026, 8, 14, 10, 30, 0, 0, time.UTC)),
		},
		{
			name:    "unix seconds",
			payload: `{"id":"T5","headline":"x","time":1786703400}`,
			want:    timePtr(time.Unix(1786703400, 0).UTC()),
		},
		{
			name:    "unix milliseconds",
			payload: `{"id":"T6","headline":"x","time":1786703400000}`,
			want:    timePtr(time.UnixMilli(1786703400000).UTC()),
		},
		{
			name:    "unparseable is nil not an error",
			payload: `{"id":"T7","headline":"x","date":"14th August"}`,
		},
		{
			name:    "absent is nil",
			payload: `{"id":"T8","headline":"x"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := Decode([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want == nil {
				if a.AnnouncementDatetime != nil {
					t.Errorf("expected nil event time, got %v", a.AnnouncementDatetime)
				}
				return
			}
			if a.AnnouncementDatetime == nil {
				t.Fatalf("expected event time %v, got nil", tt.want)
			}
			if !a.AnnouncementDatetime.Equal(*tt.want) {
				t.Errorf("event time: expected %v, got %v", tt.want, a.AnnouncementDatetime)
			}
		})
	}
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{
			name:    "missing id",
			payload: `{"headline":"No id here"}`,
			wantErr: ErrMissingID,
		},
		{
			name:    "empty headline and description",
			payload: `{"id":"V1","headline":"","description":""}`,
			wantErr: ErrBlankContent,
		},
		{
			name:    "dash placeholders",
			payload: `{"id":"V2","headline":"-","description":"-"}`,
			wantErr: ErrBlankContent,
		},
		{
			name:    "null placeholders",
			payload: `{"id":"V3","headline":"null","description":"NULL"}`,
			wantErr: ErrBlankContent,
		},
		{
			name:    "none placeholders",
			payload: `{"id":"V4","headline":"None","description":"none"}`,
			wantErr: ErrBlankContent,
		},
		{
			name:    "whitespace padded placeholder",
			payload: `{"id":"V5","headline":"  ","description":" - "}`,
			wantErr: ErrBlankContent,
		},
		{
			name:    "headline present is enough",
			payload: `{"id":"V6","headline":"Dividend","description":"-"}`,
		},
		{
			name:    "description present is enough",
			payload: `{"id":"V7","headline":"null","description":"Board approved split"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecodeRejectsNonObject(t *testing.T) {
	for _, payload := range []string{`not json`, `[1,2]`, `"quoted"`, `42`} {
		if _, err := Decode([]byte(payload)); err == nil {
			t.Errorf("expected decode error for %q", payload)
		}
	}
}

func TestPrimarySymbol(t *testing.T) {
	tests := []struct {
		name string
		a    Announcement
		want string
	}{
		{"nse wins", Announcement{Symbol: "X", SymbolNSE: "TCS", SymbolBSE: "532540"}, "TCS"},
		{"bse next", Announcement{Symbol: "X", SymbolBSE: "532540"}, "532540"},
		{"generic last", Announcement{Symbol: "X"}, "X"},
		{"empty", Announcement{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.PrimarySymbol(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func timePtr(t time.Time) *time.Time {
	return &t
}
