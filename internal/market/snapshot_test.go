package market

import (
	"encoding/json"
	"testing"
	"time"
)

func TestStringListBothShapes(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"plain array", `["Yes","No"]`, 2},
		{"encoded array", `"[\"Yes\",\"No\"]"`, 2},
		{"empty string", `""`, 0},
		{"garbage", `"not json"`, 0},
		{"null", `null`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var l StringList
			if err := json.Unmarshal([]byte(tc.in), &l); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if len(l) != tc.want {
				t.Fatalf("len = %d, want %d", len(l), tc.want)
			}
		})
	}
}

func TestDecimalListEncodedStrings(t *testing.T) {
	var l DecimalList
	if err := json.Unmarshal([]byte(`"[\"0.995\", \"0.005\"]"`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(l) != 2 || l[1].String() != "0.005" {
		t.Fatalf("got %v", l)
	}
}

func TestFlexDecimalNumberAndString(t *testing.T) {
	var a, b FlexDecimal
	if err := json.Unmarshal([]byte(`0.25`), &a); err != nil || !a.Valid {
		t.Fatalf("number: %v valid=%v", err, a.Valid)
	}
	if err := json.Unmarshal([]byte(`"0.25"`), &b); err != nil || !b.Valid {
		t.Fatalf("string: %v valid=%v", err, b.Valid)
	}
	if !a.Decimal.Equal(b.Decimal) {
		t.Fatalf("number %s != string %s", a.Decimal, b.Decimal)
	}
	var c FlexDecimal
	if err := json.Unmarshal([]byte(`null`), &c); err != nil || c.Valid {
		t.Fatal("null must stay invalid")
	}
}

func TestParseEndDate(t *testing.T) {
	if ts := ParseEndDate("2025-12-31T23:59:59Z"); ts == nil || ts.Year() != 2025 {
		t.Fatalf("rfc3339 parse failed: %v", ts)
	}
	naive := ParseEndDate("2025-12-31")
	if naive == nil || naive.Location() != time.UTC {
		t.Fatalf("date-only parse failed: %v", naive)
	}
	if ts := ParseEndDate("someday"); ts != nil {
		t.Fatalf("unparsable input must return nil, got %v", ts)
	}
	if ts := ParseEndDate(""); ts != nil {
		t.Fatal("empty input must return nil")
	}
}

func TestTokenForOutcome(t *testing.T) {
	s := Snapshot{Tokens: []Token{
		{ID: "1", Outcome: "Yes"},
		{ID: "2", Outcome: "No"},
	}}
	if got := s.TokenForOutcome("no"); got != "2" {
		t.Fatalf("got %q, want 2", got)
	}
	if got := s.TokenForOutcome("Maybe"); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func TestURL(t *testing.T) {
	s := Snapshot{Slug: "will-it-rain"}
	if got := s.URL(); got != "https://polymarket.com/event/will-it-rain" {
		t.Fatalf("url = %q", got)
	}
	withEvent := Snapshot{EventSlug: "rain-week", Slug: "will-it-rain"}
	if got := withEvent.URL(); got != "https://polymarket.com/event/rain-week" {
		t.Fatalf("url = %q", got)
	}
	if (&Snapshot{}).URL() != "" {
		t.Fatal("empty slug must yield empty url")
	}
}
