package sqlutil

import "testing"

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"member", "`member`"},
		{"order_item", "`order_item`"},
		{"order", "`order`"},           // reserved word
		{"count", "`count`"},           // function name
		{"user`data", "`user``data`"},  // backtick in name
		{"", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := QuoteIdentifier(tt.input)
			if result != tt.expected {
				t.Errorf("QuoteIdentifier(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestColumnAndTable(t *testing.T) {
	if got := Column("o", "order_id"); got != "o.`order_id`" {
		t.Errorf("Column = %q", got)
	}
	if got := Column("", "name"); got != "`name`" {
		t.Errorf("Column without alias = %q", got)
	}
	if got := TableAs("order", "o"); got != "`order` o" {
		t.Errorf("TableAs = %q", got)
	}
}

func TestContainsPattern(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"kim", "%kim%"},
		{"50%", "%50!%%"},
		{"a_b", "%a!_b%"},
		{"wow!", "%wow!!%"},
		{"", "%%"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ContainsPattern(tt.input); got != tt.expected {
				t.Errorf("ContainsPattern(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
