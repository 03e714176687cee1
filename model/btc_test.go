package model

import "testing"

func TestBTCToSats(t *testing.T) {
	tests := []struct {
		price string
		want  int64
	}{
		{"0.001", 100_000},
		{"1", 100_000_000},
		{"0.00000001", 1},
		{"0.000000015", 1}, // truncated beyond 8 places, not rounded up
		{"123.456", 12_345_600_000},
		{"0", 0},
	}
	for _, tt := range tests {
		got, err := BTCToSats(tt.price)
		if err != nil {
			t.Fatalf("BTCToSats(%q): %v", tt.price, err)
		}
		if got != tt.want {
			t.Errorf("BTCToSats(%q) = %d, want %d", tt.price, got, tt.want)
		}
	}
}

func TestBTCToSatsRejectsNegative(t *testing.T) {
	if _, err := BTCToSats("-1"); err == nil {
		t.Error("expected error for negative price")
	}
}

func TestParsePositiveInt(t *testing.T) {
	ok := []struct {
		s    string
		want int64
	}{{"0", 0}, {"1", 1}, {"792000", 792000}}
	for _, tt := range ok {
		got, err := ParsePositiveInt(tt.s)
		if err != nil || got != tt.want {
			t.Errorf("ParsePositiveInt(%q) = (%d, %v), want %d", tt.s, got, err, tt.want)
		}
	}
	bad := []string{"", "01", "007", "-1", "12a"}
	for _, s := range bad {
		if _, err := ParsePositiveInt(s); err == nil {
			t.Errorf("ParsePositiveInt(%q): expected error", s)
		}
	}
}
