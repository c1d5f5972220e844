package cli

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"50", "50.00"},
		{"1234.5", "1,234.50"},
		{"-1234567.891", "-1,234,567.89"},
	}
	for _, tt := range tests {
		got := FormatMoney(decimal.RequireFromString(tt.in))
		if got != tt.want {
			t.Fatalf("FormatMoney(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := FormatSigned(decimal.NewFromInt(5)); got != "+5.00" {
		t.Fatalf("FormatSigned(5) = %q", got)
	}
}

func TestParseMoney(t *testing.T) {
	d, err := ParseMoney("1,250.50")
	if err != nil {
		t.Fatalf("ParseMoney: %v", err)
	}
	if !d.Equal(decimal.RequireFromString("1250.5")) {
		t.Fatalf("ParseMoney = %s", d)
	}
	for _, bad := range []string{"", "abc", "-5", "1.005"} {
		if _, err := ParseMoney(bad); err == nil {
			t.Fatalf("ParseMoney(%q) should fail", bad)
		}
	}
}

func TestFormatSchedule(t *testing.T) {
	if got := FormatSchedule(nil); got != "daily" {
		t.Fatalf("FormatSchedule(nil) = %q", got)
	}
	if got := FormatSchedule([]int{1, 3, 5}); got != "1,3,5" {
		t.Fatalf("FormatSchedule = %q", got)
	}
	if got := FormatSlot(3, 5); got != "W3 D5" {
		t.Fatalf("FormatSlot = %q", got)
	}
}
