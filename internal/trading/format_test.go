package trading

import "testing"

func TestFormatPriceTiers(t *testing.T) {
	cases := []struct {
		price float64
		want  string
	}{
		{50000.0, "50000.0"},
		{50000.04, "50000.0"},
		{3000.5, "3000.50"},
		{3000.567, "3000.57"},
		{1.23456, "1.2346"},
		{0.123456, "0.123456"},
		{0.00012345, "0.000123"},
	}
	for _, c := range cases {
		if got := FormatPrice(c.price); got != c.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", c.price, got, c.want)
		}
	}
}

func TestFormatSizeUsesGivenDecimals(t *testing.T) {
	if got := FormatSize(1.23456, 2); got != "1.23" {
		t.Fatalf("FormatSize() = %q, want 1.23", got)
	}
	if got := FormatSize(1.2, 0); got != "1" {
		t.Fatalf("FormatSize() = %q, want 1", got)
	}
}
