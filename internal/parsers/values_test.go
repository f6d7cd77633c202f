package parsers

import (
	"math"
	"testing"
	"time"
)

func fp(f float64) *float64 { return &f }

func TestCurrency(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  *float64
	}{
		{"brazilian thousands and decimal", "1.234,56", fp(1234.56)},
		{"currency prefix", "R$ 12,00", fp(12.0)},
		{"comma only decimal", "126,5", fp(126.5)},
		{"plain dot decimal", "126.50", fp(126.50)},
		{"plain integer string", "126", fp(126)},
		{"native float", 99.9, fp(99.9)},
		{"native int", 42, fp(42)},
		{"empty string", "", nil},
		{"whitespace only", "   ", nil},
		{"garbage", "abc", nil},
		{"nil", nil, nil},
		{"nan", math.NaN(), nil},
		{"positive infinity", math.Inf(1), nil},
		{"negative infinity", math.Inf(-1), nil},
		{"negative brazilian", "-1.500,25", fp(-1500.25)},
		{"unsupported type", []string{"x"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Currency(tt.input)
			assertFloatPtr(t, got, tt.want)
		})
	}
}

func TestCurrencyCents(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  *float64
	}{
		{"integer cents string", "12600", fp(126.00)},
		{"integer cents native", 12600, fp(126.00)},
		{"float cents", 12600.0, fp(126.00)},
		{"currency prefix", "R$ 12600", fp(126.00)},
		{"garbage", "12,600", nil},
		{"empty", "", nil},
		{"nil", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertFloatPtr(t, CurrencyCents(tt.input), tt.want)
		})
	}
}

func TestOrderTotal(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  *float64
	}{
		{"comma form", "126,00", fp(126.00)},
		{"comma with thousands", "1.126,00", fp(1126.00)},
		{"dot with two decimals", "126.00", fp(126.00)},
		{"bare integer above 99 is cents", "12600", fp(126.00)},
		{"small integer stays", "55", fp(55)},
		{"currency prefix comma form", "R$ 126,00", fp(126.00)},
		{"native float passes through", 126.0, fp(126.0)},
		{"garbage", "n/a", nil},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertFloatPtr(t, OrderTotal(tt.input), tt.want)
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  *float64
	}{
		{"comma percent", "11,5%", fp(11.5)},
		{"fraction rescaled", "0.11", fp(11.0)},
		{"native fraction rescaled", 0.11, fp(11.0)},
		{"already percentage", "55", fp(55.0)},
		{"rounds to one decimal", "12,34", fp(12.3)},
		{"one is a fraction", "1", fp(100.0)},
		{"zero stays zero", "0", fp(0.0)},
		{"empty", "", nil},
		{"garbage", "x%", nil},
		{"nil", nil, nil},
		{"rounding overflow", 1e308, nil},
		{"negative rounding overflow", -1e308, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertFloatPtr(t, Percent(tt.input), tt.want)
		})
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  string
		nilOK bool
	}{
		{"iso date", "2024-03-15", "2024-03-15", false},
		{"iso datetime", "2024-03-15 10:30:00", "2024-03-15", false},
		{"brazilian date", "15/03/2024", "2024-03-15", false},
		{"brazilian datetime", "15/03/2024 10:30:00", "2024-03-15", false},
		{"empty", "", "", true},
		{"garbage", "not-a-date", "", true},
		{"null literal", "NaT", "", true},
		{"nil", nil, "", true},
		{"number", 42.0, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Date(tt.input)
			if tt.nilOK {
				if got != nil {
					t.Errorf("expected nil, got %v", got)
				}
				return
			}
			if got == nil {
				t.Fatal("expected a date, got nil")
			}
			if got.Format("2006-01-02") != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Format("2006-01-02"))
			}
		})
	}
}

func TestISODate(t *testing.T) {
	if ISODate(nil) != nil {
		t.Error("expected nil for nil input")
	}
	d := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	got := ISODate(&d)
	if got == nil || *got != "2024-03-15T10:30:00" {
		t.Errorf("expected 2024-03-15T10:30:00, got %v", got)
	}
}

func TestIdentifier(t *testing.T) {
	sp := func(s string) *string { return &s }
	tests := []struct {
		name  string
		input interface{}
		want  *string
	}{
		{"plain string", "ABC-123", sp("ABC-123")},
		{"trailing float artifact", "12345.0", sp("12345")},
		{"native float id", 12345.0, sp("12345")},
		{"native int id", 12345, sp("12345")},
		{"none literal", "None", nil},
		{"nan literal", "nan", nil},
		{"empty", "", nil},
		{"whitespace", "  ", nil},
		{"nil", nil, nil},
		{"nan float", math.NaN(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Identifier(tt.input)
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("expected %q, got %q", *tt.want, *got)
			}
		})
	}
}

// Parsers must be total: arbitrary garbage never panics and always yields a
// value or nil.
func TestParserTotality(t *testing.T) {
	inputs := []interface{}{
		nil, "", " ", "R$", "R$,", "...", ",,,", "-", "--5", "1,2,3", "1.2.3",
		"%%", "%", "-%", "\x00\xff", "ÿþ garbage ünicode ☃", "1e309", "-1e309",
		"NaN", "Inf", "-Inf", math.NaN(), math.Inf(1), math.Inf(-1),
		float64(1 << 62), int64(-1 << 62), struct{}{}, []byte("bytes"),
		map[string]string{"k": "v"}, true, 3.14, "9999999999999999999999999",
	}

	for _, input := range inputs {
		Currency(input)
		CurrencyCents(input)
		OrderTotal(input)
		Percent(input)
		Date(input)
		Identifier(input)
	}

	// Spot-check that overflowing literals normalize to nil rather than Inf.
	if got := Currency("1e309"); got != nil {
		t.Errorf("expected overflow to normalize to nil, got %v", *got)
	}
}

func assertFloatPtr(t *testing.T, got, want *float64) {
	t.Helper()
	if (got == nil) != (want == nil) {
		t.Fatalf("expected %v, got %v", fmtPtr(want), fmtPtr(got))
	}
	if got != nil && math.Abs(*got-*want) > 1e-9 {
		t.Errorf("expected %v, got %v", *want, *got)
	}
}

func fmtPtr(f *float64) interface{} {
	if f == nil {
		return "<nil>"
	}
	return *f
}
