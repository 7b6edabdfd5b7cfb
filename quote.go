package askwarren

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Quote is a ticker price, parsed from the free text returned by the oracle.
type Quote struct {
	value decimal.Decimal
	cur   string // empty for indices
}

// ParseQuote reads a price such as "5.123,45", "5,123.45", "18.250" or "182.3 USD".
// A trailing or leading ISO currency code is recognised.
func ParseQuote(s string) (Quote, error) {
	fields := strings.Fields(strings.TrimSpace(s))
	var q Quote
	var num []string
	for _, f := range fields {
		if isCurrencyCode(f) {
			q.cur = strings.ToUpper(f)
			continue
		}
		num = append(num, f)
	}
	d, err := parseLocalizedDecimal(strings.Join(num, ""), true)
	if err != nil {
		return Quote{}, fmt.Errorf("invalid quote %q: %w", s, err)
	}
	q.value = d
	return q, nil
}

// ParseChange reads a relative change such as "+0,8%" or "-1.25 %" as a percentage.
// Its only separator is always the decimal one.
func ParseChange(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	d, err := parseLocalizedDecimal(s, false)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid change %q: %w", s, err)
	}
	return d, nil
}

// FormatChange prints a percentage change with an explicit sign and two decimals.
func FormatChange(d decimal.Decimal) string {
	s := d.StringFixed(2) + "%"
	if d.IsPositive() {
		s = "+" + s
	}
	return s
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	return money.GetCurrency(strings.ToUpper(s)) != nil
}

// parseLocalizedDecimal accepts both "1.234,5" and "1,234.5".
//
// With both separators present the last one is the decimal one. A separator
// repeated in "1.234.567" groups thousands. A lone separator is read as a
// thousands one in "18.250" and "1,234" when grouping is set: one to three
// leading digits, exactly three after. "0.250" and "5123.456" stay decimals.
func parseLocalizedDecimal(s string, grouping bool) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.ReplaceAll(s, " ", ""), "+")
	commas, dots := strings.Count(s, ","), strings.Count(s, ".")
	switch {
	case commas > 0 && dots > 0:
		dec, group := ",", "."
		if strings.LastIndex(s, ".") > strings.LastIndex(s, ",") {
			dec, group = ".", ","
		}
		if strings.Count(s, dec) > 1 {
			return decimal.Zero, fmt.Errorf("repeated decimal separator in %q", s)
		}
		s = strings.Replace(strings.ReplaceAll(s, group, ""), dec, ".", 1)
	case commas > 1 || dots > 1:
		sep := "."
		if commas > 1 {
			sep = ","
		}
		if !thousandGroups(s, sep) {
			return decimal.Zero, fmt.Errorf("invalid digit grouping in %q", s)
		}
		s = strings.ReplaceAll(s, sep, "")
	case commas == 1 || dots == 1:
		sep := "."
		if commas == 1 {
			sep = ","
		}
		if grouping && thousandGroups(s, sep) {
			s = strings.ReplaceAll(s, sep, "")
		} else {
			s = strings.Replace(s, sep, ".", 1)
		}
	}
	return decimal.NewFromString(s)
}

// thousandGroups reports whether s is 1 to 3 digits, not starting with 0,
// followed by groups of exactly 3 digits separated by sep.
func thousandGroups(s, sep string) bool {
	groups := strings.Split(strings.TrimPrefix(s, "-"), sep)
	head := groups[0]
	if len(head) == 0 || len(head) > 3 || head[0] == '0' || !digits(head) {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 || !digits(g) {
			return false
		}
	}
	return true
}

func digits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Value returns the quote's amount.
func (q Quote) Value() decimal.Decimal { return q.value }

// Currency returns the ISO code of the quote, empty for index points.
func (q Quote) Currency() string { return q.cur }

// WithCurrency returns a copy of q in currency cur.
func (q Quote) WithCurrency(cur string) Quote { return Quote{value: q.value, cur: strings.ToUpper(cur)} }

// String formats the quote with its currency conventions, or with two decimals for index points.
func (q Quote) String() string {
	if q.cur == "" {
		return q.value.StringFixed(2)
	}
	// to get a never nil currency I need to call the Money constructor
	cur := money.New(0, q.cur).Currency()
	minor := q.value.Shift(int32(cur.Fraction)).Round(0)
	return cur.Formatter().Format(minor.IntPart())
}

// Quote parses the ticker price, using the ticker's currency when the price
// has none. Unknown currency codes are ignored.
func (t TickerInfo) Quote() (Quote, error) {
	q, err := ParseQuote(t.Price)
	if err != nil {
		return Quote{}, err
	}
	if q.cur == "" && isCurrencyCode(t.Currency) {
		q = q.WithCurrency(t.Currency)
	}
	return q, nil
}

// Normalize rewrites the price and the change in a uniform format and derives
// IsUp from the sign of the change. Values that cannot be parsed, like the
// "---" placeholders, are kept as they are.
func (t TickerInfo) Normalize() TickerInfo {
	if q, err := t.Quote(); err == nil {
		t.Price = q.String()
		t.Currency = q.Currency()
	}
	if c, err := ParseChange(t.Change); err == nil {
		t.Change = FormatChange(c)
		t.IsUp = !c.IsNegative()
	}
	return t
}
