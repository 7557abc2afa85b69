package reconcile

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/ledger/internal/config"
)

var hundred = decimal.NewFromInt(100)

// Score is a confidence score with its sub-scores, all 0..100.
type Score struct {
	Total       int
	Amount      int
	Date        int
	Description int
}

// Scorer computes confidence scores under one policy.
type Scorer struct {
	Weights   config.Weights
	Tolerance int64
	Window    int
}

// AmountScore is 100 for an exact amount and decays linearly to 0 at the
// tolerance boundary.
func (s Scorer) AmountScore(diff int64) decimal.Decimal {
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return hundred
	}
	if diff >= s.Tolerance {
		return decimal.Zero
	}
	t := decimal.NewFromInt(s.Tolerance)
	return hundred.Mul(t.Sub(decimal.NewFromInt(diff))).Div(t)
}

// DateScore is 100 on the same day and decays linearly to 0 at the window
// edge.
func (s Scorer) DateScore(days int) decimal.Decimal {
	if days < 0 {
		days = -days
	}
	if days == 0 {
		return hundred
	}
	if days >= s.Window {
		return decimal.Zero
	}
	w := decimal.NewFromInt(int64(s.Window))
	return hundred.Mul(w.Sub(decimal.NewFromInt(int64(days)))).Div(w)
}

// DescriptionScore is the token overlap (Jaccard) of a and b scaled to 100.
func DescriptionScore(a, b string) decimal.Decimal {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return decimal.Zero
	}
	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return hundred.Mul(decimal.NewFromInt(int64(inter))).Div(decimal.NewFromInt(int64(union)))
}

func tokens(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		out[f] = true
	}
	return out
}

// Score weighs the sub-scores of one pair. The total is rounded half-up.
func (s Scorer) Score(amountDiff int64, days int, bankDesc, ledgerDesc string) Score {
	a := s.AmountScore(amountDiff)
	d := s.DateScore(days)
	t := DescriptionScore(bankDesc, ledgerDesc)

	total := a.Mul(decimal.NewFromInt(int64(s.Weights.Amount))).
		Add(d.Mul(decimal.NewFromInt(int64(s.Weights.Date)))).
		Add(t.Mul(decimal.NewFromInt(int64(s.Weights.Description)))).
		Div(hundred)

	return Score{
		Total:       roundHalfUp(total),
		Amount:      roundHalfUp(a),
		Date:        roundHalfUp(d),
		Description: roundHalfUp(t),
	}
}

// Adjust applies a rule delta, clamping to 0..100.
func Adjust(score, delta int) int {
	score += delta
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func roundHalfUp(d decimal.Decimal) int {
	return int(d.Round(0).IntPart())
}
