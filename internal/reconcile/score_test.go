package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cleared-dev/ledger/internal/config"
)

var defaultWeights = config.Weights{Amount: 50, Date: 30, Description: 20}

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		scorer    Scorer
		diff      int64
		days      int
		bank, led string
		want      Score
	}{
		{
			name:   "exact",
			scorer: Scorer{Weights: defaultWeights, Window: 5},
			bank:   "Invoice 1042 Acme", led: "acme invoice 1042",
			want: Score{Total: 100, Amount: 100, Date: 100, Description: 100},
		},
		{
			name:   "two days off, half the tokens",
			scorer: Scorer{Weights: defaultWeights, Window: 5},
			days:   2,
			bank:   "acme invoice", led: "acme payment",
			want: Score{Total: 75, Amount: 100, Date: 60, Description: 33},
		},
		{
			name:   "amount inside tolerance",
			scorer: Scorer{Weights: defaultWeights, Tolerance: 200, Window: 5},
			diff:   -50,
			bank:   "x", led: "y",
			want: Score{Total: 68, Amount: 75, Date: 100, Description: 0},
		},
		{
			name:   "window edge and no words",
			scorer: Scorer{Weights: defaultWeights, Window: 5},
			days:   5,
			bank:   "", led: "rent",
			want: Score{Total: 50, Amount: 100, Date: 0, Description: 0},
		},
		{
			name:   "half rounds up",
			scorer: Scorer{Weights: config.Weights{Amount: 50, Date: 50}, Tolerance: 4, Window: 2},
			diff:   1, days: 1,
			want: Score{Total: 63, Amount: 75, Date: 50, Description: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scorer.Score(tt.diff, tt.days, tt.bank, tt.led))
		})
	}
}

func TestScore_ToleranceIsMonotonic(t *testing.T) {
	for diff := int64(0); diff <= 300; diff += 7 {
		for days := 0; days <= 5; days++ {
			prev := -1
			for tol := int64(0); tol <= 400; tol += 25 {
				s := Scorer{Weights: defaultWeights, Tolerance: tol, Window: 5}.Score(diff, days, "acme invoice", "acme")
				assert.GreaterOrEqual(t, s.Total, prev, "diff=%d days=%d tol=%d", diff, days, tol)
				prev = s.Total
			}
		}
	}
}

func TestAdjust(t *testing.T) {
	assert.Equal(t, 100, Adjust(95, 10))
	assert.Equal(t, 0, Adjust(5, -10))
	assert.Equal(t, 70, Adjust(80, -10))
}

func TestDescriptionScore_Tokens(t *testing.T) {
	assert.Equal(t, "100", DescriptionScore("GITHUB.COM/charge", "github com charge").String())
	assert.Equal(t, "0", DescriptionScore("rent", "").String())
}
