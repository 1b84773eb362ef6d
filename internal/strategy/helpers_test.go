package strategy

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"CrashSentinel/internal/debtceiling"
	"CrashSentinel/internal/model"
	"CrashSentinel/internal/normalize"
)

var testXDate = time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC)

// daysBefore returns a mid-morning timestamp d days before the X-date.
func daysBefore(d int) time.Time {
	return testXDate.AddDate(0, 0, -d).Add(9 * time.Hour)
}

// uniform gives every weighted indicator the same already-normalized score.
func uniform(score float64) map[string]any {
	out := make(map[string]any)
	for _, w := range DefaultWeights() {
		out[w.Name] = score
	}
	return out
}

func newTestEngine(t *testing.T, dcMutate func(*debtceiling.Config)) *Engine {
	t.Helper()
	dcCfg := debtceiling.DefaultConfig(testXDate)
	if dcMutate != nil {
		dcMutate(&dcCfg)
	}
	timer, err := debtceiling.NewTimer(dcCfg)
	require.NoError(t, err)
	scorer, err := NewScorer(DefaultWeights())
	require.NoError(t, err)
	return NewEngine(DefaultConfig(), normalize.New(nil), scorer, timer)
}

func reasonsContain(reasons []string, sub string) bool {
	for _, r := range reasons {
		if strings.Contains(r, sub) {
			return true
		}
	}
	return false
}

type spyRecovery struct {
	calls  int
	result bool
}

func (s *spyRecovery) Evaluate(map[string]model.Indicator, model.DebtCeilingState, model.PositionState) (bool, string) {
	s.calls++
	return s.result, "spy"
}
