package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Wikid82/phishguard/internal/models"
)

func TestLevel(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, models.LevelLow},
		{19, models.LevelLow},
		{20, models.LevelMedium},
		{49, models.LevelMedium},
		{50, models.LevelHigh},
		{170, models.LevelHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.score), tt.score)
	}
}

func failed(names ...string) []models.Check {
	out := make([]models.Check, 0, len(names))
	for _, n := range names {
		out = append(out, models.Check{Name: n})
	}
	return out
}

func TestTips(t *testing.T) {
	t.Run("fallback when nothing fired", func(t *testing.T) {
		assert.Equal(t, []string{FallbackTip}, Tips(nil))
		assert.Equal(t, []string{FallbackTip}, Tips(failed(CheckTitleLogin, CheckRenderError)))
	})

	t.Run("passing checks are ignored", func(t *testing.T) {
		checks := []models.Check{{Name: CheckTLS, OK: true}}
		assert.Equal(t, []string{FallbackTip}, Tips(checks))
	})

	t.Run("fixed order regardless of check order", func(t *testing.T) {
		tips := Tips(failed(CheckMultipleRedirects, CheckTLS))
		assert.Equal(t, []string{tipOrder[1].tip, tipOrder[4].tip}, tips)
	})

	t.Run("capped at three", func(t *testing.T) {
		tips := Tips(failed(CheckAttackDetected, CheckBlacklisted, CheckMultipleRedirects, CheckAutoSubmit, CheckTyposquatting))
		assert.Len(t, tips, maxTips)
		assert.Equal(t, []string{tipOrder[2].tip, tipOrder[3].tip, tipOrder[4].tip}, tips)
	})
}

func TestWeights(t *testing.T) {
	assert.Equal(t, 100, Weights[CheckInvalidURL])
	assert.Equal(t, 100, Weights[CheckAttackDetected])
	assert.Equal(t, 40, Weights[CheckSuspiciousForm])
	assert.Equal(t, 40, Weights[CheckTyposquatting])
	assert.Equal(t, 30, Weights[CheckTLS])
	// low_trust is weighted by trust level, not from the table
	_, ok := Weights[CheckLowTrust]
	assert.False(t, ok)
}
