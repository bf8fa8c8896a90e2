package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/incident-dispatch/internal/domain"
)

func TestParseTTRMinutes(t *testing.T) {
	minutes, err := ParseTTRMinutes("01:31:00")
	require.NoError(t, err)
	assert.InDelta(t, 91.0, minutes, 0.001)

	minutes, err = ParseTTRMinutes("00:00:30")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, minutes, 0.001)

	for _, bad := range []string{"", "90", "1:2", "aa:bb:cc", "-1:00:00"} {
		_, err := ParseTTRMinutes(bad)
		assert.Error(t, err, "TTR %q should not parse", bad)
	}
}

func TestClassifyLevel(t *testing.T) {
	cases := []struct {
		name     string
		category domain.Category
		ttr      string
		want     domain.Level
	}{
		{"K2 just over 90m", domain.CategoryK2, "01:31:00", domain.LevelL3},
		{"K2 exactly 90m stays L2", domain.CategoryK2, "01:30:00", domain.LevelL2},
		{"K3 under an hour", domain.CategoryK3, "00:45:00", domain.LevelL1},
		{"K3 over an hour", domain.CategoryK3, "01:01:00", domain.LevelL2},
		{"K1 ten hours", domain.CategoryK1, "10:00:00", domain.LevelL7},
		{"K1 seven hours", domain.CategoryK1, "07:00:00", domain.LevelL6},
		{"K1 five hours", domain.CategoryK1, "05:00:00", domain.LevelL5},
		{"K1 three hours", domain.CategoryK1, "03:00:00", domain.LevelL4},
		{"K1 two hours", domain.CategoryK1, "02:00:00", domain.LevelL3},
		{"K1 75 minutes", domain.CategoryK1, "01:15:00", domain.LevelL2},
		{"K1 fresh", domain.CategoryK1, "00:10:00", domain.LevelL1},
		{"missing category", domain.CategoryUnknown, "05:00:00", domain.LevelUnknown},
		{"garbage TTR", domain.CategoryK1, "n/a", domain.LevelUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyLevel(tc.category, tc.ttr))
		})
	}
}

func TestClassifyLevelNeverExceedsCategoryCeiling(t *testing.T) {
	ttrs := []string{"00:30:00", "01:01:00", "01:31:00", "02:31:00", "04:01:00", "06:01:00", "09:01:00", "48:00:00"}
	for _, category := range []domain.Category{domain.CategoryK1, domain.CategoryK2, domain.CategoryK3} {
		max := MaxLevel(category)
		for _, ttr := range ttrs {
			level := ClassifyLevel(category, ttr)
			assert.LessOrEqual(t, levelRank(max), levelRank(level),
				"category %s TTR %s classified %s above ceiling %s", category, ttr, level, max)
		}
	}
}
