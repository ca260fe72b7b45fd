package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pulsewise/platform/pkg/common/models"
)

func TestScoreObservedSummary(t *testing.T) {
	summary := &models.AnalyticsSummary{
		AvgHR:            75,
		MinHR:            60,
		MaxHR:            90,
		ExerciseSessions: 1,
		TotalRecords:     2,
	}

	got := Score(InputsFromSummary(summary))

	assert.InDelta(t, 0.1575, got.Score, 1e-9)
	assert.Equal(t, LevelLow, got.Level)
	assert.Equal(t, BasisObserved, got.Basis)
	assert.Equal(t, 90.0, got.Features["max_hr"])
	assert.Equal(t, 1, got.Features["exercise_sessions"])
}

func TestScoreWithoutHistoryUsesDefaults(t *testing.T) {
	nilSummary := Score(InputsFromSummary(nil))
	emptySummary := Score(InputsFromSummary(&models.AnalyticsSummary{}))

	assert.Equal(t, BasisDefaults, nilSummary.Basis)
	assert.InDelta(t, 0.2025, nilSummary.Score, 1e-9)
	assert.Equal(t, LevelLow, nilSummary.Level)
	assert.Equal(t, nilSummary, emptySummary)
	assert.Equal(t, 75.0, nilSummary.Features["avg_hr"])
	assert.Equal(t, 0, nilSummary.Features["exercise_sessions"])
}

func TestScorePartialInputs(t *testing.T) {
	avg := 110.0
	got := Score(Inputs{AvgHR: &avg})

	assert.Equal(t, BasisPartial, got.Basis)
	assert.Equal(t, 100.0, got.Features["max_hr"])
	assert.Equal(t, 60.0, got.Features["min_hr"])
}

func TestScoreHighRisk(t *testing.T) {
	got := Score(InputsFromSummary(&models.AnalyticsSummary{
		AvgHR:        120,
		MinHR:        95,
		MaxHR:        190,
		TotalRecords: 5,
	}))

	assert.InDelta(t, 0.8081, got.Score, 1e-9)
	assert.Equal(t, LevelHigh, got.Level)
}

func TestScoreClampsAndExerciseBenefit(t *testing.T) {
	got := Score(InputsFromSummary(&models.AnalyticsSummary{
		AvgHR:            40,
		MinHR:            30,
		MaxHR:            70,
		ExerciseSessions: 25,
		TotalRecords:     30,
	}))

	assert.Equal(t, 0.0, got.Score)
	assert.Equal(t, LevelLow, got.Level)
	assert.Equal(t, 0.2, got.Features["exercise_benefit"])
}

func TestScoreIsDeterministic(t *testing.T) {
	summary := &models.AnalyticsSummary{AvgHR: 83.25, MinHR: 51, MaxHR: 171, ExerciseSessions: 3, TotalRecords: 12}

	first := Score(InputsFromSummary(summary))
	for i := 0; i < 50; i++ {
		next := Score(InputsFromSummary(summary))
		assert.Equal(t, first.Score, next.Score)
		assert.Equal(t, first.Level, next.Level)
	}
	assert.Equal(t, first.Score, round4(first.Score))
}

func TestLevelFor(t *testing.T) {
	assert.Equal(t, LevelLow, LevelFor(0.3499))
	assert.Equal(t, LevelModerate, LevelFor(0.35))
	assert.Equal(t, LevelModerate, LevelFor(0.6499))
	assert.Equal(t, LevelHigh, LevelFor(0.65))
	assert.Equal(t, LevelHigh, LevelFor(1))
}
