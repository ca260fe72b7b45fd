// Package risk scores cardiovascular risk from a heart-rate summary with a
// fixed-weight linear heuristic.
package risk

import (
	"math"

	"github.com/pulsewise/platform/pkg/common/models"
)

const (
	LevelLow      = "low"
	LevelModerate = "moderate"
	LevelHigh     = "high"

	lowCeiling      = 0.35
	moderateCeiling = 0.65

	defaultAvgHR    = 75.0
	defaultMaxHR    = 100.0
	defaultMinHR    = 60.0
	defaultSessions = 0

	scorePrecision = 1e4
)

// Basis says whether a score was computed from observed analytics or from the
// default inputs used when an owner has no history yet.
type Basis string

const (
	BasisObserved Basis = "observed"
	BasisPartial  Basis = "partial"
	BasisDefaults Basis = "defaults"
)

// Inputs are the scorer features. A nil field is resolved to its default.
type Inputs struct {
	AvgHR    *float64
	MaxHR    *float64
	MinHR    *float64
	Sessions *int
}

// InputsFromSummary maps a summary onto scorer inputs. A nil or empty summary
// yields no inputs at all, which is the named no-history case.
func InputsFromSummary(s *models.AnalyticsSummary) Inputs {
	if s == nil || s.TotalRecords == 0 {
		return Inputs{}
	}
	avg := s.AvgHR
	maxHR := float64(s.MaxHR)
	minHR := float64(s.MinHR)
	sessions := s.ExerciseSessions
	return Inputs{AvgHR: &avg, MaxHR: &maxHR, MinHR: &minHR, Sessions: &sessions}
}

// Weights of the linear model. Fixed so that scores are reproducible.
type Weights struct {
	HR              float64
	Max             float64
	Min             float64
	RestingTrend    float64
	ExerciseBenefit float64
}

var modelWeights = Weights{
	HR:              0.40,
	Max:             0.30,
	Min:             0.15,
	RestingTrend:    0.15,
	ExerciseBenefit: 0.2,
}

// Assessment is the scorer output. Features holds the resolved inputs and
// the intermediate terms so a stored prediction can be explained later.
type Assessment struct {
	Score    float64
	Level    string
	Basis    Basis
	Features map[string]interface{}
}

func resolveAvgHR(in Inputs) float64 {
	if in.AvgHR == nil {
		return defaultAvgHR
	}
	return *in.AvgHR
}

func resolveMaxHR(in Inputs) float64 {
	if in.MaxHR == nil {
		return defaultMaxHR
	}
	return *in.MaxHR
}

func resolveMinHR(in Inputs) float64 {
	if in.MinHR == nil {
		return defaultMinHR
	}
	return *in.MinHR
}

func resolveSessions(in Inputs) int {
	if in.Sessions == nil {
		return defaultSessions
	}
	return *in.Sessions
}

func basisOf(in Inputs) Basis {
	present := 0
	for _, set := range []bool{in.AvgHR != nil, in.MaxHR != nil, in.MinHR != nil, in.Sessions != nil} {
		if set {
			present++
		}
	}
	switch present {
	case 0:
		return BasisDefaults
	case 4:
		return BasisObserved
	default:
		return BasisPartial
	}
}

// Score is pure: identical inputs always give an identical assessment.
func Score(in Inputs) Assessment {
	avgHR := resolveAvgHR(in)
	maxHR := resolveMaxHR(in)
	minHR := resolveMinHR(in)
	sessions := resolveSessions(in)

	restingTrend := math.Min(math.Abs(avgHR-70)/50, 1)
	hrScore := clamp((avgHR-50)/100, 0, 1)
	maxScore := clamp((maxHR-80)/120, 0, 1)
	minScore := clamp((minHR-40)/80, 0, 1)
	exerciseBenefit := math.Min(float64(sessions)/10, 1) * modelWeights.ExerciseBenefit

	raw := modelWeights.HR*hrScore +
		modelWeights.Max*maxScore +
		modelWeights.Min*minScore +
		modelWeights.RestingTrend*restingTrend -
		exerciseBenefit
	score := round4(clamp(raw, 0, 1))

	return Assessment{
		Score: score,
		Level: LevelFor(score),
		Basis: basisOf(in),
		Features: map[string]interface{}{
			"avg_hr":            avgHR,
			"max_hr":            maxHR,
			"min_hr":            minHR,
			"exercise_sessions": sessions,
			"hr_score":          hrScore,
			"max_score":         maxScore,
			"min_score":         minScore,
			"resting_trend":     restingTrend,
			"exercise_benefit":  exerciseBenefit,
			"basis":             string(basisOf(in)),
		},
	}
}

// LevelFor buckets a rounded score.
func LevelFor(score float64) string {
	switch {
	case score < lowCeiling:
		return LevelLow
	case score < moderateCeiling:
		return LevelModerate
	default:
		return LevelHigh
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*scorePrecision) / scorePrecision
}
