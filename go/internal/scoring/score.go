// Package scoring computes color-match scores and round outcomes.
package scoring

import (
	"math"

	"github.com/mcdev12/huemix/go/internal/models"
)

// MaxDistance approximates the diagonal of the RGB cube, sqrt(3*255^2).
const MaxDistance = 442.0

// MaxScore is a perfect match.
const MaxScore = 100.0

// Distance returns the Euclidean distance between two colors in RGB space.
func Distance(a, b models.Color) float64 {
	dr := float64(a.R - b.R)
	dg := float64(a.G - b.G)
	db := float64(a.B - b.B)
	return math.Sqrt(dr*dr + dg*dg + db*db)
}

// ScoreFromDistance maps a distance onto [0,100] rounded to one decimal.
func ScoreFromDistance(d float64) float64 {
	score := MaxScore - d/MaxDistance*MaxScore
	score = math.Round(score*10) / 10
	return math.Max(0, math.Min(MaxScore, score))
}

// ComputeScore scores mix against target.
func ComputeScore(mix, target models.Color) float64 {
	return ScoreFromDistance(Distance(mix, target))
}
