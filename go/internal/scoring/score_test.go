package scoring

import (
	"testing"

	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestComputeScore(t *testing.T) {
	tests := []struct {
		name   string
		mix    models.Color
		target models.Color
		want   float64
	}{
		{name: "exact match", mix: models.Color{R: 200, G: 50, B: 80}, target: models.Color{R: 200, G: 50, B: 80}, want: 100},
		{name: "black against white", mix: models.Black, target: models.Color{R: 255, G: 255, B: 255}, want: 0.1},
		{name: "one channel off by ten", mix: models.Color{R: 10}, target: models.Black, want: 97.7},
		{name: "black against mid gray", mix: models.Black, target: models.Color{R: 128, G: 128, B: 128}, want: 49.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeScore(tt.mix, tt.target))
		})
	}
}

func TestScoreFromDistance(t *testing.T) {
	assert.Equal(t, 0.0, ScoreFromDistance(MaxDistance))
	assert.Equal(t, 0.0, ScoreFromDistance(500), "clamped below zero")
	assert.Equal(t, 100.0, ScoreFromDistance(0))
	assert.Equal(t, 50.0, ScoreFromDistance(221))
}

func TestDistanceIsSymmetric(t *testing.T) {
	a := models.Color{R: 12, G: 200, B: 99}
	b := models.Color{R: 250, G: 3, B: 140}
	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestResolve(t *testing.T) {
	assert.Equal(t, Win, Resolve(80.5, 80.4))
	assert.Equal(t, Lose, Resolve(0, 0.1))
	assert.Equal(t, Draw, Resolve(72.3, 72.3))
	assert.Equal(t, "VICTORY!", Win.Title())
	assert.Equal(t, "🤝", Draw.Emoji())
}
