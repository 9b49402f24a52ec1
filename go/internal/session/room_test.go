package session

import (
	"strings"
	"testing"
	"time"

	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCode(t *testing.T) {
	for range 50 {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, codeLength)
		for _, r := range code {
			assert.True(t, strings.ContainsRune(codeCharset, r), "unexpected rune %q in %s", r, code)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	assert.Equal(t, "AB12", NormalizeCode("  ab12\n"))
	assert.Equal(t, "", NormalizeCode("   "))
}

func TestJoinPatch(t *testing.T) {
	p := JoinPatch(guestTok, t0, DefaultRules())

	assert.Equal(t, "ready", p["status"])
	assert.Equal(t, models.Millis(t0.Add(time.Second)), p["startTime"])
	assert.Equal(t, models.Millis(t0.Add(61*time.Second)), p["endTime"])
	assert.Equal(t, guestTok.String(), p["guest"])
}

func TestNextRound(t *testing.T) {
	prev := models.NewWaitingRoom(models.Color{R: 1}, hostToken)
	prev.Guest = guestTok
	prev.P1.Score = 80
	prev.P2.Score = 40
	prev.Rematch = &models.Rematch{P1: true, P2: true}

	target := models.Color{R: 200, G: 50, B: 80}
	next := NextRound(prev, target, t0, DefaultRules())

	assert.Equal(t, target, next.TargetColor)
	assert.Equal(t, models.RoomStatusReady, next.Status)
	assert.Equal(t, models.NoScore, next.P1.Score)
	assert.Equal(t, models.NoScore, next.P2.Score)
	assert.False(t, next.Votes().P1)
	assert.False(t, next.Votes().P2)
	assert.Equal(t, hostToken, next.Host)
	assert.Equal(t, guestTok, next.Guest)
	assert.Equal(t, 2, next.Round)
	assert.Equal(t, models.Millis(t0.Add(61*time.Second)), next.EndTime)
}

func TestScorePatch(t *testing.T) {
	p := scorePatch(models.RoleGuest, models.Color{R: 1, G: 2, B: 3}, 42.5)

	assert.Equal(t, 1, p["p2/r"])
	assert.Equal(t, 2, p["p2/g"])
	assert.Equal(t, 3, p["p2/b"])
	assert.Equal(t, 42.5, p["p2/score"])
}
