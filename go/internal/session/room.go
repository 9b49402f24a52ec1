package session

import (
	"crypto/rand"
	"fmt"
	"math/big"
	mrand "math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/roomstore"
)

const (
	codeLength  = 4
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// maxCodeAttempts bounds how many fresh codes CreateRoom draws on collision.
	maxCodeAttempts = 5
)

// GenerateCode returns a random room code.
func GenerateCode() (string, error) {
	code := make([]byte, codeLength)
	for i := range code {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeCharset))))
		if err != nil {
			return "", fmt.Errorf("generate room code: %w", err)
		}
		code[i] = codeCharset[num.Int64()]
	}
	return string(code), nil
}

// NormalizeCode trims and upper-cases user input.
func NormalizeCode(input string) string {
	return strings.ToUpper(strings.TrimSpace(input))
}

// RandomColor draws a uniformly random target.
func RandomColor() models.Color {
	return models.Color{
		R: mrand.IntN(models.MaxChannel + 1),
		G: mrand.IntN(models.MaxChannel + 1),
		B: mrand.IntN(models.MaxChannel + 1),
	}
}

// JoinPatch is the guest's write that moves a waiting room to ready and
// schedules the first round.
func JoinPatch(guestToken uuid.UUID, now time.Time, rules Rules) roomstore.Patch {
	start := now.Add(rules.StartDelay)
	return roomstore.Patch{
		"status":    string(models.RoomStatusReady),
		"startTime": models.Millis(start),
		"endTime":   models.Millis(start.Add(rules.RoundDuration)),
		"guest":     guestToken.String(),
	}
}

// NextRound builds the document the host writes to start a rematch. Seat
// ownership carries over from prev.
func NextRound(prev *models.RoomDocument, target models.Color, now time.Time, rules Rules) *models.RoomDocument {
	start := now.Add(rules.StartDelay)
	return &models.RoomDocument{
		TargetColor: target,
		Status:      models.RoomStatusReady,
		StartTime:   models.Millis(start),
		EndTime:     models.Millis(start.Add(rules.RoundDuration)),
		P1:          models.EmptySlot(),
		P2:          models.EmptySlot(),
		Rematch:     &models.Rematch{},
		Host:        prev.Host,
		Guest:       prev.Guest,
		Round:       max(prev.Round, 1) + 1,
	}
}

func mixPatch(role models.Role, mix models.Color) roomstore.Patch {
	slot := role.Slot()
	return roomstore.Patch{
		slot + "/r": mix.R,
		slot + "/g": mix.G,
		slot + "/b": mix.B,
	}
}

func scorePatch(role models.Role, mix models.Color, score float64) roomstore.Patch {
	p := mixPatch(role, mix)
	p[role.Slot()+"/score"] = score
	return p
}
