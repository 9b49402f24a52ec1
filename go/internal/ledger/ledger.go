// Package ledger keeps each user's gold balance in the shared store.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/huemix/go/internal/models"
	"github.com/mcdev12/huemix/go/internal/roomstore"
	"github.com/rs/zerolog/log"
)

// ErrInsufficientGold is returned by Spend when the balance is too low.
var ErrInsufficientGold = errors.New("insufficient gold")

// Ledger reads and writes users/{id} profile records.
type Ledger struct {
	store roomstore.Store
}

// New creates a ledger over store.
func New(store roomstore.Store) *Ledger {
	return &Ledger{store: store}
}

// EnsureProfile returns the user's profile, creating an empty one on first
// sign-in.
func (l *Ledger) EnsureProfile(ctx context.Context, userID uuid.UUID, displayName string) (models.Profile, error) {
	p, err := l.profile(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, roomstore.ErrNotFound) {
		return models.Profile{}, err
	}

	p = models.Profile{Gold: 0, DisplayName: displayName, PhotoURL: models.AvatarURL(userID)}
	raw, err := json.Marshal(p)
	if err != nil {
		return models.Profile{}, fmt.Errorf("encode profile: %w", err)
	}
	err = l.store.Create(ctx, models.UserKey(userID), raw)
	if errors.Is(err, roomstore.ErrExists) {
		// Signed in elsewhere at the same moment.
		return l.profile(ctx, userID)
	}
	if err != nil {
		return models.Profile{}, fmt.Errorf("create profile %s: %w", userID, err)
	}

	log.Info().Str("user_id", userID.String()).Str("display_name", displayName).Msg("created profile")
	return p, nil
}

// Balance returns the user's current gold.
func (l *Ledger) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	p, err := l.profile(ctx, userID)
	if err != nil {
		return 0, err
	}
	return p.Gold, nil
}

// Watch calls fn with the profile now and after every change.
func (l *Ledger) Watch(ctx context.Context, userID uuid.UUID, fn func(models.Profile)) (roomstore.Subscription, error) {
	return l.store.Subscribe(ctx, models.UserKey(userID), func(raw json.RawMessage) {
		p, err := models.DecodeProfile(raw)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("failed to decode profile")
			return
		}
		if p == nil {
			return
		}
		fn(*p)
	})
}

// Award adds amount to the balance.
func (l *Ledger) Award(ctx context.Context, userID uuid.UUID, amount int) error {
	p, err := l.profile(ctx, userID)
	if err != nil {
		return err
	}
	return l.setGold(ctx, userID, p.Gold+amount)
}

// Spend removes amount from the balance, refusing to go below zero.
func (l *Ledger) Spend(ctx context.Context, userID uuid.UUID, amount int) error {
	p, err := l.profile(ctx, userID)
	if err != nil {
		return err
	}
	if p.Gold < amount {
		return fmt.Errorf("spend %d with balance %d: %w", amount, p.Gold, ErrInsufficientGold)
	}
	return l.setGold(ctx, userID, p.Gold-amount)
}

func (l *Ledger) setGold(ctx context.Context, userID uuid.UUID, gold int) error {
	if err := l.store.Update(ctx, models.UserKey(userID), roomstore.Patch{"gold": gold}); err != nil {
		return fmt.Errorf("update gold for %s: %w", userID, err)
	}
	return nil
}

func (l *Ledger) profile(ctx context.Context, userID uuid.UUID) (models.Profile, error) {
	raw, err := l.store.Read(ctx, models.UserKey(userID))
	if err != nil {
		return models.Profile{}, fmt.Errorf("read profile %s: %w", userID, err)
	}
	p, err := models.DecodeProfile(raw)
	if err != nil {
		return models.Profile{}, err
	}
	if p == nil {
		return models.Profile{}, fmt.Errorf("read profile %s: %w", userID, roomstore.ErrNotFound)
	}
	return *p, nil
}
