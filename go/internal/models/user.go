package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Profile is the per-user balance record stored at users/{id}.
type Profile struct {
	Gold        int    `json:"gold"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// UserKey is the store key of a user's profile.
func UserKey(userID uuid.UUID) string { return "users/" + userID.String() }

// AvatarURL derives the generated avatar for a user id.
func AvatarURL(userID uuid.UUID) string {
	return fmt.Sprintf("https://api.dicebear.com/9.x/shapes/svg?seed=%s&backgroundColor=b6e3f4,c0aede,d1d4f9,ffd5dc,ffdfbf", userID)
}

// DecodeProfile parses a raw profile; nil input means no profile yet.
func DecodeProfile(raw json.RawMessage) (*Profile, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}
