package session

import "time"

// Rules are the timing and economy constants of a match.
type Rules struct {
	RoundDuration time.Duration `yaml:"round_duration"`
	StartDelay    time.Duration `yaml:"start_delay"`
	// SuddenDeath is how long the slower player has once the first score lands.
	SuddenDeath  time.Duration `yaml:"sudden_death"`
	RematchDelay time.Duration `yaml:"rematch_delay"`
	UrgentAt     time.Duration `yaml:"urgent_at"`

	TickInterval    time.Duration `yaml:"tick_interval"`
	PourStep        int           `yaml:"pour_step"`
	MixSyncInterval time.Duration `yaml:"mix_sync_interval"`

	MemoryMode     bool          `yaml:"memory_mode"`
	HideAfter      time.Duration `yaml:"hide_after"`
	RevealCost     int           `yaml:"reveal_cost"`
	RevealDuration time.Duration `yaml:"reveal_duration"`
	WinBonus       int           `yaml:"win_bonus"`
}

// DefaultRules returns the standard match rules.
func DefaultRules() Rules {
	return Rules{
		RoundDuration:   60 * time.Second,
		StartDelay:      time.Second,
		SuddenDeath:     5 * time.Second,
		RematchDelay:    500 * time.Millisecond,
		UrgentAt:        10 * time.Second,
		TickInterval:    20 * time.Millisecond,
		PourStep:        4,
		MixSyncInterval: 50 * time.Millisecond,
		MemoryMode:      true,
		HideAfter:       5 * time.Second,
		RevealCost:      20,
		RevealDuration:  5 * time.Second,
		WinBonus:        50,
	}
}
