package scoring

// Outcome is a round result from one player's point of view.
type Outcome string

const (
	Win  Outcome = "win"
	Lose Outcome = "lose"
	Draw Outcome = "draw"
)

// Resolve compares a player's score with the opponent's.
func Resolve(mine, theirs float64) Outcome {
	switch {
	case mine > theirs:
		return Win
	case mine < theirs:
		return Lose
	default:
		return Draw
	}
}

// Title returns the result banner for the outcome.
func (o Outcome) Title() string {
	switch o {
	case Win:
		return "VICTORY!"
	case Lose:
		return "DEFEAT"
	default:
		return "DRAW"
	}
}

// Emoji returns the result icon for the outcome.
func (o Outcome) Emoji() string {
	switch o {
	case Win:
		return "🏆"
	case Lose:
		return "💀"
	default:
		return "🤝"
	}
}
