package models

import "fmt"

// MaxChannel is the largest value a single RGB channel can hold.
const MaxChannel = 255

// Channel names one of the three pourable color components.
type Channel string

const (
	ChannelRed   Channel = "r"
	ChannelGreen Channel = "g"
	ChannelBlue  Channel = "b"
)

// ParseChannel accepts "r", "g", "b" or their long names.
func ParseChannel(s string) (Channel, bool) {
	switch s {
	case "r", "red":
		return ChannelRed, true
	case "g", "green":
		return ChannelGreen, true
	case "b", "blue":
		return ChannelBlue, true
	default:
		return "", false
	}
}

// Color is an RGB triple, each component in [0,255].
type Color struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// Black is the empty mix every round starts from.
var Black = Color{}

// Get returns the value of a single channel.
func (c Color) Get(ch Channel) int {
	switch ch {
	case ChannelRed:
		return c.R
	case ChannelGreen:
		return c.G
	case ChannelBlue:
		return c.B
	}
	return 0
}

// Pour returns c with ch raised by step, capped at MaxChannel.
func (c Color) Pour(ch Channel, step int) Color {
	switch ch {
	case ChannelRed:
		c.R = min(MaxChannel, c.R+step)
	case ChannelGreen:
		c.G = min(MaxChannel, c.G+step)
	case ChannelBlue:
		c.B = min(MaxChannel, c.B+step)
	}
	return c
}

// Valid reports whether every channel is within [0,255].
func (c Color) Valid() bool {
	return inRange(c.R) && inRange(c.G) && inRange(c.B)
}

func (c Color) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", c.R, c.G, c.B)
}

// Hex formats c as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func inRange(v int) bool { return v >= 0 && v <= MaxChannel }
