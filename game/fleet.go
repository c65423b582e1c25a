package game

import (
	"github.com/flotilla-net/flotilla/battleship"
	"github.com/flotilla-net/flotilla/config"
)

// Fleet is the narrow surface the session consumes from the rules engine.
type Fleet interface {
	FireAt(row, col int) (battleship.Outcome, string)
	AllSunk() bool
	View() string
}

// NewFleet returns a standard field with ships already placed. Each session
// places fresh fleets for both seats, boards never carry over between
// matches.
func NewFleet() Fleet {
	f := battleship.NewField(config.BoardSize)
	f.PlaceFleetRandomly()
	return f
}
