package battleship

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"unicode"

	"github.com/willf/bitset"
)

const DefaultSize = 10

type Outcome int

const (
	Miss Outcome = iota
	Hit
	AlreadyShot
)

type ShipSpec struct {
	Name string
	Size int
}

var Fleet = []ShipSpec{
	{"Carrier", 5},
	{"Battleship", 4},
	{"Cruiser", 3},
	{"Submarine", 3},
	{"Destroyer", 2},
}

type ship struct {
	name  string
	cells *bitset.BitSet
}

// Field is one participant's grid. Shots and hits are tracked as bitsets over
// the flattened grid, a ship is sunk when every one of its cells is hit.
type Field struct {
	size  int
	ships []*ship
	shots *bitset.BitSet
	hits  *bitset.BitSet
}

func NewField(size int) *Field {
	if size <= 0 {
		size = DefaultSize
	}
	return &Field{
		size:  size,
		shots: bitset.New(uint(size * size)),
		hits:  bitset.New(uint(size * size)),
	}
}

func (f *Field) Size() int {
	return f.size
}

// PlaceFleetRandomly drops the standard fleet on the grid, retrying random
// positions until each ship fits without overlap.
func (f *Field) PlaceFleetRandomly() {
	occupied := bitset.New(uint(f.size * f.size))
	for _, spec := range Fleet {
		for {
			horizontal := rand.Intn(2) == 0
			row, col := rand.Intn(f.size), rand.Intn(f.size)
			if horizontal && col+spec.Size > f.size {
				continue
			}
			if !horizontal && row+spec.Size > f.size {
				continue
			}
			cells := bitset.New(uint(f.size * f.size))
			for i := 0; i < spec.Size; i++ {
				if horizontal {
					cells.Set(uint(row*f.size + col + i))
				} else {
					cells.Set(uint((row+i)*f.size + col))
				}
			}
			if occupied.Intersection(cells).Any() {
				continue
			}
			occupied.InPlaceUnion(cells)
			f.ships = append(f.ships, &ship{name: spec.Name, cells: cells})
			break
		}
	}
}

// FireAt resolves one shot. The second return is the name of a ship this
// shot finished off, or empty.
func (f *Field) FireAt(row, col int) (Outcome, string) {
	if row < 0 || row >= f.size || col < 0 || col >= f.size {
		return Miss, ""
	}
	cell := uint(row*f.size + col)
	if f.shots.Test(cell) {
		return AlreadyShot, ""
	}
	f.shots.Set(cell)
	for _, s := range f.ships {
		if !s.cells.Test(cell) {
			continue
		}
		f.hits.Set(cell)
		if s.cells.Difference(f.hits).None() {
			return Hit, s.name
		}
		return Hit, ""
	}
	return Miss, ""
}

func (f *Field) AllSunk() bool {
	for _, s := range f.ships {
		if s.cells.Difference(f.hits).Any() {
			return false
		}
	}
	return len(f.ships) > 0
}

// View renders the grid as the opponent and spectators see it: misses as o,
// hits as X, everything else unknown. Ship positions are never shown.
func (f *Field) View() string {
	var b strings.Builder
	b.WriteString("  ")
	for c := 0; c < f.size; c++ {
		b.WriteString(fmt.Sprintf("%3d", c+1))
	}
	for r := 0; r < f.size; r++ {
		b.WriteString(fmt.Sprintf("\n%-2c", 'A'+r))
		for c := 0; c < f.size; c++ {
			cell := uint(r*f.size + c)
			mark := "."
			if f.hits.Test(cell) {
				mark = "X"
			} else if f.shots.Test(cell) {
				mark = "o"
			}
			b.WriteString(fmt.Sprintf("%3s", mark))
		}
	}
	return b.String()
}

// ParseTarget turns a coordinate like "B5" into zero-based row and column.
func ParseTarget(text string) (int, int, error) {
	return parseTarget(text, DefaultSize)
}

func parseTarget(text string, size int) (int, int, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if len(s) < 2 {
		return 0, 0, fmt.Errorf("invalid coordinate %q", text)
	}
	rowRune := rune(s[0])
	if !unicode.IsLetter(rowRune) {
		return 0, 0, fmt.Errorf("invalid coordinate %q", text)
	}
	col, err := strconv.Atoi(s[1:])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid coordinate %q", text)
	}
	row := int(rowRune - 'A')
	if row < 0 || row >= size || col < 1 || col > size {
		return 0, 0, fmt.Errorf("coordinate %q out of range", text)
	}
	return row, col - 1, nil
}
