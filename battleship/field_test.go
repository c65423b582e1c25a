package battleship

import (
	"strings"
	"testing"

	"github.com/willf/bitset"
	"github.com/stretchr/testify/require"
)

func placeShip(f *Field, name string, row, col, size int, horizontal bool) {
	cells := bitset.New(uint(f.size * f.size))
	for i := 0; i < size; i++ {
		if horizontal {
			cells.Set(uint(row*f.size + col + i))
		} else {
			cells.Set(uint((row+i)*f.size + col))
		}
	}
	f.ships = append(f.ships, &ship{name: name, cells: cells})
}

func TestFieldFireAt(t *testing.T) {
	require := require.New(t)

	f := NewField(10)
	placeShip(f, "Destroyer", 1, 4, 2, true) // B5 B6

	out, sunk := f.FireAt(0, 0)
	require.Equal(Miss, out)
	require.Equal("", sunk)

	out, sunk = f.FireAt(0, 0)
	require.Equal(AlreadyShot, out)
	require.Equal("", sunk)

	out, sunk = f.FireAt(1, 4)
	require.Equal(Hit, out)
	require.Equal("", sunk)
	require.False(f.AllSunk())

	out, sunk = f.FireAt(1, 4)
	require.Equal(AlreadyShot, out)

	out, sunk = f.FireAt(1, 5)
	require.Equal(Hit, out)
	require.Equal("Destroyer", sunk)
	require.True(f.AllSunk())
}

func TestFieldPlacement(t *testing.T) {
	require := require.New(t)

	for i := 0; i < 32; i++ {
		f := NewField(10)
		f.PlaceFleetRandomly()
		require.Len(f.ships, len(Fleet))

		occupied := bitset.New(uint(f.size * f.size))
		var total uint
		for _, s := range f.ships {
			require.False(occupied.Intersection(s.cells).Any())
			occupied.InPlaceUnion(s.cells)
			total += s.cells.Count()
		}
		require.Equal(uint(5+4+3+3+2), total)
		require.False(f.AllSunk())
	}
}

func TestFieldView(t *testing.T) {
	require := require.New(t)

	f := NewField(10)
	placeShip(f, "Destroyer", 0, 0, 2, true)
	f.FireAt(0, 0) // hit A1
	f.FireAt(2, 2) // miss C3

	view := f.View()
	lines := strings.Split(view, "\n")
	require.Len(lines, 11)
	require.Contains(lines[0], "1")
	require.Contains(lines[0], "10")
	require.True(strings.HasPrefix(lines[1], "A"))
	require.Contains(lines[1], "X")
	require.Contains(lines[3], "o")
	// the unhit half of the destroyer stays hidden
	require.NotContains(lines[1][2:], "o")
	require.Equal(1, strings.Count(lines[1], "X"))
}

func TestParseTarget(t *testing.T) {
	require := require.New(t)

	row, col, err := ParseTarget("B5")
	require.Nil(err)
	require.Equal(1, row)
	require.Equal(4, col)

	row, col, err = ParseTarget(" j10 ")
	require.Nil(err)
	require.Equal(9, row)
	require.Equal(9, col)

	row, col, err = ParseTarget("a1")
	require.Nil(err)
	require.Equal(0, row)
	require.Equal(0, col)

	for _, bad := range []string{"", "B", "5B", "K5", "A0", "A11", "BB", "B5X", "!3"} {
		_, _, err = ParseTarget(bad)
		require.NotNil(err, "target %q", bad)
	}
}
