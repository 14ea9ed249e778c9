package gpu

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// SeedPattern returns the initial state (0 or 1) of the cell at linear
// index i. Patterns must be pure functions of the index.
type SeedPattern func(i int) uint32

// EveryThird marks every third cell alive, starting at index 0.
func EveryThird(i int) uint32 {
	if i%3 == 0 {
		return 1
	}
	return 0
}

// Alternating marks cells alive by the parity of their linear index.
func Alternating(i int) uint32 {
	return uint32(i % 2) //nolint:gosec // always 0 or 1
}

// Empty leaves every cell dead.
func Empty(int) uint32 { return 0 }

// Glider returns a pattern placing one glider in the top-left corner of a
// grid of the given width. Cells outside the glider are dead.
func Glider(width int) SeedPattern {
	alive := map[[2]int]bool{
		{1, 0}: true,
		{2, 1}: true,
		{0, 2}: true, {1, 2}: true, {2, 2}: true,
	}
	return func(i int) uint32 {
		if width <= 0 {
			return 0
		}
		if alive[[2]int{i % width, i / width}] {
			return 1
		}
		return 0
	}
}

// NamedPattern resolves a pattern by name for configuration files and
// flags. width is the grid width, used by spatial patterns.
func NamedPattern(name string, width int) (SeedPattern, error) {
	switch name {
	case "every-third":
		return EveryThird, nil
	case "alternating":
		return Alternating, nil
	case "empty":
		return Empty, nil
	case "glider":
		return Glider(width), nil
	default:
		return nil, fmt.Errorf("gpu: unknown seed pattern %q (known: %v)", name, PatternNames())
	}
}

// PatternNames lists the names accepted by NamedPattern.
func PatternNames() []string {
	names := []string{"every-third", "alternating", "empty", "glider"}
	sort.Strings(names)
	return names
}

// SeedCells evaluates pattern for n cells.
func SeedCells(n int, pattern SeedPattern) []uint32 {
	cells := make([]uint32, n)
	for i := range cells {
		cells[i] = pattern(i)
	}
	return cells
}

// EncodeCells packs cell states as little-endian uint32 values, the layout
// of array<u32> in WGSL storage buffers.
func EncodeCells(cells []uint32) []byte {
	out := make([]byte, len(cells)*4)
	for i, c := range cells {
		binary.LittleEndian.PutUint32(out[i*4:], c)
	}
	return out
}

// DecodeCells is the inverse of EncodeCells. Trailing bytes that do not
// form a full uint32 are ignored.
func DecodeCells(data []byte) []uint32 {
	cells := make([]uint32, len(data)/4)
	for i := range cells {
		cells[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return cells
}
