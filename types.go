package cellgrid

import "github.com/gogpu/cellgrid/internal/gpu"

// Surface supplies the color attachment for each frame.
type Surface = gpu.Surface

// SurfaceFunc adapts a function to Surface.
type SurfaceFunc = gpu.SurfaceFunc

// OffscreenSurface is a headless Surface.
type OffscreenSurface = gpu.OffscreenSurface

// FrameReport describes what one tick recorded.
type FrameReport = gpu.FrameReport

// Parity selects binding set A or B.
type Parity = gpu.Parity

// Binding set parities.
const (
	ParityA = gpu.ParityA
	ParityB = gpu.ParityB
)

// SeedPattern returns the initial state of cell i.
type SeedPattern = gpu.SeedPattern

// ShaderProgram is a WGSL source with entry point names.
type ShaderProgram = gpu.ShaderProgram

// Seed patterns.
var (
	EveryThird  SeedPattern = gpu.EveryThird
	Alternating SeedPattern = gpu.Alternating
	Empty       SeedPattern = gpu.Empty
)

// Glider places one glider in the top-left corner of a grid of the given
// width.
func Glider(width int) SeedPattern { return gpu.Glider(width) }

// PatternNames lists the seed pattern names accepted in Config.
func PatternNames() []string { return gpu.PatternNames() }

// CellProgram returns the built-in render-only shader.
func CellProgram() ShaderProgram { return gpu.CellProgram() }

// LifeProgram returns the built-in shader with a Game of Life compute
// stage.
func LifeProgram() ShaderProgram { return gpu.LifeProgram() }

// Grid is the simulation size in cells.
type Grid = gpu.Grid
