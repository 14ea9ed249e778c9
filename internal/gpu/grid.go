package gpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

// Grid is the immutable size of the cell grid.
type Grid struct {
	Width  uint32
	Height uint32
}

// Validate reports an error if either dimension is zero.
func (g Grid) Validate() error {
	if g.Width == 0 || g.Height == 0 {
		return fmt.Errorf("gpu: invalid grid %dx%d", g.Width, g.Height)
	}
	return nil
}

// Cells returns Width*Height.
func (g Grid) Cells() uint32 { return g.Width * g.Height }

// StateBufferSize is the byte size of one cell state buffer.
func (g Grid) StateBufferSize() uint64 { return uint64(g.Cells()) * 4 }

// Workgroups returns the compute dispatch size covering the grid with
// square workgroups of the given edge.
func (g Grid) Workgroups(edge uint32) (x, y uint32) {
	return (g.Width + edge - 1) / edge, (g.Height + edge - 1) / edge
}

// uniformSize is vec2<f32>.
const uniformSize = 8

// EncodeUniform packs the grid as vec2<f32>(width, height).
func (g Grid) EncodeUniform() []byte {
	out := make([]byte, uniformSize)
	binary.LittleEndian.PutUint32(out[0:4], math.Float32bits(float32(g.Width)))
	binary.LittleEndian.PutUint32(out[4:8], math.Float32bits(float32(g.Height)))
	return out
}

// DecodeUniform is the inverse of EncodeUniform.
func DecodeUniform(data []byte) (w, h float32, err error) {
	if len(data) < uniformSize {
		return 0, 0, fmt.Errorf("gpu: uniform data is %d bytes, want %d", len(data), uniformSize)
	}
	w = math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
	h = math.Float32frombits(binary.LittleEndian.Uint32(data[4:8]))
	return w, h, nil
}

// quadVertices is one cell quad as two triangles in cell-local clip
// space. The shader scales and offsets it per instance.
var quadVertices = [...]float32{
	-0.8, -0.8,
	0.8, -0.8,
	0.8, 0.8,

	-0.8, -0.8,
	0.8, 0.8,
	-0.8, 0.8,
}

// QuadVertexCount is the number of vertices drawn per cell.
const QuadVertexCount = uint32(len(quadVertices) / 2)

// quadStride is the byte size of one vec2<f32> vertex.
const quadStride = 8

// QuadLayout returns the layout of the quad vertex buffer: a single
// vec2<f32> position attribute at offset 0, shader location 0.
func QuadLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: quadStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0}, // position
		},
	}
}

// QuadVertexData returns the encoded quad vertex buffer contents.
func QuadVertexData() []byte {
	out := make([]byte, len(quadVertices)*4)
	for i, v := range quadVertices {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
	return out
}
