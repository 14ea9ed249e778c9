package gpu

import (
	"testing"

	"github.com/gogpu/gputypes"
)

func TestGridValidate(t *testing.T) {
	if err := (Grid{Width: 32, Height: 32}).Validate(); err != nil {
		t.Errorf("Validate(32x32) = %v", err)
	}
	for _, g := range []Grid{{0, 4}, {4, 0}, {}} {
		if err := g.Validate(); err == nil {
			t.Errorf("Validate(%dx%d) = nil, want error", g.Width, g.Height)
		}
	}
}

func TestGridSizes(t *testing.T) {
	g := Grid{Width: 32, Height: 16}
	if g.Cells() != 512 {
		t.Errorf("Cells() = %d, want 512", g.Cells())
	}
	if g.StateBufferSize() != 2048 {
		t.Errorf("StateBufferSize() = %d, want 2048", g.StateBufferSize())
	}

	tests := []struct {
		grid   Grid
		wx, wy uint32
	}{
		{Grid{32, 32}, 4, 4},
		{Grid{33, 8}, 5, 1},
		{Grid{1, 1}, 1, 1},
	}
	for _, tt := range tests {
		wx, wy := tt.grid.Workgroups(WorkgroupEdge)
		if wx != tt.wx || wy != tt.wy {
			t.Errorf("Workgroups(%v) = %d,%d, want %d,%d", tt.grid, wx, wy, tt.wx, tt.wy)
		}
	}
}

func TestUniformEncoding(t *testing.T) {
	data := Grid{Width: 32, Height: 24}.EncodeUniform()
	if len(data) != 8 {
		t.Fatalf("len = %d, want 8", len(data))
	}
	w, h, err := DecodeUniform(data)
	if err != nil {
		t.Fatalf("DecodeUniform: %v", err)
	}
	if w != 32 || h != 24 {
		t.Errorf("uniform = [%v, %v], want [32, 24]", w, h)
	}
	if _, _, err := DecodeUniform(data[:4]); err == nil {
		t.Error("DecodeUniform(short) = nil error")
	}
}

func TestQuad(t *testing.T) {
	if QuadVertexCount != 6 {
		t.Errorf("QuadVertexCount = %d, want 6", QuadVertexCount)
	}
	if n := len(QuadVertexData()); n != 48 {
		t.Errorf("vertex data = %d bytes, want 48", n)
	}

	l := QuadLayout()
	if l.ArrayStride != 8 {
		t.Errorf("ArrayStride = %d, want 8", l.ArrayStride)
	}
	if len(l.Attributes) != 1 {
		t.Fatalf("attributes = %d, want 1", len(l.Attributes))
	}
	a := l.Attributes[0]
	if a.Format != gputypes.VertexFormatFloat32x2 || a.Offset != 0 || a.ShaderLocation != 0 {
		t.Errorf("attribute = %+v, want float32x2 at offset 0, location 0", a)
	}
}
