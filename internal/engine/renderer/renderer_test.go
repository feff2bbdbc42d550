package renderer

import (
	"testing"

	"github.com/Faultbox/midgard-world/internal/engine/debug"
)

func TestLineVertexLayout(t *testing.T) {
	if lineStride != debug.VertexStride*4 {
		t.Errorf("stride = %d bytes, want %d", lineStride, debug.VertexStride*4)
	}
	if linePositionOffset != 0 {
		t.Errorf("position offset = %d", linePositionOffset)
	}
	// Color follows the three position floats and ends the vertex.
	if lineColorOffset != 3*4 || lineColorOffset+3*4 != lineStride {
		t.Errorf("color offset = %d, stride = %d", lineColorOffset, lineStride)
	}
}
