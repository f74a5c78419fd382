package viz

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/collab-canvas/pkg/canvas"
)

func TestRenderHistory(t *testing.T) {
	history := canvas.History{
		Snapshot: canvas.Snapshot{
			RoomID: "r1",
			Operations: []canvas.Operation{
				{ID: "s1", AuthorID: "0123456789abcdef", Type: canvas.Brush, Points: []canvas.Point{{X: 1, Y: 1}}},
				{ID: "s2", AuthorID: "b", Type: canvas.Eraser, Points: []canvas.Point{{X: 1, Y: 1}, {X: 2, Y: 2}}},
			},
		},
		UndoStacks: map[string][]canvas.Operation{
			"b": {{ID: "s3", AuthorID: "b", Type: canvas.Brush}},
			"":  {{ID: "s4", AuthorID: "c", Type: canvas.Brush}},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, RenderHistory(history, &buf))
	out := buf.String()
	assert.Contains(t, out, "<svg")
	assert.Contains(t, out, "s1 brush by 01234567")
	assert.Contains(t, out, "undo stack b")
	assert.Contains(t, out, "undo stack room")
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "#3 x eraser by abc (0 pts)", label(3, canvas.Operation{ID: "x", AuthorID: "abc", Type: canvas.Eraser}))
}
