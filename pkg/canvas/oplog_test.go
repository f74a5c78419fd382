package canvas

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func op(id, author string, kind StrokeType) Operation {
	return Operation{ID: id, AuthorID: author, Type: kind, Color: "#000", Width: 2, Points: line(2)}
}

func ids(ops []Operation) []string {
	out := make([]string, len(ops))
	for i, o := range ops {
		out[i] = o.ID
	}
	return out
}

func TestOperationLog_Append(t *testing.T) {
	l := NewOperationLog(0, "", "")
	assert.Equal(t, UndoPerAuthor, l.Scope())
	assert.Equal(t, ClearBrushOnly, l.Policy())

	assert.True(t, l.Append(op("a1", "A", Brush)))
	assert.False(t, l.Append(op("a1", "B", Brush)), "duplicate ids are ignored")
	assert.True(t, l.Append(op("b1", "B", Eraser)))
	assert.Equal(t, []string{"a1", "b1"}, ids(l.Operations()))

	ops := l.Operations()
	ops[0].ID = "mutated"
	assert.Equal(t, "a1", l.Operations()[0].ID)
}

func TestOperationLog_Truncates(t *testing.T) {
	l := NewOperationLog(3, UndoPerAuthor, ClearBrushOnly)
	for i := 1; i <= 5; i++ {
		require.True(t, l.Append(op(fmt.Sprintf("s%d", i), "A", Brush)))
		assert.LessOrEqual(t, l.Len(), 3)
	}
	assert.Equal(t, []string{"s3", "s4", "s5"}, ids(l.Operations()))
	assert.Equal(t, 2, l.Truncated())
	assert.False(t, l.Contains("s1"))
	assert.True(t, l.Contains("s5"))
}

func TestOperationLog_UndoRedo(t *testing.T) {
	l := NewOperationLog(10, UndoPerAuthor, ClearBrushOnly)
	l.Append(op("a1", "A", Brush))
	l.Append(op("b1", "B", Brush))
	l.Append(op("a2", "A", Brush))

	undone, ok := l.Undo("A")
	require.True(t, ok)
	assert.Equal(t, "a2", undone.ID)
	undone, ok = l.Undo("A")
	require.True(t, ok)
	assert.Equal(t, "a1", undone.ID)
	assert.Equal(t, []string{"b1"}, ids(l.Operations()))
	assert.Equal(t, 2, l.UndoDepth("A"))

	_, ok = l.Undo("A")
	assert.False(t, ok, "nothing of A's left")
	_, ok = l.Redo("B")
	assert.False(t, ok, "B never undid anything")

	redone, ok := l.Redo("A")
	require.True(t, ok)
	assert.Equal(t, "a1", redone.ID)
	assert.Equal(t, []string{"b1", "a1"}, ids(l.Operations()), "redo appends at the tail")

	_, ok = l.Redo("A")
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"a1", "b1", "a2"}, ids(l.Operations()))
	assert.Equal(t, 0, l.UndoDepth("A"))
}

func TestOperationLog_AppendResetsOnlyAuthorStack(t *testing.T) {
	l := NewOperationLog(10, UndoPerAuthor, ClearBrushOnly)
	l.Append(op("a1", "A", Brush))
	l.Append(op("b1", "B", Brush))
	l.Undo("A")
	l.Undo("B")

	l.Append(op("b2", "B", Brush))
	_, ok := l.Redo("B")
	assert.False(t, ok)

	redone, ok := l.Redo("A")
	require.True(t, ok)
	assert.Equal(t, "a1", redone.ID)
}

func TestOperationLog_RedoDiscardsRecommittedID(t *testing.T) {
	l := NewOperationLog(10, UndoPerAuthor, ClearBrushOnly)
	l.Append(op("s1", "A", Brush))
	l.Undo("A")
	l.Append(op("s1", "B", Brush))

	_, ok := l.Redo("A")
	assert.False(t, ok)
	assert.Equal(t, 0, l.UndoDepth("A"))
	assert.Equal(t, 1, l.Len())
}

func TestOperationLog_ClearBrushOnly(t *testing.T) {
	l := NewOperationLog(10, UndoPerAuthor, ClearBrushOnly)
	l.Append(op("a1", "A", Brush))
	l.Append(op("e1", "A", Eraser))
	l.Append(op("b1", "B", Brush))
	l.Append(op("a2", "A", Brush))
	l.Append(op("e2", "A", Eraser))
	l.Undo("A") // e2
	l.Undo("A") // a2

	assert.Equal(t, 1, l.Clear("A"))
	assert.Equal(t, []string{"e1", "b1"}, ids(l.Operations()))

	redone, ok := l.Redo("A")
	require.True(t, ok)
	assert.Equal(t, "e2", redone.ID, "undone brush strokes cannot come back, erasers can")
	_, ok = l.Redo("A")
	assert.False(t, ok)

	assert.Equal(t, 0, l.Clear("A"))
}

func TestOperationLog_ClearAll(t *testing.T) {
	l := NewOperationLog(10, UndoPerAuthor, ClearEverything)
	l.Append(op("a1", "A", Brush))
	l.Append(op("e1", "A", Eraser))
	l.Append(op("b1", "B", Brush))
	l.Append(op("a2", "A", Brush))
	l.Undo("A")

	assert.Equal(t, 2, l.Clear("A"))
	assert.Equal(t, []string{"b1"}, ids(l.Operations()))
	assert.Equal(t, 0, l.UndoDepth("A"))
}

func TestOperationLog_ClearNeverTouchesOthers(t *testing.T) {
	for _, policy := range []ClearPolicy{ClearBrushOnly, ClearEverything} {
		t.Run(string(policy), func(t *testing.T) {
			l := NewOperationLog(20, UndoPerAuthor, policy)
			for i := 0; i < 5; i++ {
				l.Append(op(fmt.Sprintf("a%d", i), "A", Brush))
				l.Append(op(fmt.Sprintf("b%d", i), "B", Brush))
				l.Append(op(fmt.Sprintf("c%d", i), "C", Eraser))
			}
			l.Undo("B")
			l.Clear("A")
			for _, o := range l.Operations() {
				assert.NotEqual(t, "A", o.AuthorID)
			}
			assert.Equal(t, 9, l.Len())
			assert.Equal(t, 1, l.UndoDepth("B"))
		})
	}
}

func TestOperationLog_Global(t *testing.T) {
	l := NewOperationLog(10, UndoGlobal, ClearBrushOnly)
	l.Append(op("a1", "A", Brush))
	l.Append(op("b1", "B", Brush))

	undone, ok := l.Undo("A")
	require.True(t, ok)
	assert.Equal(t, "b1", undone.ID, "global undo takes the most recent operation of anyone")
	assert.Equal(t, 1, l.UndoDepth("B"), "there is one room-wide stack")
	assert.Contains(t, l.UndoStacks(), roomWideKey)

	redone, ok := l.Redo("B")
	require.True(t, ok)
	assert.Equal(t, "b1", redone.ID)

	l.Undo("B")
	l.Append(op("c1", "C", Brush))
	_, ok = l.GlobalRedo()
	assert.False(t, ok, "any append clears the room-wide stack")
}

func TestOperationLog_GlobalClearAllPrunesStack(t *testing.T) {
	l := NewOperationLog(10, UndoGlobal, ClearEverything)
	l.Append(op("a1", "A", Brush))
	l.Append(op("b1", "B", Brush))
	l.Append(op("a2", "A", Brush))
	l.GlobalUndo()
	l.GlobalUndo()

	l.Clear("A")
	assert.Empty(t, l.Operations())
	redone, ok := l.GlobalRedo()
	require.True(t, ok)
	assert.Equal(t, "b1", redone.ID)
	_, ok = l.GlobalRedo()
	assert.False(t, ok)
}

func TestParseScopes(t *testing.T) {
	s, err := ParseUndoScope("global")
	require.NoError(t, err)
	assert.Equal(t, UndoGlobal, s)
	_, err = ParseUndoScope("mine")
	assert.Error(t, err)

	p, err := ParseClearPolicy("all")
	require.NoError(t, err)
	assert.Equal(t, ClearEverything, p)
	_, err = ParseClearPolicy("")
	assert.Error(t, err)
}

func TestStackStore(t *testing.T) {
	s := newStackStore()
	_, ok := s.pop("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, s.depth("missing"))

	s.push("A", op("1", "A", Brush))
	s.push("A", op("2", "A", Eraser))
	s.push("B", op("3", "B", Brush))

	clone := s.clone()
	top, ok := s.pop("A")
	require.True(t, ok)
	assert.Equal(t, "2", top.ID)
	assert.Len(t, clone["A"], 2, "clones are independent")

	assert.Equal(t, 1, s.removeWhere("A", func(o Operation) bool { return o.Type == Brush }))
	assert.Equal(t, 0, s.depth("A"))
	assert.NotContains(t, s.stacks, "A")
	assert.Equal(t, 1, s.depth("B"))

	s.reset("B")
	assert.Empty(t, s.stacks)
}
