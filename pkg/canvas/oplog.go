package canvas

import (
	"fmt"
)

// UndoScope selects which undo model a log runs. Exactly one is active per log.
type UndoScope string

const (
	// UndoPerAuthor undoes only the caller's own most recent operation.
	UndoPerAuthor UndoScope = "per-author"
	// UndoGlobal undoes the most recent operation of any author, with one room-wide redo stack.
	UndoGlobal UndoScope = "global"
)

func ParseUndoScope(s string) (UndoScope, error) {
	switch UndoScope(s) {
	case UndoPerAuthor, UndoGlobal:
		return UndoScope(s), nil
	}
	return "", fmt.Errorf("unknown undo scope %q", s)
}

// ClearPolicy selects what "clear mine" removes.
type ClearPolicy string

const (
	// ClearBrushOnly removes the author's brush strokes and keeps erasers so erased regions stay erased.
	ClearBrushOnly ClearPolicy = "brush-only"
	// ClearEverything removes every operation by the author.
	ClearEverything ClearPolicy = "all"
)

func ParseClearPolicy(s string) (ClearPolicy, error) {
	switch ClearPolicy(s) {
	case ClearBrushOnly, ClearEverything:
		return ClearPolicy(s), nil
	}
	return "", fmt.Errorf("unknown clear policy %q", s)
}

// roomWideKey is the stack key used in UndoGlobal mode. Connection ids are never empty.
const roomWideKey = ""

// OperationLog is the ordered, append-only record of committed strokes for one room, together with
// the undo stacks layered on top of it. It is not safe for concurrent use.
type OperationLog struct {
	ops    []Operation
	ids    map[string]struct{}
	stacks *stackStore

	maxOps int
	scope  UndoScope
	policy ClearPolicy

	// truncated counts operations dropped from the front because of maxOps.
	truncated int
}

func NewOperationLog(maxOps int, scope UndoScope, policy ClearPolicy) *OperationLog {
	if maxOps <= 0 {
		maxOps = MaxOps
	}
	if scope == "" {
		scope = UndoPerAuthor
	}
	if policy == "" {
		policy = ClearBrushOnly
	}
	return &OperationLog{
		ids:    make(map[string]struct{}),
		stacks: newStackStore(),
		maxOps: maxOps,
		scope:  scope,
		policy: policy,
	}
}

func (l *OperationLog) Scope() UndoScope { return l.scope }

func (l *OperationLog) Policy() ClearPolicy { return l.policy }

func (l *OperationLog) Len() int { return len(l.ops) }

// Truncated returns how many operations have been silently dropped to respect the cap.
func (l *OperationLog) Truncated() int { return l.truncated }

// Operations returns a copy of the log in drawing order.
func (l *OperationLog) Operations() []Operation {
	return append([]Operation{}, l.ops...)
}

func (l *OperationLog) Contains(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// UndoDepth is how many redo steps are available to author.
func (l *OperationLog) UndoDepth(author string) int {
	return l.stacks.depth(l.stackKey(author))
}

func (l *OperationLog) UndoStacks() map[string][]Operation {
	return l.stacks.clone()
}

func (l *OperationLog) stackKey(author string) string {
	if l.scope == UndoGlobal {
		return roomWideKey
	}
	return author
}

// Append commits op at the tail. An operation whose id is already in the log is ignored. Appending
// empties the redo stack of op's author (or the room-wide stack in global mode) and nothing else.
func (l *OperationLog) Append(op Operation) bool {
	if _, dup := l.ids[op.ID]; dup {
		return false
	}
	l.ops = append(l.ops, op)
	l.ids[op.ID] = struct{}{}
	l.stacks.reset(l.stackKey(op.AuthorID))
	l.truncate()
	return true
}

func (l *OperationLog) truncate() {
	excess := len(l.ops) - l.maxOps
	if excess <= 0 {
		return
	}
	for _, op := range l.ops[:excess] {
		delete(l.ids, op.ID)
	}
	n := copy(l.ops, l.ops[excess:])
	for i := n; i < len(l.ops); i++ {
		l.ops[i] = Operation{}
	}
	l.ops = l.ops[:n]
	l.truncated += excess
}

// Undo moves author's most recent operation from the log onto their undo stack. In global mode it
// undoes the most recent operation of anyone.
func (l *OperationLog) Undo(author string) (Operation, bool) {
	if l.scope == UndoGlobal {
		return l.GlobalUndo()
	}
	for i := len(l.ops) - 1; i >= 0; i-- {
		if l.ops[i].AuthorID == author {
			op := l.removeAt(i)
			l.stacks.push(author, op)
			return op, true
		}
	}
	return Operation{}, false
}

// Redo re-appends the top of author's undo stack at the tail of the log. The operation is drawn on
// top of everything committed since; its original position is not restored.
func (l *OperationLog) Redo(author string) (Operation, bool) {
	if l.scope == UndoGlobal {
		return l.GlobalRedo()
	}
	return l.redoFrom(author)
}

func (l *OperationLog) GlobalUndo() (Operation, bool) {
	if len(l.ops) == 0 {
		return Operation{}, false
	}
	op := l.removeAt(len(l.ops) - 1)
	l.stacks.push(roomWideKey, op)
	return op, true
}

func (l *OperationLog) GlobalRedo() (Operation, bool) {
	return l.redoFrom(roomWideKey)
}

func (l *OperationLog) redoFrom(key string) (Operation, bool) {
	op, ok := l.stacks.pop(key)
	if !ok {
		return Operation{}, false
	}
	if _, dup := l.ids[op.ID]; dup {
		// the same id was committed again after the undo; the stale copy is discarded
		return Operation{}, false
	}
	l.ops = append(l.ops, op)
	l.ids[op.ID] = struct{}{}
	l.truncate()
	return op, true
}

// Clear applies the log's configured ClearPolicy for author and returns how many operations left
// the log.
func (l *OperationLog) Clear(author string) int {
	if l.policy == ClearEverything {
		return l.ClearAll(author)
	}
	return l.ClearMine(author, true)
}

// ClearMine removes author's operations from the log, sparing erasers when keepErasers is set, and
// prunes the same kinds of entries from the redo stack so they cannot be resurrected.
func (l *OperationLog) ClearMine(author string, keepErasers bool) int {
	match := func(op Operation) bool {
		if op.AuthorID != author {
			return false
		}
		return !keepErasers || op.Type == Brush
	}
	removed := l.removeWhere(match)
	l.stacks.removeWhere(l.stackKey(author), match)
	return removed
}

// ClearAll removes every operation by author regardless of type and empties their undo stack.
func (l *OperationLog) ClearAll(author string) int {
	removed := l.removeWhere(func(op Operation) bool { return op.AuthorID == author })
	if l.scope == UndoGlobal {
		l.stacks.removeWhere(roomWideKey, func(op Operation) bool { return op.AuthorID == author })
	} else {
		l.stacks.reset(author)
	}
	return removed
}

func (l *OperationLog) removeAt(i int) Operation {
	op := l.ops[i]
	copy(l.ops[i:], l.ops[i+1:])
	l.ops[len(l.ops)-1] = Operation{}
	l.ops = l.ops[:len(l.ops)-1]
	delete(l.ids, op.ID)
	return op
}

func (l *OperationLog) removeWhere(drop func(Operation) bool) int {
	kept := l.ops[:0]
	removed := 0
	for _, op := range l.ops {
		if drop(op) {
			delete(l.ids, op.ID)
			removed++
			continue
		}
		kept = append(kept, op)
	}
	for i := len(kept); i < len(l.ops); i++ {
		l.ops[i] = Operation{}
	}
	l.ops = kept
	return removed
}
