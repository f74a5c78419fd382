package canvas

import (
	"time"
)

// RoomOptions configures every room a Registry creates.
type RoomOptions struct {
	MaxOps           int
	UndoScope        UndoScope
	ClearPolicy      ClearPolicy
	LiveInterval     time.Duration
	MinPointDistance float64
}

func DefaultRoomOptions() RoomOptions {
	return RoomOptions{
		MaxOps:           MaxOps,
		UndoScope:        UndoPerAuthor,
		ClearPolicy:      ClearBrushOnly,
		LiveInterval:     DefaultLiveInterval,
		MinPointDistance: DefaultMinPointDistance,
	}
}

// Room bundles everything shared by the participants of one drawing surface.
type Room struct {
	ID        string
	CreatedAt time.Time

	Presence *Presence
	Log      *OperationLog
	Live     *LiveRelay
}

func NewRoom(id string, opts RoomOptions, now time.Time) *Room {
	return &Room{
		ID:        id,
		CreatedAt: now,
		Presence:  NewPresence(),
		Log:       NewOperationLog(opts.MaxOps, opts.UndoScope, opts.ClearPolicy),
		Live:      NewLiveRelay(opts.LiveInterval, opts.MinPointDistance),
	}
}

// Finalize turns a stroke into a committed Operation: it drops the author's preview for that
// stroke id and appends to the log with a server timestamp. ok is false when the stroke is invalid
// or its id is already committed; retracted reports whether a preview was dropped either way.
func (r *Room) Finalize(author string, c StrokeCandidate, now time.Time) (op Operation, retracted, ok bool) {
	if !ValidateFinal(c) {
		return Operation{}, false, false
	}
	retracted = len(r.Live.Drop(author, c.ID)) > 0
	op = c.operation(author, now)
	if !r.Log.Append(op) {
		return Operation{}, retracted, false
	}
	return op, retracted, true
}

func (r *Room) Snapshot() Snapshot {
	return Snapshot{
		RoomID:       r.ID,
		Operations:   r.Log.Operations(),
		Participants: r.Presence.List(),
	}
}

func (r *Room) History() History {
	return History{
		Snapshot:   r.Snapshot(),
		UndoStacks: r.Log.UndoStacks(),
	}
}

func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:           r.ID,
		Participants: r.Presence.Len(),
		Operations:   r.Log.Len(),
		LiveStrokes:  r.Live.Len(),
	}
}

func (r *Room) Empty() bool {
	return r.Presence.Len() == 0
}
