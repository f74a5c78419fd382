package canvas

import (
	"log/slog"
	"sync"
	"time"
)

// Inbound message kinds.
const (
	KindJoin       = "join"
	KindLeave      = "leave"
	KindCursorMove = "cursor-move"
	KindUndo       = "undo"
	KindRedo       = "redo"
	KindClearMine  = "clear-mine"
	KindDisconnect = "disconnect"
	// KindStrokeLive and KindStrokeLiveEnd are shared with the outbound kinds.
	KindStrokeEnd = "stroke-end"
)

// Rejection reasons reported to the Observer.
const (
	ReasonNotJoined = "not-joined"
	ReasonInvalid   = "invalid"
	ReasonDuplicate = "duplicate"
	ReasonUnknown   = "unknown"
)

type JoinRequest struct {
	RoomID      string `json:"roomId"`
	DisplayName string `json:"displayName"`
	ColorHint   string `json:"colorHint,omitempty"`
}

// Observer receives a notification for every state change and every silent rejection.
// Implementations must be safe for concurrent use.
type Observer interface {
	RoomCreated(roomID string)
	RoomDropped(roomID string)
	ParticipantJoined(roomID string)
	ParticipantLeft(roomID string)
	Committed(roomID string, op Operation)
	LiveSegment(roomID string, emitted bool)
	HistoryChanged(kind string, changed bool)
	Rejected(kind, reason string)
}

type nopObserver struct{}

func (nopObserver) RoomCreated(string)          {}
func (nopObserver) RoomDropped(string)          {}
func (nopObserver) ParticipantJoined(string)    {}
func (nopObserver) ParticipantLeft(string)      {}
func (nopObserver) Committed(string, Operation) {}
func (nopObserver) LiveSegment(string, bool)    {}
func (nopObserver) HistoryChanged(string, bool) {}
func (nopObserver) Rejected(string, string)     {}

// Engine routes client messages to rooms. Every method runs to completion under one lock, so all
// mutations in a process are serialized, and returns the deliveries the caller must fan out.
// Malformed input and no-op requests yield no deliveries.
type Engine struct {
	mu       sync.Mutex
	rooms    *Registry
	sessions map[string]string

	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

type EngineOption func(*Engine)

func WithObserver(o Observer) EngineOption {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(rooms *Registry, opts ...EngineOption) *Engine {
	e := &Engine{
		rooms:    rooms,
		sessions: make(map[string]string),
		observer: nopObserver{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	rooms.now = e.now
	return e
}

func (e *Engine) Join(connID string, req JoinRequest) []Delivery {
	e.mu.Lock()
	defer e.mu.Unlock()

	roomID := SanitizeRoomID(req.RoomID, e.rooms.DefaultID())
	participant := Participant{
		ID:          connID,
		DisplayName: SanitizeDisplayName(req.DisplayName),
		Color:       PickColor(req.ColorHint, connID),
		JoinedAt:    e.now(),
	}

	var out []Delivery
	var room *Room
	if prev, ok := e.sessions[connID]; ok && prev == roomID {
		// re-joining the current room only refreshes the participant
		room, _ = e.rooms.Get(roomID)
		if existing, ok := room.Presence.Get(connID); ok {
			participant.JoinedAt = existing.JoinedAt
			participant.Cursor = existing.Cursor
		}
		room.Presence.Join(participant)
	} else {
		if ok {
			out = append(out, e.leaveLocked(connID, prev, false)...)
		}
		_, existed := e.rooms.Get(roomID)
		room = e.rooms.GetOrCreate(roomID)
		if !existed {
			e.observer.RoomCreated(roomID)
		}
		room.Presence.Join(participant)
		e.sessions[connID] = roomID
		e.observer.ParticipantJoined(roomID)
	}

	snap := room.Snapshot()
	snap.SelfID = connID
	out = append(out,
		Delivery{Recipients: []string{connID}, Event: SnapshotEvent{Snapshot: snap}},
		Delivery{Recipients: room.Presence.IDs(), Event: ParticipantsUpdateEvent{RoomID: roomID, Participants: snap.Participants}},
	)
	return out
}

// Leave detaches the connection from its room. The connection may join again later.
func (e *Engine) Leave(connID string) []Delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	roomID, ok := e.sessions[connID]
	if !ok {
		e.reject(KindLeave, ReasonNotJoined)
		return nil
	}
	return e.leaveLocked(connID, roomID, false)
}

// Disconnect is Leave for a connection that is gone; its previews are always retracted with the
// wildcard since it may have vanished mid-stroke. Committed operations stay.
func (e *Engine) Disconnect(connID string) []Delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	roomID, ok := e.sessions[connID]
	if !ok {
		return nil
	}
	return e.leaveLocked(connID, roomID, true)
}

func (e *Engine) leaveLocked(connID, roomID string, disconnect bool) []Delivery {
	delete(e.sessions, connID)
	room, ok := e.rooms.Get(roomID)
	if !ok || !room.Presence.Leave(connID) {
		return nil
	}
	e.observer.ParticipantLeft(roomID)
	dropped := room.Live.DropAuthor(connID)

	var out []Delivery
	if rest := room.Presence.IDs(); len(rest) > 0 {
		out = append(out, Delivery{
			Recipients: rest,
			Event:      ParticipantsUpdateEvent{RoomID: roomID, Participants: room.Presence.List()},
		})
		if disconnect || len(dropped) > 0 {
			out = append(out, Delivery{
				Recipients: rest,
				Event:      StrokeLiveEndEvent{AuthorID: connID, StrokeID: AllStrokes},
			})
		}
	}
	if e.rooms.DropIfEmpty(roomID) {
		e.observer.RoomDropped(roomID)
		e.logger.Debug("dropped empty room", "room", roomID)
	}
	return out
}

func (e *Engine) CursorMove(connID string, pt Point) []Delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.roomOf(connID, KindCursorMove)
	if !ok {
		return nil
	}
	if !room.Presence.UpdateCursor(connID, pt) {
		e.reject(KindCursorMove, ReasonInvalid)
		return nil
	}
	return e.toOthers(room, connID, CursorUpdateEvent{AuthorID: connID, Cursor: pt})
}

func (e *Engine) StrokeLive(connID string, c StrokeCandidate) []Delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.roomOf(connID, KindStrokeLive)
	if !ok {
		return nil
	}
	if !ValidateLive(c) {
		e.reject(KindStrokeLive, ReasonInvalid)
		return nil
	}
	segment, emit := room.Live.Upsert(connID, c, e.now())
	e.observer.LiveSegment(room.ID, emit)
	if !emit {
		return nil
	}
	return e.toOthers(room, connID, StrokeLiveEvent{AuthorID: connID, Op: segment})
}

// StrokeEnd commits a stroke and broadcasts it to everyone, the author included, so that the
// author's local preview is replaced by the authoritative copy.
func (e *Engine) StrokeEnd(connID string, c StrokeCandidate) []Delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.roomOf(connID, KindStrokeEnd)
	if !ok {
		return nil
	}
	if !ValidateFinal(c) {
		e.reject(KindStrokeEnd, ReasonInvalid)
		return nil
	}
	op, retracted, ok := room.Finalize(connID, c, e.now())
	if !ok {
		e.reject(KindStrokeEnd, ReasonDuplicate)
		if !retracted {
			return nil
		}
		// others may still be showing the preview of the rejected stroke
		return e.toOthers(room, connID, StrokeLiveEndEvent{AuthorID: connID, StrokeID: c.ID})
	}
	e.observer.Committed(room.ID, op)
	everyone := room.Presence.IDs()
	return []Delivery{
		{Recipients: everyone, Event: StrokeCreatedEvent{Operation: op}},
		{Recipients: everyone, Event: StrokeLiveEndEvent{AuthorID: connID, StrokeID: c.ID}},
	}
}

// EndLive discards one in-progress stroke of the caller, or all of them for AllStrokes or an
// empty id.
func (e *Engine) EndLive(connID, strokeID string) []Delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.roomOf(connID, KindStrokeLiveEnd)
	if !ok {
		return nil
	}
	if strokeID == "" {
		strokeID = AllStrokes
	}
	if len(room.Live.Drop(connID, strokeID)) == 0 {
		return nil
	}
	return e.toOthers(room, connID, StrokeLiveEndEvent{AuthorID: connID, StrokeID: strokeID})
}

func (e *Engine) Undo(connID string) []Delivery {
	return e.history(connID, KindUndo, func(r *Room) bool {
		_, ok := r.Log.Undo(connID)
		return ok
	})
}

func (e *Engine) Redo(connID string) []Delivery {
	return e.history(connID, KindRedo, func(r *Room) bool {
		_, ok := r.Log.Redo(connID)
		return ok
	})
}

func (e *Engine) ClearMine(connID string) []Delivery {
	return e.history(connID, KindClearMine, func(r *Room) bool {
		return r.Log.Clear(connID) > 0
	})
}

// history applies a log mutation and, if anything changed, sends the new snapshot to the room.
func (e *Engine) history(connID, kind string, apply func(*Room) bool) []Delivery {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.roomOf(connID, kind)
	if !ok {
		return nil
	}
	changed := apply(room)
	e.observer.HistoryChanged(kind, changed)
	if !changed {
		return nil
	}
	return []Delivery{{Recipients: room.Presence.IDs(), Event: SnapshotEvent{Snapshot: room.Snapshot()}}}
}

// Reject records a message that could not even be decoded.
func (e *Engine) Reject(kind, reason string) {
	e.reject(kind, reason)
}

// Snapshot returns the current state of a room without joining it.
func (e *Engine) Snapshot(roomID string) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.rooms.Get(SanitizeRoomID(roomID, e.rooms.DefaultID()))
	if !ok {
		return Snapshot{}, false
	}
	return room.Snapshot(), true
}

func (e *Engine) History(roomID string) (History, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	room, ok := e.rooms.Get(SanitizeRoomID(roomID, e.rooms.DefaultID()))
	if !ok {
		return History{}, false
	}
	return room.History(), true
}

func (e *Engine) Rooms() []RoomInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.rooms.IDs()
	out := make([]RoomInfo, 0, len(ids))
	for _, id := range ids {
		room, _ := e.rooms.Get(id)
		out = append(out, room.Info())
	}
	return out
}

// RoomOf returns the room the connection has joined.
func (e *Engine) RoomOf(connID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, ok := e.sessions[connID]
	return id, ok
}

func (e *Engine) roomOf(connID, kind string) (*Room, bool) {
	roomID, ok := e.sessions[connID]
	if !ok {
		e.reject(kind, ReasonNotJoined)
		return nil, false
	}
	room, ok := e.rooms.Get(roomID)
	if !ok {
		e.reject(kind, ReasonNotJoined)
		return nil, false
	}
	return room, true
}

func (e *Engine) toOthers(room *Room, connID string, ev Event) []Delivery {
	var others []string
	for _, id := range room.Presence.IDs() {
		if id != connID {
			others = append(others, id)
		}
	}
	if len(others) == 0 {
		return nil
	}
	return []Delivery{{Recipients: others, Event: ev}}
}

func (e *Engine) reject(kind, reason string) {
	e.observer.Rejected(kind, reason)
	e.logger.Debug("rejected message", "kind", kind, "reason", reason)
}
