// Package canvas is the collaboration engine behind a shared drawing surface: the room registry, the
// authoritative operation log with undo/redo, the ephemeral live-stroke relay and the validator that
// guards all of them.
//
// Nothing in this package performs I/O. Handlers on Engine return the deliveries that the transport
// layer should fan out.
package canvas

import (
	"time"
)

const (
	// MaxOps caps the number of committed operations kept per room.
	MaxOps = 1500

	// MaxLivePoints is the largest segment a single stroke-live message may carry.
	MaxLivePoints = 5

	// MaxWidth is the widest stroke accepted.
	MaxWidth = 100

	// MaxDisplayNameLength is measured in runes.
	MaxDisplayNameLength = 20

	// MaxRoomIDLength is measured in runes.
	MaxRoomIDLength = 64

	DefaultRoomID      = "lobby"
	DefaultDisplayName = "User"

	// AllStrokes is the wildcard stroke id meaning "every in-progress stroke of this author".
	AllStrokes = "*"
)

type StrokeType string

const (
	Brush  StrokeType = "brush"
	Eraser StrokeType = "eraser"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// StrokeCandidate is an untrusted stroke as received from a client. It only becomes an Operation
// after passing the validator.
type StrokeCandidate struct {
	ID     string     `json:"id"`
	Type   StrokeType `json:"type"`
	Color  string     `json:"color"`
	Width  float64    `json:"width"`
	Points []Point    `json:"points"`
}

// Operation is a finalized stroke. Its fields never change after it is appended to a log; it may
// only move between the log and an undo stack.
type Operation struct {
	ID        string     `json:"id"`
	AuthorID  string     `json:"authorId"`
	Type      StrokeType `json:"type"`
	Color     string     `json:"color"`
	Width     float64    `json:"width"`
	Points    []Point    `json:"points"`
	CreatedAt time.Time  `json:"createdAt"`
}

func (c StrokeCandidate) operation(authorID string, now time.Time) Operation {
	points := make([]Point, len(c.Points))
	copy(points, c.Points)
	return Operation{
		ID:        c.ID,
		AuthorID:  authorID,
		Type:      c.Type,
		Color:     c.Color,
		Width:     c.Width,
		Points:    points,
		CreatedAt: now,
	}
}

type Participant struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Color       string    `json:"color"`
	Cursor      *Point    `json:"cursor,omitempty"`
	JoinedAt    time.Time `json:"joinedAt"`
}

// Snapshot is the bootstrap view of a room: the full ordered operation list plus who is present.
type Snapshot struct {
	RoomID       string        `json:"roomId"`
	SelfID       string        `json:"selfId,omitempty"`
	Operations   []Operation   `json:"operations"`
	Participants []Participant `json:"participants"`
}

// History extends a Snapshot with the undo stacks, for diagnostics.
type History struct {
	Snapshot
	UndoStacks map[string][]Operation `json:"undoStacks"`
}

// RoomInfo is a summary line for room listings.
type RoomInfo struct {
	ID           string `json:"id"`
	Participants int    `json:"participants"`
	Operations   int    `json:"operations"`
	LiveStrokes  int    `json:"liveStrokes"`
}
