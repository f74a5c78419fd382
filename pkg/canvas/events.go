package canvas

// Outbound event kinds.
const (
	KindSnapshot           = "snapshot"
	KindStrokeCreated      = "stroke-created"
	KindStrokeLive         = "stroke-live"
	KindStrokeLiveEnd      = "stroke-live-end"
	KindCursorUpdate       = "cursor-update"
	KindParticipantsUpdate = "participants-update"
)

// Event is a message the engine wants delivered to some connections.
type Event interface {
	Kind() string
}

// Delivery pairs an event with the connection ids that must receive it.
type Delivery struct {
	Recipients []string
	Event      Event
}

type SnapshotEvent struct {
	Snapshot
}

func (SnapshotEvent) Kind() string { return KindSnapshot }

type StrokeCreatedEvent struct {
	Operation
}

func (StrokeCreatedEvent) Kind() string { return KindStrokeCreated }

type StrokeLiveEvent struct {
	AuthorID string    `json:"authorId"`
	Op       Operation `json:"op"`
}

func (StrokeLiveEvent) Kind() string { return KindStrokeLive }

// StrokeLiveEndEvent tells clients to discard a preview. StrokeID may be AllStrokes.
type StrokeLiveEndEvent struct {
	AuthorID string `json:"authorId"`
	StrokeID string `json:"strokeId"`
}

func (StrokeLiveEndEvent) Kind() string { return KindStrokeLiveEnd }

type CursorUpdateEvent struct {
	AuthorID string `json:"authorId"`
	Cursor   Point  `json:"cursor"`
}

func (CursorUpdateEvent) Kind() string { return KindCursorUpdate }

type ParticipantsUpdateEvent struct {
	RoomID       string        `json:"roomId"`
	Participants []Participant `json:"participants"`
}

func (ParticipantsUpdateEvent) Kind() string { return KindParticipantsUpdate }
