package canvas

import (
	"sort"
	"time"
)

// Registry owns the lifecycle of rooms: created on first join, destroyed when the last participant
// leaves. The default room is never destroyed. A Registry is not safe for concurrent use; Engine
// serializes access to it.
type Registry struct {
	rooms     map[string]*Room
	defaultID string
	opts      RoomOptions
	now       func() time.Time
}

func NewRegistry(defaultID string, opts RoomOptions) *Registry {
	if defaultID == "" {
		defaultID = DefaultRoomID
	}
	return &Registry{
		rooms:     make(map[string]*Room),
		defaultID: defaultID,
		opts:      opts,
		now:       time.Now,
	}
}

func (g *Registry) DefaultID() string { return g.defaultID }

// GetOrCreate returns the room with id, creating an empty one if needed.
func (g *Registry) GetOrCreate(id string) *Room {
	if r, ok := g.rooms[id]; ok {
		return r
	}
	r := NewRoom(id, g.opts, g.now())
	g.rooms[id] = r
	return r
}

func (g *Registry) Get(id string) (*Room, bool) {
	r, ok := g.rooms[id]
	return r, ok
}

// DropIfEmpty destroys the room when nobody is left in it, releasing its log, stacks and previews.
func (g *Registry) DropIfEmpty(id string) bool {
	r, ok := g.rooms[id]
	if !ok || id == g.defaultID || !r.Empty() {
		return false
	}
	delete(g.rooms, id)
	return true
}

func (g *Registry) Len() int { return len(g.rooms) }

func (g *Registry) IDs() []string {
	ids := make([]string, 0, len(g.rooms))
	for id := range g.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
