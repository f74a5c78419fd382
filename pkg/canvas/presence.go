package canvas

import (
	"sort"
)

// Presence tracks the participants connected to one room and their last known pointer.
type Presence struct {
	participants map[string]*Participant
}

func NewPresence() *Presence {
	return &Presence{participants: make(map[string]*Participant)}
}

// Join inserts p, replacing any previous entry for the same connection id.
func (pr *Presence) Join(p Participant) {
	pr.participants[p.ID] = &p
}

func (pr *Presence) Leave(connID string) bool {
	if _, ok := pr.participants[connID]; !ok {
		return false
	}
	delete(pr.participants, connID)
	return true
}

// UpdateCursor records the participant's pointer. Non-finite points and unknown participants are
// ignored.
func (pr *Presence) UpdateCursor(connID string, pt Point) bool {
	p, ok := pr.participants[connID]
	if !ok || !ValidPoint(pt) {
		return false
	}
	p.Cursor = &Point{X: pt.X, Y: pt.Y}
	return true
}

func (pr *Presence) Get(connID string) (Participant, bool) {
	p, ok := pr.participants[connID]
	if !ok {
		return Participant{}, false
	}
	return copyParticipant(*p), true
}

func (pr *Presence) Has(connID string) bool {
	_, ok := pr.participants[connID]
	return ok
}

func (pr *Presence) Len() int { return len(pr.participants) }

// List returns the participants ordered by join time, then id.
func (pr *Presence) List() []Participant {
	out := make([]Participant, 0, len(pr.participants))
	for _, p := range pr.participants {
		out = append(out, copyParticipant(*p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IDs returns the connection ids in the same order as List.
func (pr *Presence) IDs() []string {
	list := pr.List()
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	return ids
}

func copyParticipant(p Participant) Participant {
	if p.Cursor != nil {
		c := *p.Cursor
		p.Cursor = &c
	}
	return p
}
