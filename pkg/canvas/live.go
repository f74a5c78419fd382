package canvas

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultLiveInterval spaces live emissions of one stroke to roughly 60 per second.
	DefaultLiveInterval = 16 * time.Millisecond

	// DefaultMinPointDistance filters points that would not visibly extend a stroke.
	DefaultMinPointDistance = 0.5
)

type liveKey struct {
	author string
	stroke string
}

type liveStroke struct {
	op      Operation
	pending []Point
	limiter *rate.Limiter
}

// LiveRelay stages in-progress strokes per (author, stroke id). Nothing in it ever reaches an
// OperationLog on its own. It is not safe for concurrent use.
type LiveRelay struct {
	strokes     map[liveKey]*liveStroke
	interval    time.Duration
	minDistance float64
}

func NewLiveRelay(interval time.Duration, minDistance float64) *LiveRelay {
	if interval < 0 {
		interval = 0
	}
	if minDistance < 0 {
		minDistance = 0
	}
	return &LiveRelay{
		strokes:     make(map[liveKey]*liveStroke),
		interval:    interval,
		minDistance: minDistance,
	}
}

func (r *LiveRelay) Len() int { return len(r.strokes) }

// Upsert merges a live segment into the author's in-progress stroke. It returns the segment to
// broadcast and true when an emission is due; points held back by the throttle are carried into
// the next emission. Invalid segments are rejected with false and leave no trace.
func (r *LiveRelay) Upsert(author string, c StrokeCandidate, now time.Time) (Operation, bool) {
	if !ValidateLive(c) {
		return Operation{}, false
	}
	key := liveKey{author: author, stroke: c.ID}
	ls, ok := r.strokes[key]
	if !ok {
		ls = &liveStroke{
			op:      c.operation(author, now),
			limiter: r.newLimiter(),
		}
		ls.op.Points = nil
		r.strokes[key] = ls
	}
	// style may change mid-stroke; the latest segment wins
	ls.op.Type, ls.op.Color, ls.op.Width = c.Type, c.Color, c.Width

	for _, p := range c.Points {
		if n := len(ls.op.Points); n > 0 && distance(ls.op.Points[n-1], p) < r.minDistance {
			continue
		}
		ls.op.Points = append(ls.op.Points, p)
		ls.pending = append(ls.pending, p)
	}
	if len(ls.pending) == 0 {
		return Operation{}, false
	}
	if !ls.limiter.AllowN(now, 1) {
		return Operation{}, false
	}
	segment := ls.op
	segment.Points = ls.pending
	ls.pending = nil
	return segment, true
}

func (r *LiveRelay) newLimiter() *rate.Limiter {
	if r.interval == 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(r.interval), 1)
}

// Get returns the merged in-progress stroke, if any.
func (r *LiveRelay) Get(author, strokeID string) (Operation, bool) {
	ls, ok := r.strokes[liveKey{author: author, stroke: strokeID}]
	if !ok {
		return Operation{}, false
	}
	op := ls.op
	op.Points = append([]Point(nil), ls.op.Points...)
	return op, true
}

// Drop forgets one in-progress stroke, or all of the author's strokes for AllStrokes. It returns
// the ids that were dropped.
func (r *LiveRelay) Drop(author, strokeID string) []string {
	if strokeID == AllStrokes {
		return r.DropAuthor(author)
	}
	key := liveKey{author: author, stroke: strokeID}
	if _, ok := r.strokes[key]; !ok {
		return nil
	}
	delete(r.strokes, key)
	return []string{strokeID}
}

func (r *LiveRelay) DropAuthor(author string) []string {
	var dropped []string
	for key := range r.strokes {
		if key.author == author {
			delete(r.strokes, key)
			dropped = append(dropped, key.stroke)
		}
	}
	return dropped
}

// Strokes lists the ids the author currently has in progress.
func (r *LiveRelay) Strokes(author string) []string {
	var ids []string
	for key := range r.strokes {
		if key.author == author {
			ids = append(ids, key.stroke)
		}
	}
	return ids
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
