package canvas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func segment(id string, pts ...Point) StrokeCandidate {
	return StrokeCandidate{ID: id, Type: Brush, Color: "#123456", Width: 3, Points: pts}
}

func TestLiveRelay_MergesSegments(t *testing.T) {
	r := NewLiveRelay(0, 0)
	now := time.Unix(100, 0)

	seg, ok := r.Upsert("A", segment("s1", Point{0, 0}, Point{1, 1}), now)
	require.True(t, ok)
	assert.Equal(t, "A", seg.AuthorID)
	assert.Len(t, seg.Points, 2)

	next := segment("s1", Point{2, 2})
	next.Color = "#ffffff"
	seg, ok = r.Upsert("A", next, now)
	require.True(t, ok)
	assert.Equal(t, []Point{{2, 2}}, seg.Points, "only the new points are emitted")
	assert.Equal(t, "#ffffff", seg.Color)

	merged, ok := r.Get("A", "s1")
	require.True(t, ok)
	assert.Equal(t, []Point{{0, 0}, {1, 1}, {2, 2}}, merged.Points)
	assert.Equal(t, "#ffffff", merged.Color)
	assert.Equal(t, 1, r.Len())
}

func TestLiveRelay_RejectsInvalid(t *testing.T) {
	r := NewLiveRelay(0, 0)
	_, ok := r.Upsert("A", segment("s1", line(6)...), time.Now())
	assert.False(t, ok)
	_, ok = r.Upsert("A", segment("", Point{1, 1}), time.Now())
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestLiveRelay_Throttles(t *testing.T) {
	r := NewLiveRelay(16*time.Millisecond, 0)
	start := time.Unix(100, 0)

	_, ok := r.Upsert("A", segment("s1", Point{0, 0}), start)
	require.True(t, ok)

	_, ok = r.Upsert("A", segment("s1", Point{1, 0}), start.Add(time.Millisecond))
	assert.False(t, ok, "too soon after the last emission")
	_, ok = r.Upsert("A", segment("s1", Point{2, 0}), start.Add(2*time.Millisecond))
	assert.False(t, ok)

	seg, ok := r.Upsert("A", segment("s1", Point{3, 0}), start.Add(20*time.Millisecond))
	require.True(t, ok)
	assert.Equal(t, []Point{{1, 0}, {2, 0}, {3, 0}}, seg.Points, "held points ride along with the next emission")

	// separate strokes are throttled independently
	_, ok = r.Upsert("A", segment("s2", Point{0, 0}), start.Add(21*time.Millisecond))
	assert.True(t, ok)
}

func TestLiveRelay_MinDistance(t *testing.T) {
	r := NewLiveRelay(0, 0.5)
	now := time.Now()
	_, ok := r.Upsert("A", segment("s1", Point{0, 0}, Point{0.1, 0.1}, Point{1, 0}), now)
	require.True(t, ok)

	_, ok = r.Upsert("A", segment("s1", Point{1.2, 0}), now)
	assert.False(t, ok, "nothing visible to add")

	merged, _ := r.Get("A", "s1")
	assert.Equal(t, []Point{{0, 0}, {1, 0}}, merged.Points)
}

func TestLiveRelay_Drop(t *testing.T) {
	r := NewLiveRelay(0, 0)
	now := time.Now()
	r.Upsert("A", segment("s1", Point{0, 0}), now)
	r.Upsert("A", segment("s2", Point{0, 0}), now)
	r.Upsert("B", segment("s1", Point{0, 0}), now)

	assert.Nil(t, r.Drop("A", "missing"))
	assert.Equal(t, []string{"s1"}, r.Drop("A", "s1"))
	_, ok := r.Get("B", "s1")
	assert.True(t, ok, "stroke ids are scoped per author")

	r.Upsert("A", segment("s3", Point{0, 0}), now)
	assert.ElementsMatch(t, []string{"s2", "s3"}, r.Strokes("A"))
	assert.ElementsMatch(t, []string{"s2", "s3"}, r.Drop("A", AllStrokes))
	assert.Empty(t, r.Strokes("A"))
	assert.Equal(t, 1, r.Len())
}
