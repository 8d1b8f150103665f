package line

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilepipe/feature"
)

func equalLens(t *testing.T, l Line) {
	t.Helper()
	assert.Equal(t, len(l.Curr), len(l.Prev))
	assert.Equal(t, len(l.Curr), len(l.Next))
}

func TestExpandOpen(t *testing.T) {
	l := Expand(orb.LineString{{0, 0}, {10, 0}, {10, 10}}, feature.CapButt, 0, false)
	equalLens(t, l)
	assert.Equal(t, []orb.Point{{0, 0}, {10, 0}, {10, 10}}, l.Curr)
	assert.Equal(t, []orb.Point{{0, 0}, {0, 0}, {10, 0}}, l.Prev)
	assert.Equal(t, []orb.Point{{10, 0}, {10, 10}, {10, 10}}, l.Next)
	assert.Nil(t, l.LengthSoFar)
}

func TestExpandDuplicates(t *testing.T) {
	l := Expand(orb.LineString{{0, 0}, {0, 0}, {10, 0}, {10, 0}, {10, 10}}, feature.CapButt, 0, false)
	equalLens(t, l)
	assert.Equal(t, []orb.Point{{0, 0}, {10, 0}, {10, 10}}, l.Curr)

	assert.Zero(t, Expand(orb.LineString{{1, 1}, {1, 1}, {1, 1}}, feature.CapRound, 0, true).Len())
	assert.Zero(t, Expand(orb.LineString{{1, 1}}, feature.CapButt, 0, false).Len())
	assert.Zero(t, Expand(nil, feature.CapButt, 0, false).Len())
}

func TestExpandClosed(t *testing.T) {
	ring := orb.LineString{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	open := orb.LineString{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {1, 1}}

	lc := Expand(ring, feature.CapButt, 0, false)
	lo := Expand(open, feature.CapButt, 0, false)
	equalLens(t, lc)
	require.Equal(t, lo.Len()+1, lc.Len())

	last := lc.Len() - 1
	assert.Equal(t, orb.Point{0, 10}, lc.Prev[last])
	assert.Equal(t, orb.Point{0, 0}, lc.Curr[last])
	assert.Equal(t, orb.Point{10, 0}, lc.Next[last])
}

func TestExpandCaps(t *testing.T) {
	ls := orb.LineString{{0, 0}, {10, 0}, {20, 0}}
	butt := Expand(ls, feature.CapButt, 0, false)
	round := Expand(ls, feature.CapRound, 0, true)
	equalLens(t, round)
	require.Equal(t, butt.Len()+2, round.Len())

	assert.Equal(t, orb.Point{10, 0}, round.Prev[0])
	assert.Equal(t, orb.Point{0, 0}, round.Curr[0])
	assert.Equal(t, orb.Point{0, 0}, round.Next[0])

	e := round.Len() - 1
	assert.Equal(t, orb.Point{20, 0}, round.Prev[e])
	assert.Equal(t, orb.Point{20, 0}, round.Curr[e])
	assert.Equal(t, orb.Point{10, 0}, round.Next[e])

	assert.Equal(t, []float64{0, 10, 20, 0, 20}, round.LengthSoFar)
}

func TestSubdivide(t *testing.T) {
	ls := Subdivide(orb.LineString{{0, 0}, {100, 0}, {100, 10}}, 30)
	assert.Equal(t, orb.LineString{{0, 0}, {25, 0}, {50, 0}, {75, 0}, {100, 0}, {100, 10}}, ls)

	same := orb.LineString{{0, 0}, {100, 0}}
	assert.Equal(t, same, Subdivide(same, 0))

	l := Expand(orb.LineString{{0, 0}, {0, 100}}, feature.CapButt, 10, false)
	equalLens(t, l)
	for i := 1; i < l.Len(); i++ {
		assert.LessOrEqual(t, l.Curr[i][1]-l.Curr[i-1][1], 10.0)
	}
}

func TestBuild(t *testing.T) {
	f := &feature.Feature{Extent: 4096, Cap: feature.CapSquare}
	require.True(t, Build(f, orb.MultiLineString{{{0, 0}, {2048, 0}}}, 1, true))
	assert.Len(t, f.Vertices, 4*6)
	assert.Equal(t, []int16{4096, 0, 0, 0, 0, 0}, f.Vertices[:6])
	assert.Equal(t, []float32{0, 2048, 0, 2048}, f.LengthSoFar)

	poly := &feature.Feature{Extent: 4096}
	require.True(t, Build(poly, orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 0}}}, 1, false))
	assert.Len(t, poly.Vertices, 5*6)

	assert.False(t, Build(&feature.Feature{Extent: 4096}, orb.MultiPoint{{1, 1}}, 1, false))
}
