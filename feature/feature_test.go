package feature

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordAncestor(t *testing.T) {
	c := NewCoord(FaceFlat, 5, 13, 22)
	p := c.Parent()
	assert.Equal(t, uint32(4), p.Zoom())
	assert.Equal(t, uint32(6), p.X)
	assert.Equal(t, uint32(11), p.Y)

	a := c.Ancestor(2)
	assert.Equal(t, NewCoord(FaceFlat, 2, 1, 2), a)
	assert.Equal(t, a, a.Ancestor(3))

	root := NewCoord(2, 0, 0, 0)
	assert.Equal(t, root, root.Parent())
	assert.Equal(t, "2:0/0/0", root.String())
	assert.Equal(t, "5/13/22", c.String())

	for _, ch := range p.Children() {
		assert.Equal(t, p, ch.Parent())
	}
}

func TestCoordID(t *testing.T) {
	c := NewCoord(FaceFlat, 3, 5, 2)
	assert.Equal(t, uint64(6)<<61|uint64((8*2+5)*32+3), c.ID())
	for _, c := range []Coord{c, NewCoord(0, 0, 0, 0), NewCoord(5, 26, 1<<26-1, 1<<26-1), NewCoord(2, 12, 4000, 17)} {
		assert.Equal(t, c, CoordFromID(c.ID()))
	}
	assert.NotEqual(t, NewCoord(1, 3, 5, 2).ID(), c.ID())
}

func TestAncestorRefHas(t *testing.T) {
	var none *AncestorRef
	assert.True(t, none.Has(3))

	ref := &AncestorRef{Zoom: 2, LayerIndexes: []int{1, 4}}
	assert.True(t, ref.Has(4))
	assert.False(t, ref.Has(2))
}

func TestTypeOf(t *testing.T) {
	assert.Equal(t, TypePoint, TypeOf(orb.MultiPoint{{1, 1}}))
	assert.Equal(t, TypeLine, TypeOf(orb.LineString{{1, 1}, {2, 2}}))
	assert.Equal(t, TypePolygon, TypeOf(orb.Polygon{}))
	assert.Equal(t, TypeMultiPolygon, TypeOf(orb.MultiPolygon{}))
	assert.Equal(t, TypeUnknown, TypeOf(orb.Bound{}))
}

func TestQuantize(t *testing.T) {
	m := Multiplier(20)
	assert.InDelta(t, 409.6, m, 1e-9)
	assert.Equal(t, int16(2048), Quantize(5.0, m))
	assert.Equal(t, int16(4096), Quantize(10.0, m))
	assert.Equal(t, int16(1), Quantize(0.5, 2.0))
	assert.Equal(t, int16(0), Quantize(-0.2, 1.0))
	assert.Equal(t, int16(-160), Quantize(-80.0, Multiplier(DefaultExtent)))

	// a small extent plus the clip buffer leaves the int16 range
	small := Multiplier(20)
	assert.Equal(t, int16(math.MaxInt16), Quantize(100.0, small))
	assert.Equal(t, int16(math.MinInt16), Quantize(-100.0, small))
	assert.Equal(t, int16(8192), Quantize(20.0, small))
}

func TestIDGen(t *testing.T) {
	a := NewIDGen(0, 3)
	b := NewIDGen(1, 3)
	require.Equal(t, uint32(1), a.Next())
	require.Equal(t, uint32(4), a.Next())
	require.Equal(t, uint32(2), b.Next())
	require.Equal(t, uint32(5), b.Next())

	g := NewIDGen(0, 1)
	g.num = IDMaxSize - 1
	assert.Equal(t, uint32(IDMaxSize-1), g.Next())
	assert.Equal(t, uint32(1), g.Next())

	assert.Equal(t, [3]uint8{0x03, 0x02, 0x01}, IDToRGB(0x010203))
}

func TestParse(t *testing.T) {
	k, ok := ParseKind("Heatmap")
	require.True(t, ok)
	assert.Equal(t, KindHeatmap, k)
	_, ok = ParseKind("raster")
	assert.False(t, ok)

	assert.Equal(t, CapRound, ParseCap("round"))
	assert.Equal(t, CapButt, ParseCap("whatever"))
	assert.Equal(t, float32(1), CapSquare.Code())
}
