package point

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilepipe/feature"
)

func TestBuild(t *testing.T) {
	f := &feature.Feature{Extent: 4096}
	require.True(t, Build(f, orb.MultiPoint{{0, 0}, {1024, 4096}, {10.3, 10.8}}, nil))
	assert.Equal(t, []int16{0, 0, 2048, 8192, 21, 22}, f.Vertices)
	assert.Empty(t, f.Weights)

	single := &feature.Feature{Extent: 512}
	require.True(t, Build(single, orb.Point{256, 256}, nil))
	assert.Equal(t, []int16{4096, 4096}, single.Vertices)
}

func TestBuildWeights(t *testing.T) {
	w := float32(0.75)
	f := &feature.Feature{Extent: 4096}
	require.True(t, Build(f, orb.MultiPoint{{1, 1}, {2, 2}}, &w))
	assert.Equal(t, []float32{0.75, 0.75}, f.Weights)
	assert.Len(t, f.Vertices, 2*len(f.Weights))
}

func TestBuildEmpty(t *testing.T) {
	f := &feature.Feature{Extent: 4096}
	assert.False(t, Build(f, nil, nil))
	assert.False(t, Build(f, orb.MultiPoint{}, nil))
	assert.False(t, Build(f, orb.LineString{{0, 0}, {1, 1}}, nil))
	assert.True(t, f.Empty())
}

func TestHeatmapCode(t *testing.T) {
	lo := []float32{1, 2}
	code := HeatmapCode(lo, []float32{3})
	assert.Equal(t, []float32{1, 2, 3}, code)
	code[0] = 9
	assert.Equal(t, float32(1), lo[0])
}
