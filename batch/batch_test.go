package batch

import (
	"encoding/binary"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilepipe/feature"
)

func fillFeature(id uint32, layer int, code ...float32) *feature.Feature {
	return &feature.Feature{
		ID:         id,
		LayerIndex: layer,
		Code:       code,
		Vertices:   []int16{0, 0, 10, 0, 10, 10},
		Indices:    []uint32{0, 1, 2},
	}
}

func TestSort(t *testing.T) {
	fs := []*feature.Feature{
		fillFeature(1, 2, 1),
		fillFeature(2, 1, 3, 1),
		fillFeature(3, 1, 3),
		fillFeature(4, 1, 2, 9),
	}
	Sort(fs)
	var ids []uint32
	for _, f := range fs {
		ids = append(ids, f.ID)
	}
	assert.Equal(t, []uint32{4, 3, 2, 1}, ids)
}

func TestEncodeFill(t *testing.T) {
	e := &Encoder{}
	b := e.Encode(feature.KindFill, []*feature.Feature{
		fillFeature(1, 0, 1, 2),
		fillFeature(2, 0, 3),
		fillFeature(3, 0, 1, 2),
		fillFeature(4, 1, 1, 2),
	})
	require.NotNil(t, b)
	assert.Len(t, b.Vertices, 4*6)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, b.Indices)

	ds, err := b.Batches()
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, Descriptor{Layer: 0, Count: 9, Offset: 0, Codes: []float32{1, 2, 3}}, ds[0])
	assert.Equal(t, Descriptor{Layer: 1, Count: 3, Offset: 9, Codes: []float32{1, 2}}, ds[1])
	assert.Equal(t, 2, b.Len())

	// code offsets per vertex: {1,2} at 0, {3} at 2
	assert.Equal(t, []uint8{0, 0, 0, 0, 0, 0, 2, 2, 2, 0, 0, 0}, b.CodeTypes)
	assert.Len(t, b.IDs, 12*3)
	assert.Equal(t, []uint8{1, 0, 0}, b.IDs[:3])
}

func TestEncodeFeatureCode(t *testing.T) {
	e := &Encoder{Strategy: FeatureCode}
	b := e.Encode(feature.KindFill, []*feature.Feature{
		fillFeature(1, 0, 1),
		fillFeature(2, 0, 2),
		fillFeature(3, 0, 1),
	})
	require.NotNil(t, b)
	ds, err := b.Batches()
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, 6, ds[0].Count)
	assert.Equal(t, []float32{1}, ds[0].Codes)
	assert.Equal(t, []float32{2}, ds[1].Codes)
	assert.Empty(t, b.CodeTypes)
}

func TestEncodeOverflow(t *testing.T) {
	e := &Encoder{MaxCodeSize: 4}
	b := e.Encode(feature.KindFill, []*feature.Feature{
		fillFeature(1, 0, 1, 1),
		fillFeature(2, 0, 2, 2),
		fillFeature(3, 0, 3, 3),
		fillFeature(4, 0, 4, 4, 4, 4, 4, 4),
		fillFeature(5, 0, 5),
	})
	ds, err := b.Batches()
	require.NoError(t, err)
	require.Len(t, ds, 4)
	assert.Equal(t, []float32{1, 1, 2, 2}, ds[0].Codes)
	assert.Equal(t, []float32{3, 3}, ds[1].Codes)
	assert.Equal(t, []float32{4, 4, 4, 4, 4, 4}, ds[2].Codes)
	assert.Equal(t, 3, ds[2].Count)
	assert.Equal(t, []float32{5}, ds[3].Codes)
}

func TestEncodeCodeTableCap(t *testing.T) {
	assert.Error(t, Encoder{MaxCodeSize: 1024}.Validate())
	assert.NoError(t, Encoder{MaxCodeSize: MaxCodeTableSize}.Validate())

	fs := make([]*feature.Feature, 100)
	for i := range fs {
		fs[i] = fillFeature(uint32(i+1), 0, float32(i), 1, 1, 1)
	}
	e := &Encoder{MaxCodeSize: 1024}
	b := e.Encode(feature.KindFill, fs)
	require.NotNil(t, b)
	ds, err := b.Batches()
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Len(t, ds[0].Codes, MaxCodeTableSize)

	// every vertex offset points at its own code inside its batch table
	require.Len(t, b.CodeTypes, 300)
	for _, d := range ds {
		for v := d.Offset; v < d.Offset+d.Count; v++ {
			pos := int(b.CodeTypes[v])
			require.LessOrEqual(t, pos+4, len(d.Codes))
			assert.Equal(t, float32(v/3), d.Codes[pos])
		}
	}
}

func TestEncodeProperty(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for run := 0; run < 50; run++ {
		var fs []*feature.Feature
		want := 0
		n := 1 + r.Intn(60)
		for i := 0; i < n; i++ {
			code := make([]float32, 1+r.Intn(12))
			for j := range code {
				code[j] = float32(r.Intn(4))
			}
			f := fillFeature(uint32(i+1), r.Intn(3), code...)
			fs = append(fs, f)
			want += len(f.Indices)
		}
		b := (&Encoder{}).Encode(feature.KindFill, fs)
		require.NotNil(t, b)
		ds, err := b.Batches()
		require.NoError(t, err)
		sum := 0
		next := 0
		for _, d := range ds {
			assert.LessOrEqual(t, len(d.Codes), MaxBatchCodeSize)
			assert.Equal(t, next, d.Offset)
			next += d.Count
			sum += d.Count
		}
		assert.Equal(t, want, sum)
		assert.Equal(t, want, b.Count)
		assert.Len(t, b.Indices, want)
	}
}

func TestEncodeLine(t *testing.T) {
	mk := func(layer int, c feature.Cap, code float32) *feature.Feature {
		return &feature.Feature{
			LayerIndex:  layer,
			Cap:         c,
			Code:        []float32{code},
			Vertices:    make([]int16, 12),
			LengthSoFar: []float32{0, 5},
		}
	}
	b := (&Encoder{}).Encode(feature.KindLine, []*feature.Feature{
		mk(0, feature.CapRound, 1),
		mk(0, feature.CapRound, 2),
		mk(0, feature.CapButt, 2),
	})
	require.NotNil(t, b)
	assert.Equal(t, []float32{
		2, 0, 4, 0, 2, 1, 2,
		0, 0, 2, 4, 1, 2,
	}, b.Guide)
	assert.Len(t, b.LengthSoFar, 6)
	assert.Equal(t, 6, b.Count)
}

func TestEncodePoints(t *testing.T) {
	w := []float32{0.5}
	b := (&Encoder{}).Encode(feature.KindHeatmap, []*feature.Feature{
		{Code: []float32{1, 2}, Vertices: []int16{1, 2}, Weights: w},
		{Code: []float32{1, 2}, Vertices: []int16{3, 4, 5, 6}, Weights: []float32{1, 1}},
	})
	require.NotNil(t, b)
	assert.Equal(t, []float32{0, 3, 0, 2, 1, 2}, b.Guide)
	assert.Equal(t, []float32{0.5, 1, 1}, b.Weights)
	assert.Empty(t, b.IDs)

	assert.Nil(t, (&Encoder{}).Encode(feature.KindPoint, nil))
	assert.Nil(t, (&Encoder{}).Encode(feature.KindPoint, []*feature.Feature{{}}))
}

func TestBytes(t *testing.T) {
	b := (&Encoder{}).Encode(feature.KindFill, []*feature.Feature{fillFeature(1, 0, 1)})
	vb := b.VertexBytes()
	require.Len(t, vb, len(b.Vertices)*2)
	assert.Equal(t, uint16(10), binary.LittleEndian.Uint16(vb[4:]))
	assert.Len(t, b.IndexBytes(), 12)
	assert.Len(t, b.GuideBytes(), len(b.Guide)*4)
	assert.Nil(t, b.WeightBytes())
}

func TestDecodeGuide(t *testing.T) {
	_, err := DecodeGuide(feature.KindFill, []float32{0, 1, 0, 3, 1})
	assert.ErrorIs(t, err, ErrGuide)
	ds, err := DecodeGuide(feature.KindLine, []float32{1, 2, 3, 4, 0})
	require.NoError(t, err)
	assert.Equal(t, Descriptor{Cap: 1, Layer: 2, Count: 3, Offset: 4, Codes: []float32{}}, ds[0])
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Feature")
	require.NoError(t, err)
	assert.Equal(t, FeatureCode, s)
	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, BatchTable, s)
	_, err = ParseStrategy("nope")
	assert.Error(t, err)
}
