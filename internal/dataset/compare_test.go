package dataset

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() *Dataset {
	return &Dataset{
		Attributes: map[string]any{"source": "sat", "version": int32(3)},
		Variables: map[string]*Variable{
			"track": {
				Dimensions: []string{"index"},
				Attributes: map[string]any{"units": "1"},
				Values:     []int32{1, 1, 2},
			},
			"lat": {
				Dimensions: []string{"index"},
				Attributes: map[string]any{"units": "degrees_north"},
				Values:     []float64{10.5, math.NaN(), 11},
			},
		},
	}
}

func TestCompare_Reflexive(t *testing.T) {
	a := sample()
	assert.True(t, Equal(a, a))
	assert.Empty(t, Compare(a, a))
	assert.Empty(t, Compare(sample(), sample()), "NaN at the same position compares equal")
}

func TestCompare_GlobalAttributeScenario(t *testing.T) {
	a, b := sample(), sample()
	b.Attributes["source"] = "radar"

	assert.Equal(t, []Finding{{Kind: GlobalAttributeMismatch, Name: "source"}}, Compare(a, b))
}

func TestCompare_MissingVariableScenario(t *testing.T) {
	a, b := sample(), sample()
	delete(b.Variables, "track")

	findings := Compare(a, b)
	assert.Equal(t, []Finding{{Kind: MissingVariable, Variable: "track", MissingFrom: SideTarget}}, findings)
	for _, f := range findings {
		assert.NotEqual(t, VariableDataMismatch, f.Kind)
	}
}

func TestCompare_SymmetricUpToSides(t *testing.T) {
	a, b := sample(), sample()
	delete(b.Variables, "track")
	b.Variables["mask"] = &Variable{Dimensions: []string{"x"}, Values: []int8{0, 1}}
	b.Attributes["extra"] = "yes"
	b.Variables["lat"].Values = []float64{10.5, math.NaN(), 12}

	forward := Compare(a, b)
	backward := Compare(b, a)
	require.Len(t, backward, len(forward))

	swap := map[Side]Side{SideSource: SideTarget, SideTarget: SideSource, "": ""}
	for i := range forward {
		f := forward[i]
		f.MissingFrom = swap[f.MissingFrom]
		assert.Equal(t, f, backward[i])
	}
}

func TestCompare_OrderIndependent(t *testing.T) {
	a := sample()
	b := &Dataset{Attributes: map[string]any{}, Variables: map[string]*Variable{}}
	b.Attributes["version"] = int32(3)
	b.Attributes["source"] = "sat"
	b.Variables["lat"] = a.Variables["lat"]
	b.Variables["track"] = a.Variables["track"]

	assert.Empty(t, Compare(a, b))
}

func TestCompare_FullOrdering(t *testing.T) {
	a, b := sample(), sample()
	a.Attributes["zeta"] = "1"
	b.Attributes["alpha"] = "1"
	b.Variables["track"].Attributes["units"] = "count"
	b.Variables["track"].Values = []int32{1, 1, 3}
	b.Variables["lat"].Attributes["long_name"] = "latitude"
	delete(b.Variables, "lat")
	b.Variables["area"] = &Variable{Values: []float32{1}}

	assert.Equal(t, []Finding{
		{Kind: GlobalAttributeMismatch, Name: "alpha"},
		{Kind: GlobalAttributeMismatch, Name: "zeta"},
		{Kind: MissingVariable, Variable: "area", MissingFrom: SideSource},
		{Kind: MissingVariable, Variable: "lat", MissingFrom: SideTarget},
		{Kind: VariableAttributeMismatch, Name: "units", Variable: "track"},
		{Kind: VariableDataMismatch, Variable: "track"},
	}, Compare(a, b))
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"same ints", []int32{1, 2}, []int32{1, 2}, true},
		{"dtype differs", []int32{1, 2}, []int64{1, 2}, false},
		{"shape differs", []float32{1, 2}, []float32{1, 2, 3}, false},
		{"nested shape", [][]float32{{1, 2}}, [][]float32{{1}, {2}}, false},
		{"nan scalar", math.NaN(), math.NaN(), true},
		{"nan vs number", []float64{math.NaN()}, []float64{0}, false},
		{"attribute type strict", "1", int32(1), false},
		{"both nil", nil, nil, true},
		{"nil vs value", nil, "x", false},
		{"empty vs nil slice", []float32{}, []float32(nil), true},
		{"complex nan", complex(math.NaN(), 1), complex(math.NaN(), 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.a, tt.b))
		})
	}
}

func TestCompare_DimensionsCountAsData(t *testing.T) {
	a, b := sample(), sample()
	b.Variables["track"].Dimensions = []string{"feature"}

	assert.False(t, Equal(a, b))
	assert.Equal(t, []Finding{{Kind: VariableDataMismatch, Variable: "track"}}, Compare(a, b))
}

func TestFinding_String(t *testing.T) {
	assert.Equal(t, "Global attribute 'source' differs.",
		Finding{Kind: GlobalAttributeMismatch, Name: "source"}.String())
	assert.Equal(t, "Variable 'track' is not present in both files.",
		Finding{Kind: MissingVariable, Variable: "track", MissingFrom: SideTarget}.String())
	assert.Equal(t, "Attribute 'units' of variable 'lat' differs.",
		Finding{Kind: VariableAttributeMismatch, Name: "units", Variable: "lat"}.String())
	assert.Equal(t, "Data of variable 'lat' differs.",
		Finding{Kind: VariableDataMismatch, Variable: "lat"}.String())
}

func TestReport_Digest(t *testing.T) {
	findings := []Finding{{Kind: MissingVariable, Variable: "track", MissingFrom: SideTarget}}
	r1 := Report{Source: "/a/x.nc", Target: "/b/x.nc", Findings: findings}
	r2 := Report{Source: "/c/x.nc", Target: "/d/x.nc", Findings: findings}

	d1, err := r1.Digest()
	require.NoError(t, err)
	d2, err := r2.Digest()
	require.NoError(t, err)
	assert.Equal(t, d1, d2)

	same, err := Report{}.Digest()
	require.NoError(t, err)
	assert.NotEqual(t, d1, same)
	assert.Equal(t, "Different", r1.Result())
	assert.Equal(t, "Same", Report{}.Result())
}

type mapLoader map[string]*Dataset

func (m mapLoader) Load(_ context.Context, path string) (*Dataset, error) {
	ds, ok := m[path]
	if !ok {
		return nil, errors.New("no such dataset")
	}
	return ds, nil
}

func TestComparator_CompareFiles(t *testing.T) {
	b := sample()
	b.Attributes["source"] = "radar"
	c := NewComparator(mapLoader{"a.nc": sample(), "b.nc": b})

	r, err := c.CompareFiles(context.Background(), "a.nc", "b.nc")
	require.NoError(t, err)
	assert.Equal(t, "a.nc", r.Source)
	assert.Equal(t, "b.nc", r.Target)
	assert.Len(t, r.Findings, 1)

	_, err = c.CompareFiles(context.Background(), "a.nc", "missing.nc")
	assert.ErrorContains(t, err, "missing.nc")
}
