package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/refdrift/internal/dataset"
)

func newGoldie(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func driftReport() dataset.Report {
	return dataset.Report{
		Source: "tmp/source_reference_data/Example_Track/Save/Track.nc",
		Target: "tmp/target_reference_data/Example_Track/Save/Track.nc",
		Findings: []dataset.Finding{
			{Kind: dataset.GlobalAttributeMismatch, Name: "source"},
			{Kind: dataset.MissingVariable, Variable: "cell", MissingFrom: dataset.SideTarget},
			{Kind: dataset.VariableAttributeMismatch, Name: "units", Variable: "lat"},
			{Kind: dataset.VariableDataMismatch, Variable: "lat"},
		},
	}
}

func TestRender_Different(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, driftReport()))
	newGoldie(t).Assert(t, "render_different", buf.Bytes())
}

func TestRender_Same(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, dataset.Report{Source: "a/Save/x.nc", Target: "b/Save/x.nc"}))
	assert.Equal(t, "Comparison result for a/Save/x.nc and b/Save/x.nc: Same\n", buf.String())
}

func TestSink_RunTranscript(t *testing.T) {
	var progress bytes.Buffer
	sink, err := OpenSink("", &progress)
	require.NoError(t, err)

	require.NoError(t, sink.WriteHeader(Header{
		RunID:    "018f0000-0000-7000-8000-000000000001",
		Version1: "1.5.1",
		Version2: "1.5.2",
		Started:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}))
	require.NoError(t, sink.WriteReport(driftReport()))
	require.NoError(t, sink.WriteReport(dataset.Report{
		Source: "tmp/source_reference_data/Example_Track/Save/Features.nc",
		Target: "tmp/target_reference_data/Example_Track/Save/Features.nc",
	}))
	require.NoError(t, sink.WriteSummary(Summary{Same: 1, Different: 1, Skipped: 2}))
	require.NoError(t, sink.Close())

	newGoldie(t).Assert(t, "run_transcript", progress.Bytes())
}

func TestSink_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "comparison_results.txt")
	r := dataset.Report{Source: "a", Target: "b"}

	for i := 0; i < 2; i++ {
		sink, err := OpenSink(path, nil)
		require.NoError(t, err)
		require.NoError(t, sink.WriteReport(r))
		require.NoError(t, sink.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Comparison result for a and b: Same\nComparison result for a and b: Same\n", string(data))
}

func TestSink_MirrorsToProgress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.txt")
	var progress bytes.Buffer

	sink, err := OpenSink(path, &progress)
	require.NoError(t, err)
	assert.Equal(t, path, sink.Path())
	require.NoError(t, sink.WriteReport(driftReport()))
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, progress.String(), string(data))
}

func TestOpenSink_BadPath(t *testing.T) {
	_, err := OpenSink(filepath.Join(t.TempDir(), "missing", "results.txt"), nil)
	assert.Error(t, err)
}
