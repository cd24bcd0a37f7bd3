package pipeline

import (
	"bytes"
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aqpanel/internal/cleaning"
	"aqpanel/internal/collinearity"
	"aqpanel/internal/config"
	apperrors "aqpanel/internal/errors"
	"aqpanel/internal/infrastructure"
	"aqpanel/internal/loader"
	"aqpanel/internal/report"
)

const collinearPanel = `city,year,a,b,c,d,aqi
Hanoi,2016,10,10,10,5,120
Hanoi,2017,11,11,11,0,125
Hanoi,2018,12,12,12,6,130
Hanoi,2019,13,13,13,4,128
Hue,2016,14,14,14,2,80
Hue,2017,15,15,15,7,82
Hue,2018,16,16,16,8,79
Hue,2019,17,17,17,1,85
`

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "panel.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Input.Path = "panel.csv"
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Output.Format = config.FormatCSV
	require.NoError(t, cfg.Validate())
	return cfg
}

func outputFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)

	var traces bytes.Buffer
	otelCfg := infrastructure.OTelConfigFromTelemetry(config.TelemetryConfig{TraceExporter: "stdout"})
	otelCfg.TraceWriter = &traces
	providers, err := infrastructure.InitializeOTel(otelCfg, nil)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	runner, err := NewFromConfig(cfg, providers, nil)
	require.NoError(t, err)

	ctx := infrastructure.WithRunID(context.Background(), "run-e2e")
	state, err := runner.Run(ctx, writeInput(t, collinearPanel))
	require.NoError(t, err)

	assert.Equal(t, "run-e2e", state.RunID)
	assert.Equal(t, []string{"a", "d"}, state.Prune.Features.Names())
	require.Len(t, state.Prune.Removed, 2)
	assert.Equal(t, "a", state.Prune.Removed[0].Partner)

	assert.Equal(t, collinearity.StatusConverged, state.VIF.Status)
	assert.Empty(t, state.VIF.Removed)
	assert.Equal(t, []string{"a", "d"}, state.Final.FeatureNames())
	assert.Equal(t, "aqi", state.Final.Response.Name)
	assert.Len(t, state.Artifacts, 6)

	for _, st := range state.Steps() {
		assert.Equal(t, StepStatusCompleted, st.Status, st.ID)
	}

	manifest, err := LoadManifest(cfg.Paths().Manifest)
	require.NoError(t, err)
	assert.Equal(t, "run-e2e", manifest.RunID)
	assert.Equal(t, RunStatusCompleted, manifest.Status)
	assert.Equal(t, "converged", manifest.VIFStatus)
	assert.Equal(t, 4, manifest.FeaturesLoaded)
	assert.Equal(t, 2, manifest.FeaturesPruned)
	assert.Equal(t, 2, manifest.FeaturesRetained)
	require.Len(t, manifest.Steps, 5)
	assert.Equal(t, StepLoad, manifest.Steps[0].ID)
	assert.Equal(t, StepReport, manifest.Steps[4].ID)
	assert.Len(t, manifest.Artifacts, len(state.Artifacts), "manifest lists every artifact")
	for _, a := range manifest.Artifacts {
		for _, f := range a.Files {
			assert.FileExists(t, f)
		}
	}

	assert.Contains(t, traces.String(), "pipeline.step.vif")
	assert.Contains(t, traces.String(), "pipeline.run")

	metricsPath := cfg.Paths().MetricsPath(config.MetricsFileName)
	require.NoError(t, providers.WriteMetrics(metricsPath))
	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "aqpanel_step_executions")
	assert.Contains(t, string(metrics), "aqpanel_features_removed")
	assert.Contains(t, string(metrics), `phase="prune"`)
}

func TestRun_LoadFailureWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	runner, err := NewFromConfig(cfg, nil, nil)
	require.NoError(t, err)

	state, err := runner.Run(context.Background(), writeInput(t, "city,year,a,aqi\nHanoi,2016,high,1\n"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeLoad))

	assert.Equal(t, StepStatusFailed, state.Steps()[0].Status)
	assert.Equal(t, StepStatusPending, state.Steps()[1].Status)
	assert.Empty(t, outputFiles(t, cfg.Output.Dir))
}

func TestRun_NormalizationFailureWritesNothing(t *testing.T) {
	cfg := testConfig(t)
	runner, err := NewFromConfig(cfg, nil, nil)
	require.NoError(t, err)

	_, err = runner.Run(context.Background(), writeInput(t,
		"city,year,a,flat,aqi\nA,1,1,5,1\nA,2,2,5,2\nA,3,3,5,3\n"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeNormalization))
	assert.Contains(t, err.Error(), "flat")
	assert.Empty(t, outputFiles(t, cfg.Output.Dir))
}

// stepFunc runs fn as a pipeline step
type stepFunc struct {
	id string
	fn func(*State) error
}

func (s *stepFunc) ID() string   { return s.id }
func (s *stepFunc) Name() string { return s.id }

func (s *stepFunc) Execute(_ context.Context, state *State) error {
	return s.fn(state)
}

func TestRun_VIFNumericFailureStillReports(t *testing.T) {
	cfg := testConfig(t)
	paths := cfg.Paths()
	reporter, err := report.New(paths, nil)
	require.NoError(t, err)

	// a non-finite cell in a retained feature makes every VIF regression fail
	poison := &stepFunc{id: "poison", fn: func(state *State) error {
		tbl := state.Cleaning.Normalized.Clone()
		values, ok := tbl.Column(state.Prune.Features.Names()[0])
		require.True(t, ok)
		values[1] = math.NaN()
		state.Cleaning.Normalized = tbl
		return nil
	}}

	runner := NewRunner([]Step{
		NewLoadStep(loader.New(loader.OptionsFromConfig(cfg.Input), nil)),
		NewCleanStep(cleaning.New(cleaning.Options{ZeroAsMissing: true}, nil), nil),
		NewPruneStep(collinearity.NewPruner(collinearity.PruneOptions{Threshold: 0.95}, nil), nil),
		poison,
		NewVIFStep(collinearity.NewReducer(collinearity.ReduceOptions{}, nil), nil, nil),
		NewReportStep(reporter, reportSettingsForTest()),
	}, WithManifest(paths.Manifest))

	state, err := runner.Run(context.Background(), writeInput(t, collinearPanel))
	require.NoError(t, err, "numeric failure is absorbed")

	assert.Equal(t, collinearity.StatusNumericFailure, state.VIF.Status)
	require.Error(t, state.VIF.Diagnostic)
	assert.Equal(t, 1, state.VIF.Iterations)
	assert.Empty(t, state.VIF.Removed)
	assert.Empty(t, state.VIF.Final)
	assert.Equal(t, state.Prune.Features.Names(), state.Final.FeatureNames())
	assert.Len(t, state.Artifacts, 6)

	manifest, err := LoadManifest(paths.Manifest)
	require.NoError(t, err)
	assert.Equal(t, "numeric_failure", manifest.VIFStatus)
	assert.NotEmpty(t, manifest.VIFDiagnostic)

	narrative, err := os.ReadFile(paths.Narrative)
	require.NoError(t, err)
	assert.Contains(t, string(narrative), "VIF computation failed")
}

func TestRun_SaturatedPanelConverges(t *testing.T) {
	cfg := testConfig(t)
	runner, err := NewFromConfig(cfg, nil, nil)
	require.NoError(t, err)

	// four observations against four predictors: the first VIF pass is
	// infinite for every feature and must remove, not fail
	state, err := runner.Run(context.Background(), writeInput(t, `city,year,f1,f2,f3,f4,aqi
A,1,7,2,4,7,10
A,2,8,1,5,9,11
A,3,3,3,7,7,12
A,4,6,8,5,6,13
`))
	require.NoError(t, err)
	assert.Empty(t, state.Prune.Removed)

	assert.Equal(t, collinearity.StatusConverged, state.VIF.Status)
	assert.NoError(t, state.VIF.Diagnostic)
	require.Len(t, state.VIF.Removed, 1)
	assert.Equal(t, "f1", state.VIF.Removed[0].Feature)
	assert.Equal(t, []string{"f2", "f3", "f4"}, state.Final.FeatureNames())
	for _, r := range state.VIF.Final {
		assert.LessOrEqual(t, r.VIF, 100.0, r.Feature)
	}
}

type fakeStep struct {
	id    string
	err   error
	calls *[]string
}

func (s *fakeStep) ID() string   { return s.id }
func (s *fakeStep) Name() string { return strings.ToUpper(s.id) }

func (s *fakeStep) Execute(ctx context.Context, state *State) error {
	*s.calls = append(*s.calls, s.id)
	return s.err
}

func TestRunner_StopsAtFirstFailure(t *testing.T) {
	var calls []string
	boom := errors.New("boom")
	manifestPath := filepath.Join(t.TempDir(), "manifest.json")

	runner := NewRunner([]Step{
		&fakeStep{id: StepLoad, calls: &calls},
		&fakeStep{id: StepClean, err: boom, calls: &calls},
		&fakeStep{id: StepReport, calls: &calls},
	}, WithManifest(manifestPath))

	state, err := runner.Run(context.Background(), "input.csv")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{StepLoad, StepClean}, calls)

	steps := state.Steps()
	assert.Equal(t, StepStatusCompleted, steps[0].Status)
	assert.Equal(t, StepStatusFailed, steps[1].Status)
	assert.Equal(t, "boom", steps[1].Error)
	assert.Equal(t, StepStatusPending, steps[2].Status)
	assert.NotEmpty(t, state.RunID)

	assert.NoFileExists(t, manifestPath, "no manifest before the report step")
}

func TestRunner_ManifestOnReportFailure(t *testing.T) {
	var calls []string
	manifestPath := filepath.Join(t.TempDir(), "manifest.json")

	runner := NewRunner([]Step{
		&fakeStep{id: StepLoad, calls: &calls},
		&fakeStep{id: StepReport, err: apperrors.NewStorageError("disk full", nil), calls: &calls},
	}, WithManifest(manifestPath))

	_, err := runner.Run(context.Background(), "input.csv")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeStorage))

	manifest, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, manifest.Status)
	assert.Contains(t, manifest.Error, "disk full")
	assert.Empty(t, manifest.Artifacts)
}

func TestSteps_RequireInputs(t *testing.T) {
	state := NewState("r", "in.csv")
	ctx := context.Background()

	for _, step := range []Step{
		NewCleanStep(nil, nil),
		NewPruneStep(nil, nil),
		NewVIFStep(nil, nil, nil),
		NewReportStep(nil, reportSettingsForTest()),
	} {
		err := step.Execute(ctx, state)
		require.Error(t, err, step.ID())
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeValidation), step.ID())
	}
}

func TestStepState(t *testing.T) {
	st := NewStepState("load", "Load input")
	assert.Equal(t, StepStatusPending, st.Status)
	assert.Zero(t, st.Elapsed())

	st.Start()
	assert.Equal(t, StepStatusActive, st.Status)
	st.Fail(errors.New("bad input"))
	assert.Equal(t, StepStatusFailed, st.Status)
	assert.Equal(t, "bad input", st.Error)
	assert.NotEmpty(t, st.Duration)

	st.SetMetadata("rows", 3)
	assert.Equal(t, 3, st.Metadata["rows"])
}

func reportSettingsForTest() report.Settings {
	return report.Settings{CorrelationThreshold: 0.95, VIFCeiling: 100, MaxIterations: 20}
}
