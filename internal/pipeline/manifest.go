package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aqpanel/internal/report"
)

// Run statuses recorded in the manifest
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Manifest records what a run did and what it wrote
type Manifest struct {
	RunID     string            `json:"run_id"`
	Version   string            `json:"version"`
	Source    string            `json:"source"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Status    string            `json:"status"`
	Steps     []*StepState      `json:"steps"`
	Artifacts []report.Artifact `json:"artifacts"`

	FeaturesLoaded   int    `json:"features_loaded"`
	FeaturesPruned   int    `json:"features_pruned"`
	FeaturesRetained int    `json:"features_retained"`
	VIFStatus        string `json:"vif_status,omitempty"`
	VIFIterations    int    `json:"vif_iterations"`
	VIFDiagnostic    string `json:"vif_diagnostic,omitempty"`

	Error string `json:"error,omitempty"`
}

// NewManifest builds the manifest of a finished (or failed) run
func NewManifest(state *State, version string, start, end time.Time, runErr error) *Manifest {
	m := &Manifest{
		RunID:     state.RunID,
		Version:   version,
		Source:    state.Source,
		StartTime: start,
		EndTime:   end,
		Status:    RunStatusCompleted,
		Steps:     state.Steps(),
		Artifacts: state.Artifacts,
	}
	if m.Artifacts == nil {
		m.Artifacts = []report.Artifact{}
	}

	if state.Raw != nil {
		m.FeaturesLoaded = len(state.Raw.Features)
	}
	if state.Prune != nil {
		m.FeaturesPruned = len(state.Prune.Removed)
	}
	if state.VIF != nil {
		m.FeaturesRetained = state.VIF.Features.Len()
		m.VIFStatus = state.VIF.Status.String()
		m.VIFIterations = state.VIF.Iterations
		if state.VIF.Diagnostic != nil {
			m.VIFDiagnostic = state.VIF.Diagnostic.Error()
		}
	}
	if runErr != nil {
		m.Status = RunStatusFailed
		m.Error = runErr.Error()
	}
	return m
}

// Save writes the manifest as indented JSON
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// LoadManifest reads a manifest written by Save
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}
