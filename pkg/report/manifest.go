package report

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anshulg954/TabAdjust/pkg/backtest"
)

// Manifest summarizes a run for humans and for tooling that picks up the
// artifact set: identity, counts, failures, and where the CSVs landed.
type Manifest struct {
	RunID     string            `yaml:"run_id"`
	Model     string            `yaml:"model"`
	Started   time.Time         `yaml:"started"`
	Elapsed   string            `yaml:"elapsed"`
	Dates     int               `yaml:"dates"`
	Succeeded int               `yaml:"succeeded"`
	Failed    int               `yaml:"failed"`
	Failures  []ManifestFailure `yaml:"failures,omitempty"`
	Artifacts []string          `yaml:"artifacts"`
}

type ManifestFailure struct {
	Date  string `yaml:"date"`
	Error string `yaml:"error"`
}

// WriteManifest writes the run manifest as YAML at the given path.
func WriteManifest(path string, res *backtest.RunResult, artifacts []string) error {
	m := Manifest{
		RunID:     res.RunID,
		Model:     res.ModelName,
		Started:   res.Started.UTC(),
		Elapsed:   res.Elapsed.String(),
		Dates:     len(res.Dates),
		Succeeded: res.Succeeded(),
		Failed:    len(res.Dates) - res.Succeeded(),
		Artifacts: artifacts,
	}
	for i := range res.Dates {
		dr := &res.Dates[i]
		if dr.Failed() {
			m.Failures = append(m.Failures, ManifestFailure{
				Date:  dr.Date.Format("2006-01-02"),
				Error: dr.Err.Error(),
			})
		}
	}

	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
