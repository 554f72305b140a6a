package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pithecene-io/triage/metrics"
	"github.com/pithecene-io/triage/types"
)

// RunReport is the structured JSON report written by --report and stored as
// the run summary.
type RunReport struct {
	RunID      string        `json:"run_id"`
	Backend    string        `json:"backend"`
	Day        string        `json:"day"`
	Outcome    OutcomeStatus `json:"outcome"`
	Message    string        `json:"message"`
	ExitCode   int           `json:"exit_code"`
	StartedAt  string        `json:"started_at"`
	DurationMs int64         `json:"duration_ms"`

	Counts  *ReportCounts     `json:"counts"`
	Metrics *metrics.Snapshot `json:"metrics"`

	MissingLogEntries []string     `json:"missing_log_entries,omitempty"`
	Items             []ReportItem `json:"items,omitempty"`
}

// ReportCounts holds item counts by audit status.
type ReportCounts struct {
	Discovered  int `json:"discovered"`
	Processed   int `json:"processed"`
	Failed      int `json:"failed"`
	MoveFailed  int `json:"move_failed"`
	LogFailures int `json:"log_failures"`
}

// ReportItem is the per-item line of a report.
type ReportItem struct {
	Key            string       `json:"key"`
	DestinationKey string       `json:"destination_key"`
	Status         types.Status `json:"status"`
	PredictedClass string       `json:"predicted_class,omitempty"`
	Error          string       `json:"error,omitempty"`
	Logged         bool         `json:"logged"`
}

// BuildRunReport composes a RunReport from a RunResult and metrics snapshot.
// The exitCode is the process exit code that will be returned to the caller.
func BuildRunReport(result *RunResult, snap metrics.Snapshot, exitCode int) *RunReport {
	report := &RunReport{
		Day:        result.Day,
		ExitCode:   exitCode,
		StartedAt:  result.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationMs: result.Duration.Milliseconds(),
		Counts: &ReportCounts{
			Discovered:  result.Discovered,
			Processed:   result.Processed,
			Failed:      result.Failed,
			MoveFailed:  result.MoveFailed,
			LogFailures: result.LogFailures,
		},
		Metrics:           &snap,
		MissingLogEntries: result.MissingLogEntries,
	}
	if result.RunMeta != nil {
		report.RunID = result.RunMeta.RunID
		report.Backend = result.RunMeta.Backend
	}
	if result.Outcome != nil {
		report.Outcome = result.Outcome.Status
		report.Message = result.Outcome.Message
	}

	for _, ir := range result.Items {
		ri := ReportItem{
			Key:    ir.Item.Key,
			Logged: ir.LogErr == nil,
		}
		if ir.Entry != nil {
			ri.DestinationKey = ir.Entry.DestinationKey
			ri.Status = ir.Entry.Status
			ri.PredictedClass = ir.Entry.PredictedClass
			ri.Error = ir.Entry.ErrorMessage
		}
		report.Items = append(report.Items, ri)
	}

	return report
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *RunReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := writeRunReportTo(report, f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeRunReportTo writes report JSON to any writer.
func writeRunReportTo(report *RunReport, w io.Writer) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
