package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Stage names one step of an update run, in the order the pipeline runs them.
type Stage string

const (
	StageDetectChanges Stage = "detect_changes"
	StageReindex       Stage = "reindex"
	StageImpact        Stage = "impact_analysis"
	StageExpand        Stage = "expand"
	StageReport        Stage = "report"
)

type StageStatus string

const (
	StatusOK      StageStatus = "ok"
	StatusSkipped StageStatus = "skipped"
	StatusError   StageStatus = "error"
)

// Counter is a per-stage tally key.
type Counter string

const (
	CounterChanges   Counter = "changes"
	CounterFiles     Counter = "files"
	CounterRegions   Counter = "regions"
	CounterReindexed Counter = "reindexed"
	CounterRemoved   Counter = "removed"
	CounterUnchanged Counter = "unchanged"
	CounterStale     Counter = "stale"
	CounterTampered  Counter = "tampered"
	CounterDeleted   Counter = "deleted"
	CounterWritten   Counter = "written"
	CounterChanged   Counter = "changed"
	CounterFailed    Counter = "failed"
)

type Counters map[Counter]float64

// Severity grades scan diagnostics (error, warning) and run signals
// (critical, warning, info).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Signal is the code of something a run wants a human to look at.
type Signal string

const (
	SignalTampered        Signal = "tampered_region"   // output differs from the last expansion
	SignalStaleKept       Signal = "stale_region_kept" // stale, but tampered, so left alone
	SignalFatal           Signal = "fatal_region"      // file has a fatal annotation error
	SignalExpansionFailed Signal = "expansion_failed"
)

// Severity is fixed per code; unknown codes are informational.
func (s Signal) Severity() Severity {
	switch s {
	case SignalFatal:
		return SeverityCritical
	case SignalTampered, SignalStaleKept, SignalExpansionFailed:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}

type RunSignal struct {
	Code     Signal   `json:"code"`
	Stage    Stage    `json:"stage"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Value    float64  `json:"value,omitempty"`
}

type StageMetric struct {
	Name       Stage       `json:"name"`
	Status     StageStatus `json:"status"`
	StartedAt  string      `json:"started_at"`
	FinishedAt string      `json:"finished_at"`
	DurationMS int64       `json:"duration_ms"`
	Counters   Counters    `json:"counters,omitempty"`
	Notes      []string    `json:"notes,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// RegionTally is the region-level outcome of a run, collected from stage
// counters and signals.
type RegionTally struct {
	Reindexed int `json:"files_reindexed"`
	Stale     int `json:"stale"`
	Tampered  int `json:"tampered"`
	Kept      int `json:"stale_kept"`
	Changed   int `json:"expanded"`
	Failed    int `json:"failed"`
}

type RunSummary struct {
	StageCount        int              `json:"stage_count"`
	FailedStages      int              `json:"failed_stages"`
	SkippedStages     int              `json:"skipped_stages"`
	SignalsBySeverity map[Severity]int `json:"signals_by_severity"`
	Regions           RegionTally      `json:"regions"`
}

// RunReport records the stages of one update run.
type RunReport struct {
	Version     string        `json:"version"`
	Mode        string        `json:"mode"`
	Root        string        `json:"root"`
	GeneratedAt string        `json:"generated_at"`
	Stages      []StageMetric `json:"stages"`
	Signals     []RunSignal   `json:"signals,omitempty"`
	Summary     RunSummary    `json:"summary"`
}

type StageHandle struct {
	stage   Stage
	started time.Time
}

func NewRunReport(mode, root string) *RunReport {
	return &RunReport{
		Version:     "v1",
		Mode:        mode,
		Root:        root,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Stages:      []StageMetric{},
		Signals:     []RunSignal{},
	}
}

func (r *RunReport) BeginStage(stage Stage) StageHandle {
	return StageHandle{stage: stage, started: time.Now().UTC()}
}

// EndStage records a finished stage. A non-nil err turns an "ok" status
// into "error".
func (r *RunReport) EndStage(h StageHandle, status StageStatus, counters Counters, notes []string, err error) {
	if r == nil || h.stage == "" {
		return
	}
	if strings.TrimSpace(string(status)) == "" {
		status = StatusOK
	}
	finished := time.Now().UTC()
	m := StageMetric{
		Name:       h.stage,
		Status:     status,
		StartedAt:  h.started.Format(time.RFC3339Nano),
		FinishedAt: finished.Format(time.RFC3339Nano),
		DurationMS: finished.Sub(h.started).Milliseconds(),
		Counters:   cleanCounters(counters),
		Notes:      cleanNotes(notes),
	}
	if err != nil {
		m.Error = err.Error()
		if status == StatusOK {
			m.Status = StatusError
		}
	}
	r.Stages = append(r.Stages, m)
}

func (r *RunReport) AddSignal(code Signal, stage Stage, message string, value float64) {
	if r == nil {
		return
	}
	s := RunSignal{
		Code:     code,
		Stage:    stage,
		Severity: code.Severity(),
		Message:  strings.TrimSpace(message),
		Value:    value,
	}
	if s.Code == "" || s.Stage == "" || s.Message == "" {
		return
	}
	r.Signals = append(r.Signals, s)
}

// Stage returns the last metric recorded for stage.
func (r *RunReport) Stage(stage Stage) (StageMetric, bool) {
	for i := len(r.Stages) - 1; i >= 0; i-- {
		if r.Stages[i].Name == stage {
			return r.Stages[i], true
		}
	}
	return StageMetric{}, false
}

// Finalize orders signals by severity and fills in the summary.
func (r *RunReport) Finalize() {
	if r == nil {
		return
	}
	r.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	severityCount := map[Severity]int{
		SeverityCritical: 0,
		SeverityWarning:  0,
		SeverityInfo:     0,
	}
	sort.SliceStable(r.Signals, func(i, j int) bool {
		pi := signalPriority(r.Signals[i].Severity)
		pj := signalPriority(r.Signals[j].Severity)
		if pi == pj {
			if r.Signals[i].Stage == r.Signals[j].Stage {
				return r.Signals[i].Code < r.Signals[j].Code
			}
			return r.Signals[i].Stage < r.Signals[j].Stage
		}
		return pi > pj
	})
	for _, s := range r.Signals {
		severityCount[s.Severity]++
	}

	failed, skipped := 0, 0
	for _, st := range r.Stages {
		switch st.Status {
		case StatusOK:
		case StatusSkipped:
			skipped++
		default:
			failed++
		}
	}

	r.Summary = RunSummary{
		StageCount:        len(r.Stages),
		FailedStages:      failed,
		SkippedStages:     skipped,
		SignalsBySeverity: severityCount,
		Regions:           r.tally(),
	}
}

func (r *RunReport) tally() RegionTally {
	var t RegionTally
	count := func(stage Stage, c Counter) int {
		m, ok := r.Stage(stage)
		if !ok {
			return 0
		}
		return int(m.Counters[c])
	}
	t.Reindexed = count(StageReindex, CounterReindexed)
	t.Stale = count(StageImpact, CounterStale)
	t.Tampered = count(StageImpact, CounterTampered)
	t.Changed = count(StageExpand, CounterChanged)
	t.Failed = count(StageExpand, CounterFailed)
	for _, s := range r.Signals {
		if s.Code == SignalStaleKept {
			t.Kept++
		}
	}
	return t
}

func (r *RunReport) Save(path string) error {
	if r == nil {
		return nil
	}
	r.Finalize()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0644)
}

func cleanCounters(raw Counters) Counters {
	if len(raw) == 0 {
		return nil
	}
	out := make(Counters, len(raw))
	for k, v := range raw {
		if strings.TrimSpace(string(k)) == "" {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func cleanNotes(raw []string) []string {
	var out []string
	for _, n := range raw {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func signalPriority(severity Severity) int {
	switch severity {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	default:
		return 1
	}
}
