package indexer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robert-at-pretension-io/svdoc/internal/doc"
)

// timingEvent is one JSON line of the timing file. Stage events carry the
// number of things the stage handled; file events carry what documenting the
// file produced.
type timingEvent struct {
	Kind        string     `json:"kind"`
	Phase       string     `json:"phase"`
	File        string     `json:"file,omitempty"`
	Library     string     `json:"library,omitempty"`
	Status      string     `json:"status,omitempty"`
	Count       int        `json:"count,omitempty"`
	Items       *doc.Stats `json:"items,omitempty"`
	Diagnostics int        `json:"diagnostics,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartMS     float64    `json:"start_ms"`
	DurationMS  float64    `json:"duration_ms"`
}

// timeline accumulates stage totals for the run log and, when given a path,
// streams every event to a JSONL file.
type timeline struct {
	origin time.Time

	mu      sync.Mutex
	stages  map[string]time.Duration
	slowest struct {
		file string
		took time.Duration
	}

	out *os.File
	enc *json.Encoder
	err error
}

func newTimeline(origin time.Time, path string) *timeline {
	tl := &timeline{origin: origin, stages: make(map[string]time.Duration)}
	if path == "" {
		return tl
	}
	f, err := os.Create(path)
	if err != nil {
		tl.err = err
		return tl
	}
	tl.out = f
	tl.enc = json.NewEncoder(f)
	return tl
}

// Err reports why the timing file could not be created.
func (tl *timeline) Err() error { return tl.err }

func (tl *timeline) Close() {
	if tl.out != nil {
		_ = tl.out.Close()
	}
}

// Stage records a finished stage that began at start and handled count
// files or rows.
func (tl *timeline) Stage(phase string, start time.Time, count int) {
	took := time.Since(start)
	tl.mu.Lock()
	defer tl.mu.Unlock()
	tl.stages[phase] += took
	tl.emit(timingEvent{Kind: "stage", Phase: phase, Count: count}, start, took)
}

// File records the outcome of documenting one file.
func (tl *timeline) File(o *fileOutcome, start time.Time) {
	took := time.Since(start)
	ev := timingEvent{
		Kind:    "file",
		Phase:   "document",
		File:    o.path,
		Library: o.info.LibraryName,
		Status:  o.status,
	}
	if o.doc != nil {
		items := o.doc.Data.Count()
		ev.Items = &items
		ev.Diagnostics = len(o.doc.Diagnostics)
	}
	if o.parseErr != nil {
		ev.Error = o.parseErr.Error()
	}

	tl.mu.Lock()
	defer tl.mu.Unlock()
	if took > tl.slowest.took {
		tl.slowest.file, tl.slowest.took = o.path, took
	}
	tl.emit(ev, start, took)
}

// emit writes ev; the caller holds mu.
func (tl *timeline) emit(ev timingEvent, start time.Time, took time.Duration) {
	if tl.enc == nil {
		return
	}
	ev.StartMS = millis(start.Sub(tl.origin))
	ev.DurationMS = millis(took)
	_ = tl.enc.Encode(ev)
}

// Totals returns the summed duration of every stage.
func (tl *timeline) Totals() map[string]time.Duration {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	out := make(map[string]time.Duration, len(tl.stages))
	for k, v := range tl.stages {
		out[k] = v
	}
	return out
}

// Slowest returns the file that took longest to document.
func (tl *timeline) Slowest() (string, time.Duration) {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.slowest.file, tl.slowest.took
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

// resolveTimingPath picks the timing file: SVDOC_TIMING_JSONL wins, then the
// Timing field or SVDOC_TIMING put timing.jsonl next to the sources.
func (idx *Indexer) resolveTimingPath(rootPath string) string {
	if p := os.Getenv("SVDOC_TIMING_JSONL"); p != "" {
		return p
	}
	if !idx.Timing && !envBool("SVDOC_TIMING") {
		return ""
	}
	if idx.Timing && idx.TimingPath != "" {
		return idx.TimingPath
	}
	return filepath.Join(rootPath, "timing.jsonl")
}

func envBool(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
