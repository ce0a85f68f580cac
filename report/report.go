// Package report renders the configuration echo and summary of a run.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sarchlab/cachesim/timing/cache"
	"github.com/sarchlab/cachesim/timing/stats"
)

// WriteConfig echoes the cache configuration.
func WriteConfig(w io.Writer, config cache.Config) {
	_, _ = fmt.Fprintln(w, "CACHE SETTINGS")
	_, _ = fmt.Fprintf(w, "  Cache Size (Bytes):                %d\n", config.Size)
	_, _ = fmt.Fprintf(w, "  Associativity:                     %d\n", config.Associativity)
	_, _ = fmt.Fprintf(w, "  Block Size (Bytes):                %d\n", config.BlockSize)
	_, _ = fmt.Fprintf(w, "  Sets:                              %d\n", config.NumSets())
	_, _ = fmt.Fprintf(w, "  Replacement Policy:                %s\n", policyName(config))
	_, _ = fmt.Fprintf(w, "  Miss Penalty (Cycles):             %d\n", config.MissPenalty)
	_, _ = fmt.Fprintf(w, "  Dirty Write-back Penalty (Cycles): %d\n", config.DirtyWritebackPenalty)
}

// WriteText writes the configuration echo followed by the statistics.
func WriteText(w io.Writer, config cache.Config, s stats.Summary) {
	WriteConfig(w, config)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "CACHE STATISTICS")
	_, _ = fmt.Fprintf(w, "  Accesses:         %d\n", s.Accesses)
	_, _ = fmt.Fprintf(w, "  Writes:           %d\n", s.Writes)
	_, _ = fmt.Fprintf(w, "  Misses:           %d\n", s.Misses)
	_, _ = fmt.Fprintf(w, "  Dirty Writebacks: %d\n", s.DirtyWritebacks)
	_, _ = fmt.Fprintf(w, "  Instructions:     %d\n", s.Instructions)
	_, _ = fmt.Fprintf(w, "  Total Cycles:     %d\n", s.TotalCycles)
	_, _ = fmt.Fprintf(w, "  Miss Rate:        %.2f%%\n", s.MissRate)
	_, _ = fmt.Fprintf(w, "  IPC:              %.4f\n", s.IPC)
}

// WriteDegenerate writes the configuration echo and states that no metrics
// can be derived.
func WriteDegenerate(w io.Writer, config cache.Config, counters stats.Counters) {
	WriteConfig(w, config)
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "CACHE STATISTICS")
	_, _ = fmt.Fprintf(w, "  Accesses:         %d\n", counters.Accesses)
	_, _ = fmt.Fprintln(w, "  Miss Rate:        undefined (no accesses)")
	_, _ = fmt.Fprintln(w, "  IPC:              undefined (no cycles)")
}

// Report is the JSON form of a run. A degenerate run carries its raw
// counters and the reason instead of a summary.
type Report struct {
	Config     cache.Config    `json:"config"`
	Summary    *stats.Summary  `json:"summary,omitempty"`
	Counters   *stats.Counters `json:"counters,omitempty"`
	Degenerate bool            `json:"degenerate,omitempty"`
	Reason     string          `json:"reason,omitempty"`
}

// WriteJSON writes the configuration and summary as indented JSON.
func WriteJSON(w io.Writer, config cache.Config, s stats.Summary) error {
	return encode(w, Report{Config: config, Summary: &s})
}

// WriteDegenerateJSON writes the configuration and counters of a run whose
// metrics are undefined, marked degenerate with the given reason.
func WriteDegenerateJSON(w io.Writer, config cache.Config, counters stats.Counters, reason string) error {
	return encode(w, Report{
		Config:     config,
		Counters:   &counters,
		Degenerate: true,
		Reason:     reason,
	})
}

func encode(w io.Writer, r Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

func policyName(config cache.Config) string {
	if config.Policy == "" {
		return cache.PolicyCounter
	}
	return config.Policy
}
