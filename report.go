package enhance

import (
	"encoding/json"
	"time"
)

// LayerOutcome classifies how a layer participated in a build.
type LayerOutcome string

const (
	// LayerApplied marks layers whose transformation reached the document.
	LayerApplied LayerOutcome = "applied"
	// LayerSkippedError marks layers that failed and left the document
	// unchanged.
	LayerSkippedError LayerOutcome = "skipped-error"
	// LayerSkippedDisabled marks layers excluded before execution.
	LayerSkippedDisabled LayerOutcome = "skipped-disabled"
)

// LayerReport details how a single layer contributed to a build.
type LayerReport struct {
	LayerID string        `json:"layer_id"`
	Name    string        `json:"name,omitempty"`
	Kind    LayerKind     `json:"kind"`
	Band    Band          `json:"band"`
	Outcome LayerOutcome  `json:"outcome"`
	Error   string        `json:"error,omitempty"`
	Logs    []string      `json:"logs,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// Result carries the document produced by a build alongside the per-layer
// reports, in execution order.
type Result struct {
	Document Document      `json:"document"`
	Reports  []LayerReport `json:"reports"`
}

// Failed returns the reports for layers skipped by an error.
func (r Result) Failed() []LayerReport {
	var out []LayerReport
	for _, report := range r.Reports {
		if report.Outcome == LayerSkippedError {
			out = append(out, report)
		}
	}
	return out
}

// ToJSON serialises the result for logging or transport helpers.
func (r Result) ToJSON() ([]byte, error) {
	type alias Result
	return json.Marshal(alias(r))
}

// ResultFromJSON deserialises a payload that was previously generated via
// ToJSON.
func ResultFromJSON(payload []byte) (Result, error) {
	type alias Result
	var result alias
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, err
	}
	return Result(result), nil
}
