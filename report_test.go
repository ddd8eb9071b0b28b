package enhance

import (
	"testing"
	"time"
)

func TestResultJSONRoundTrip(t *testing.T) {
	result := Result{
		Document: Document{"mode": "rule"},
		Reports: []LayerReport{
			{LayerID: "g-merge", Kind: LayerKindMerge, Band: BandGlobalMerge, Outcome: LayerApplied, Elapsed: 2 * time.Millisecond},
			{LayerID: "p-script", Kind: LayerKindScript, Band: BandProfile, Outcome: LayerSkippedError, Error: "script must contain a main function", Logs: []string{"boot"}},
		},
	}

	payload, err := result.ToJSON()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	decoded, err := ResultFromJSON(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if decoded.Document["mode"] != "rule" {
		t.Fatalf("expected document to survive, got %v", decoded.Document)
	}
	if len(decoded.Reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(decoded.Reports))
	}
	if decoded.Reports[1].Outcome != LayerSkippedError || decoded.Reports[1].Error == "" {
		t.Fatalf("expected failure report to survive, got %+v", decoded.Reports[1])
	}
}

func TestResultFailed(t *testing.T) {
	result := Result{
		Reports: []LayerReport{
			{LayerID: "a", Outcome: LayerApplied},
			{LayerID: "b", Outcome: LayerSkippedError, Error: "boom"},
			{LayerID: "c", Outcome: LayerSkippedDisabled},
		},
	}
	failed := result.Failed()
	if len(failed) != 1 || failed[0].LayerID != "b" {
		t.Fatalf("expected only the failed layer, got %+v", failed)
	}
}
