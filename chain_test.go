package enhance

import (
	"errors"
	"testing"
)

func TestNewChainOrdersBands(t *testing.T) {
	chain, err := NewChain(
		NewFinalLayer("final", "Final Adjustments", Document{"port": 7890}),
		NewScriptLayer(BandProfile, "p-script", "Profile Script", "js", "function main(c){return c}"),
		NewMergeLayer(BandGlobalMerge, "g-merge", "Global Merge", "mode: rule"),
		NewScriptLayer(BandGlobalScript, "g-script", "Global Script", "js", "function main(c){return c}"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantOrder := []string{"g-merge", "g-script", "p-script", "final"}
	layers := chain.Layers()
	if len(layers) != len(wantOrder) {
		t.Fatalf("expected %d layers, got %d", len(wantOrder), len(layers))
	}
	for i, want := range wantOrder {
		if layers[i].ID != want {
			t.Fatalf("expected layer %d to be %q, got %q", i, want, layers[i].ID)
		}
	}
}

func TestNewChainKeepsOrderWithinBand(t *testing.T) {
	chain, err := NewChain(
		NewMergeLayer(BandProfile, "first", "", "a: 1"),
		NewScriptLayer(BandProfile, "second", "", "js", "function main(c){return c}"),
		NewMergeLayer(BandProfile, "third", "", "b: 2"),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ids := []string{}
	for _, layer := range chain.BandLayers(BandProfile) {
		ids = append(ids, layer.ID)
	}
	want := []string{"first", "second", "third"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, ids)
		}
	}
}

func TestNewChainValidation(t *testing.T) {
	valid := NewMergeLayer(BandGlobalMerge, "a", "", "")

	if _, err := NewChain(Layer{Kind: LayerKindMerge, Band: BandGlobalMerge}); !errors.Is(err, ErrLayerIDRequired) {
		t.Fatalf("expected missing id error, got %v", err)
	}
	if _, err := NewChain(valid, NewMergeLayer(BandGlobalMerge, "a", "", "")); !errors.Is(err, ErrDuplicateLayerID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
	if _, err := NewChain(Layer{ID: "x", Kind: LayerKindMerge, Band: Band(9)}); !errors.Is(err, ErrUnknownBand) {
		t.Fatalf("expected unknown band error, got %v", err)
	}
	if _, err := NewChain(NewScriptLayer(BandGlobalMerge, "s", "", "js", "")); !errors.Is(err, ErrKindBand) {
		t.Fatalf("expected kind/band error for script in merge band, got %v", err)
	}
	if _, err := NewChain(NewMergeLayer(BandGlobalScript, "m", "", "")); !errors.Is(err, ErrKindBand) {
		t.Fatalf("expected kind/band error for merge in script band, got %v", err)
	}
	if _, err := NewChain(Layer{ID: "f", Kind: LayerKindFinal, Band: BandProfile}); !errors.Is(err, ErrKindBand) {
		t.Fatalf("expected kind/band error for final outside final band, got %v", err)
	}
}

func TestChainLayersDefensiveCopy(t *testing.T) {
	chain, err := NewChain(NewFinalLayer("final", "", Document{"tun": map[string]any{"enable": true}}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	layers := chain.Layers()
	layers[0].Doc["tun"].(map[string]any)["enable"] = false

	fresh := chain.Layers()
	if fresh[0].Doc["tun"].(map[string]any)["enable"] != true {
		t.Fatal("mutating returned layers must not affect the chain")
	}
}

func TestEmptyChain(t *testing.T) {
	chain, err := NewChain()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chain.Len() != 0 || chain.Layers() != nil {
		t.Fatalf("expected empty chain, got %d layers", chain.Len())
	}
}
