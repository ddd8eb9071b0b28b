package enhance

import (
	"errors"
	"fmt"
	"sort"
)

// Band identifies one of the fixed pipeline stages. Builds walk bands in
// ascending order.
type Band int

const (
	// BandGlobalMerge holds the registry-wide merge layers.
	BandGlobalMerge Band = iota + 1
	// BandGlobalScript holds the registry-wide script layers.
	BandGlobalScript
	// BandProfile holds the active profile's own chain.
	BandProfile
	// BandFinal holds the computed final adjustments, applied last.
	BandFinal
)

func (b Band) String() string {
	switch b {
	case BandGlobalMerge:
		return "global-merge"
	case BandGlobalScript:
		return "global-script"
	case BandProfile:
		return "profile"
	case BandFinal:
		return "final"
	default:
		return fmt.Sprintf("band(%d)", int(b))
	}
}

func (b Band) valid() bool {
	return b >= BandGlobalMerge && b <= BandFinal
}

// LayerKind identifies how a chain layer transforms the document.
type LayerKind string

const (
	// LayerKindMerge applies a document fragment through the merge engine.
	LayerKindMerge LayerKind = "merge"
	// LayerKindScript runs a sandboxed program over the document.
	LayerKindScript LayerKind = "script"
	// LayerKindFinal applies a computed adjustment document.
	LayerKindFinal LayerKind = "final"
)

// Layer is one transformation step scheduled into a band.
type Layer struct {
	ID       string
	Name     string
	Kind     LayerKind
	Band     Band
	Disabled bool

	// Merge layers carry the raw fragment text; it is parsed at build time
	// so a malformed fragment degrades to a diagnostic instead of failing
	// the run.
	Patch string

	// Script layers carry the program text and the engine that runs it.
	Program string
	Engine  string

	// Final layers carry a pre-computed adjustment document.
	Doc Document
}

// NewMergeLayer builds a merge layer scheduled into band.
func NewMergeLayer(band Band, id, name, patch string) Layer {
	return Layer{
		ID:    id,
		Name:  name,
		Kind:  LayerKindMerge,
		Band:  band,
		Patch: patch,
	}
}

// NewScriptLayer builds a script layer scheduled into band. An empty engine
// resolves to DefaultEngine at build time.
func NewScriptLayer(band Band, id, name, engine, program string) Layer {
	return Layer{
		ID:      id,
		Name:    name,
		Kind:    LayerKindScript,
		Band:    band,
		Engine:  engine,
		Program: program,
	}
}

// NewFinalLayer builds the final-adjustment layer from a computed patch.
func NewFinalLayer(id, name string, doc Document) Layer {
	return Layer{
		ID:   id,
		Name: name,
		Kind: LayerKindFinal,
		Band: BandFinal,
		Doc:  CloneDocument(doc),
	}
}

var (
	// ErrLayerIDRequired indicates a missing layer id.
	ErrLayerIDRequired = errors.New("enhance: layer id must be provided")
	// ErrDuplicateLayerID indicates Chain construction received multiple
	// layers with the same id.
	ErrDuplicateLayerID = errors.New("enhance: layer ids must be unique")
	// ErrUnknownBand indicates a layer scheduled outside the fixed bands.
	ErrUnknownBand = errors.New("enhance: unknown band")
	// ErrKindBand indicates a layer kind not allowed in its band.
	ErrKindBand = errors.New("enhance: layer kind not allowed in band")
)

// Chain is an immutable, validated sequence of layers grouped into the fixed
// bands. Layers keep their relative order inside each band.
type Chain struct {
	layers []Layer
}

// NewChain validates and orders the supplied layers. Layers are deep copied
// so the chain stays read-only after construction.
func NewChain(layers ...Layer) (*Chain, error) {
	if len(layers) == 0 {
		return &Chain{}, nil
	}

	seen := make(map[string]struct{}, len(layers))
	copied := make([]Layer, len(layers))
	for i, layer := range layers {
		layer := cloneChainLayer(layer)
		if layer.ID == "" {
			return nil, ErrLayerIDRequired
		}
		if _, ok := seen[layer.ID]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateLayerID, layer.ID)
		}
		seen[layer.ID] = struct{}{}
		if !layer.Band.valid() {
			return nil, fmt.Errorf("%w: %d", ErrUnknownBand, int(layer.Band))
		}
		if err := checkKindBand(layer); err != nil {
			return nil, err
		}
		copied[i] = layer
	}

	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].Band < copied[j].Band
	})

	return &Chain{layers: copied}, nil
}

func checkKindBand(layer Layer) error {
	allowed := false
	switch layer.Band {
	case BandGlobalMerge:
		allowed = layer.Kind == LayerKindMerge
	case BandGlobalScript:
		allowed = layer.Kind == LayerKindScript
	case BandProfile:
		allowed = layer.Kind == LayerKindMerge || layer.Kind == LayerKindScript
	case BandFinal:
		allowed = layer.Kind == LayerKindFinal
	}
	if !allowed {
		return fmt.Errorf("%w: %s in %s", ErrKindBand, layer.Kind, layer.Band)
	}
	return nil
}

// Layers returns a defensive copy of the underlying layers.
func (c *Chain) Layers() []Layer {
	if c == nil || len(c.layers) == 0 {
		return nil
	}
	out := make([]Layer, len(c.layers))
	for i := range c.layers {
		out[i] = cloneChainLayer(c.layers[i])
	}
	return out
}

// BandLayers returns the layers scheduled into band, in order.
func (c *Chain) BandLayers(band Band) []Layer {
	if c == nil {
		return nil
	}
	var out []Layer
	for i := range c.layers {
		if c.layers[i].Band == band {
			out = append(out, cloneChainLayer(c.layers[i]))
		}
	}
	return out
}

// Len returns the number of layers in the chain.
func (c *Chain) Len() int {
	if c == nil {
		return 0
	}
	return len(c.layers)
}

func cloneChainLayer(layer Layer) Layer {
	out := layer
	out.Doc = nil
	if layer.Doc != nil {
		out.Doc = CloneDocument(layer.Doc)
	}
	return out
}
