package profile

import (
	"errors"

	enhance "github.com/goliatone/go-enhance"
)

// FinalLayerID names the synthetic layer carrying the computed final
// adjustments.
const FinalLayerID = "final-adjustments"

// ErrNoActiveProfile indicates a build was requested with no active base
// document selected.
var ErrNoActiveProfile = errors.New("profile: no active profile")

// Snapshot is an isolated copy of the catalog taken for one build. It
// resolves the global chain, the active profile's chain, and the final
// adjustments into the fixed band layout consumed by the pipeline.
type Snapshot struct {
	Items       []Item
	ActiveID    string
	GlobalChain []string
}

// Item returns the snapshot item with the given id.
func (s Snapshot) Item(id string) (Item, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item.Clone(), true
		}
	}
	return Item{}, false
}

// Active returns the snapshot's active profile item.
func (s Snapshot) Active() (Item, bool) {
	if s.ActiveID == "" {
		return Item{}, false
	}
	return s.Item(s.ActiveID)
}

// BaseDocument parses the active profile's content into the document that
// seeds the build. The base is the profile content alone: operational
// defaults such as listening ports and the controller endpoint are not
// merged here, they arrive through the final-adjustment layer so that no
// earlier layer can override them.
func (s Snapshot) BaseDocument() (enhance.Document, error) {
	active, ok := s.Active()
	if !ok {
		return nil, ErrNoActiveProfile
	}
	return enhance.ParseDocument([]byte(active.Content))
}

// Chain assembles the build chain: the global chain's merge items fill the
// global-merge band, its script items the global-script band, the active
// profile's own chain fills the profile band, and final carries the
// computed adjustments applied last. Chain entries that no longer resolve
// to a chainable item are skipped.
func (s Snapshot) Chain(final enhance.Document) (*enhance.Chain, error) {
	byID := make(map[string]Item, len(s.Items))
	for _, item := range s.Items {
		byID[item.ID] = item
	}

	var layers []enhance.Layer
	for _, id := range s.GlobalChain {
		item, ok := byID[id]
		if !ok {
			continue
		}
		switch item.Kind {
		case KindMerge:
			layers = append(layers, mergeLayer(enhance.BandGlobalMerge, item))
		case KindScript:
			layers = append(layers, scriptLayer(enhance.BandGlobalScript, item))
		}
	}

	if active, ok := byID[s.ActiveID]; ok {
		for _, id := range active.Chain {
			item, ok := byID[id]
			if !ok {
				continue
			}
			switch item.Kind {
			case KindMerge:
				layers = append(layers, mergeLayer(enhance.BandProfile, item))
			case KindScript:
				layers = append(layers, scriptLayer(enhance.BandProfile, item))
			}
		}
	}

	if final != nil {
		layers = append(layers, enhance.NewFinalLayer(FinalLayerID, "final adjustments", final))
	}

	return enhance.NewChain(layers...)
}

func mergeLayer(band enhance.Band, item Item) enhance.Layer {
	layer := enhance.NewMergeLayer(band, item.ID, item.Name, item.Content)
	layer.Disabled = !item.Enabled
	return layer
}

func scriptLayer(band enhance.Band, item Item) enhance.Layer {
	layer := enhance.NewScriptLayer(band, item.ID, item.Name, item.Engine, item.Content)
	layer.Disabled = !item.Enabled
	return layer
}
