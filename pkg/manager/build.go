package manager

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	enhance "github.com/goliatone/go-enhance"
	"github.com/goliatone/go-enhance/pkg/activity"
	"github.com/goliatone/go-enhance/pkg/state"
	"github.com/goliatone/go-enhance/pkg/store"
)

// runtimeHeader marks the rendered document as machine-written. The
// engine ignores comments; humans should edit profiles instead.
var runtimeHeader = []byte("# Generated by enhance. Do not edit: overwritten on every rebuild.\n")

// Rebuild runs one synchronous build-and-commit cycle against the current
// catalog snapshot. Callers on the rebuild lane go through Run instead.
func (m *Manager) Rebuild(ctx context.Context) (enhance.Result, error) {
	return m.buildAndCommit(ctx, m.gen.Add(1))
}

// buildAndCommit derives the engine-facing document from the catalog and
// commits it to the runtime domain. gen is the generation captured when
// the rebuild was requested; if a newer request arrives before the commit
// starts, the draft is discarded and ErrSuperseded returned.
func (m *Manager) buildAndCommit(ctx context.Context, gen uint64) (enhance.Result, error) {
	snap := m.registry().Snapshot()

	base, err := snap.BaseDocument()
	if err != nil {
		return enhance.Result{}, err
	}
	chain, err := snap.Chain(m.finalAdjustments())
	if err != nil {
		return enhance.Result{}, fmt.Errorf("manager: assemble chain: %w", err)
	}

	result := m.pipeline.Build(ctx, base, chain)
	m.setResult(result)
	for _, report := range result.Failed() {
		m.log.Warn("layer failed",
			"layer", report.LayerID,
			"name", report.Name,
			"error", report.Error)
	}

	if m.gen.Load() != gen {
		return result, ErrSuperseded
	}

	draft, err := m.runtimeCell.Draft()
	if err != nil {
		return result, err
	}
	if err := draft.Set(result.Document); err != nil {
		draft.Discard()
		return result, err
	}
	if m.gen.Load() != gen {
		draft.Discard()
		return result, ErrSuperseded
	}

	if err := draft.Commit(ctx); err != nil {
		draft.Discard()
		if store.IsRejected(err) {
			m.emit(ctx, activity.BuildConfigRevertedEvent(activity.ConfigEventInput{
				ObjectID:  runtimeDomain,
				ProfileID: snap.ActiveID,
				Message:   err.Error(),
			}))
		}
		return result, err
	}

	m.emit(ctx, activity.BuildConfigUpdatedEvent(activity.ConfigEventInput{
		ObjectID:  runtimeDomain,
		ProfileID: snap.ActiveID,
		Path:      m.runtimePath,
		Metadata:  map[string]any{"failed_layers": len(result.Failed())},
	}))
	m.log.Info("runtime committed",
		"profile", snap.ActiveID,
		"layers", len(result.Reports),
		"failed", len(result.Failed()))
	return result, nil
}

// finalAdjustments computes the synthetic last layer: operational keys
// derived from settings that user layers must never disable.
func (m *Manager) finalAdjustments() enhance.Document {
	s := m.Settings()
	doc := enhance.Document{
		"tun": map[string]any{"enable": s.TunEnabled()},
	}
	if port := s.MixedPort(); port > 0 {
		doc["mixed-port"] = port
	}
	if addr := s.ControllerAddress(); addr != "" {
		doc["external-controller"] = addr
	}
	if secret := s.ControllerSecret(); secret != "" {
		doc["secret"] = secret
	}
	if len(m.finalPatch) > 0 {
		doc = enhance.Merge(doc, m.finalPatch)
	}
	return doc
}

// validateRuntime is the runtime cell's commit validator: descriptor type
// checks, optional rule evaluation, then the engine binary's own config
// test against a scratch rendering.
func (m *Manager) validateRuntime(ctx context.Context, doc enhance.Document) error {
	if err := m.schema.Validate(doc); err != nil {
		return err
	}
	if m.rules != nil {
		if err := m.rules.Validate(doc); err != nil {
			return err
		}
	}
	if m.checker != nil {
		data, err := renderRuntime(doc)
		if err != nil {
			return err
		}
		checkPath := filepath.Join(m.dir, checkFile)
		if err := state.WriteAtomic(checkPath, data); err != nil {
			return err
		}
		if err := m.checker.Check(ctx, checkPath); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) persistRuntime(_ context.Context, doc enhance.Document) error {
	data, err := renderRuntime(doc)
	if err != nil {
		return err
	}
	return state.WriteAtomic(m.runtimePath, data)
}

func (m *Manager) pushRuntime(ctx context.Context, _ enhance.Document) error {
	if m.controller == nil {
		return nil
	}
	return m.controller.Push(ctx, m.runtimePath)
}

// renderRuntime encodes doc as the engine-facing YAML file.
func renderRuntime(doc enhance.Document) ([]byte, error) {
	body, err := enhance.EncodeDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("manager: render runtime: %w", err)
	}
	return append(bytes.Clone(runtimeHeader), body...), nil
}

func (m *Manager) emit(ctx context.Context, event activity.Event) {
	if err := m.emitter.Emit(ctx, event); err != nil {
		m.log.Debug("notification hook failed", "verb", event.Verb, "error", err)
	}
}
