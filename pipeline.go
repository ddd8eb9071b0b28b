package enhance

import (
	"context"
	"time"

	"github.com/goliatone/go-enhance/pkg/activity"
)

// PipelineOption configures a Pipeline.
type PipelineOption func(*pipelineConfig)

type pipelineConfig struct {
	merger  *Merger
	runners *RunnerRegistry
	logger  RunnerLogger
	hooks   activity.Hooks
}

// WithMerger overrides the merge policy applied between layers.
func WithMerger(merger *Merger) PipelineOption {
	return func(cfg *pipelineConfig) {
		if merger != nil {
			cfg.merger = merger
		}
	}
}

// WithRunners provides the script engines available to script layers.
func WithRunners(registry *RunnerRegistry) PipelineOption {
	return func(cfg *pipelineConfig) {
		if registry != nil {
			cfg.runners = registry
		}
	}
}

// WithActivityHooks attaches activity hooks notified when a layer fails.
// Hooks are cloned and nil entries dropped to preserve immutability.
func WithActivityHooks(hooks activity.Hooks) PipelineOption {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *pipelineConfig) {
		cfg.hooks = normalized
	}
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	if len(hooks) == 0 {
		return nil
	}
	normalized := make([]activity.ActivityHook, 0, len(hooks))
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		normalized = append(normalized, hook)
	}
	if len(normalized) == 0 {
		return nil
	}
	return activity.Hooks(normalized)
}

// Pipeline applies a layer chain over base documents. Layer failures are
// contained: a failed layer leaves the document as the previous layer
// produced it and surfaces only through its report.
type Pipeline struct {
	cfg pipelineConfig
}

// NewPipeline constructs a Pipeline.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	cfg := pipelineConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Pipeline{cfg: cfg}
}

// Build applies chain to base band by band and returns the resulting
// document plus one report per layer. Build is total: it never aborts, and
// base is never mutated. Cancelling ctx interrupts running scripts; merge
// layers and the final adjustments still apply.
func (p *Pipeline) Build(ctx context.Context, base Document, chain *Chain) Result {
	if ctx == nil {
		ctx = context.Background()
	}
	doc := CloneDocument(base)
	layers := chain.Layers()
	reports := make([]LayerReport, 0, len(layers))
	for _, layer := range layers {
		report := LayerReport{
			LayerID: layer.ID,
			Name:    layer.Name,
			Kind:    layer.Kind,
			Band:    layer.Band,
		}
		if layer.Disabled {
			report.Outcome = LayerSkippedDisabled
			reports = append(reports, report)
			continue
		}
		start := time.Now()
		next, logs, err := p.applyLayer(ctx, layer, doc)
		report.Elapsed = time.Since(start)
		report.Logs = logs
		if err != nil {
			report.Outcome = LayerSkippedError
			report.Error = err.Error()
			p.emitLayerFailed(ctx, layer, err)
		} else {
			report.Outcome = LayerApplied
			doc = next
		}
		reports = append(reports, report)
	}
	return Result{Document: doc, Reports: reports}
}

func (p *Pipeline) applyLayer(ctx context.Context, layer Layer, doc Document) (Document, []string, error) {
	switch layer.Kind {
	case LayerKindMerge:
		patch, err := ParseDocument([]byte(layer.Patch))
		if err != nil {
			return nil, nil, err
		}
		return p.merger().Merge(doc, patch), nil, nil
	case LayerKindFinal:
		return p.merger().Merge(doc, layer.Doc), nil, nil
	case LayerKindScript:
		return p.runScript(ctx, layer, doc)
	default:
		return nil, nil, &ScriptError{
			Engine: layer.Engine,
			Script: layer.ID,
			Kind:   ScriptErrorRuntime,
			Err:    ErrKindBand,
		}
	}
}

func (p *Pipeline) runScript(ctx context.Context, layer Layer, doc Document) (Document, []string, error) {
	runner, err := p.runners().Lookup(layer.Engine)
	if err != nil {
		return nil, nil, wrapScriptError(layer.Engine, layer.ID, ScriptErrorRuntime, err)
	}
	start := time.Now()
	result, runErr := runner.Run(ctx, layer.Program, doc)
	runErr = wrapScriptError(runner.Name(), layer.ID, ScriptErrorRuntime, runErr)
	p.logger().LogRun(RunnerLogEvent{
		Engine:   runner.Name(),
		Script:   layer.ID,
		Duration: time.Since(start),
		Err:      runErr,
	})
	if runErr != nil {
		return nil, result.Logs, runErr
	}
	return result.Document, result.Logs, nil
}

func (p *Pipeline) emitLayerFailed(ctx context.Context, layer Layer, err error) {
	if !p.cfg.hooks.Enabled() {
		return
	}
	_ = p.cfg.hooks.Notify(ctx, activity.BuildLayerFailedEvent(activity.ConfigEventInput{
		ObjectID: layer.ID,
		Metadata: map[string]any{
			"layer_name": layer.Name,
			"layer_kind": string(layer.Kind),
			"band":       layer.Band.String(),
			"error":      err.Error(),
		},
	}))
}

func (p *Pipeline) merger() *Merger {
	if p.cfg.merger != nil {
		return p.cfg.merger
	}
	return defaultMerger
}

func (p *Pipeline) runners() *RunnerRegistry {
	if p.cfg.runners != nil {
		return p.cfg.runners
	}
	return defaultRunners
}

func (p *Pipeline) logger() RunnerLogger {
	if p.cfg.logger != nil {
		return p.cfg.logger
	}
	return noopRunnerLogger{}
}

var defaultRunners = DefaultRunnerRegistry()
