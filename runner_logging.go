package enhance

import "time"

// RunnerLogEvent describes a script run for logging.
type RunnerLogEvent struct {
	Engine   string
	Script   string
	Duration time.Duration
	Err      error
}

// RunnerLogger records script runs.
type RunnerLogger interface {
	LogRun(RunnerLogEvent)
}

// RunnerLoggerFunc adapts a function to RunnerLogger.
type RunnerLoggerFunc func(RunnerLogEvent)

// LogRun implements RunnerLogger.
func (f RunnerLoggerFunc) LogRun(event RunnerLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopRunnerLogger struct{}

func (noopRunnerLogger) LogRun(RunnerLogEvent) {}

// WithRunnerLogger attaches a runner logger to the pipeline.
func WithRunnerLogger(logger RunnerLogger) PipelineOption {
	return func(cfg *pipelineConfig) {
		if logger == nil {
			cfg.logger = noopRunnerLogger{}
			return
		}
		cfg.logger = logger
	}
}
