package enhance

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// RuleContext carries inputs needed when evaluating a validation rule.
type RuleContext struct {
	Document Document
	Now      *time.Time
	Metadata map[string]any
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Document == nil {
		ctx.Document = Document{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

// RuleEvaluator executes rule expressions against a rule context. The
// document is bound as "config"; keys that form valid identifiers are also
// bound at the top level.
type RuleEvaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// RuleError captures evaluator metadata alongside the originating error.
type RuleError struct {
	Engine string
	Expr   string
	Err    error
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("enhance: %s rule %s: %v", e.Engine, describeExpression(e.Expr), e.Err)
}

func (e *RuleError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapRuleError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "enhance:") {
		return err
	}
	return fmt.Errorf("enhance: %s rule: %w", engine, err)
}

func wrapRuleEvaluationError(engine, expr string, err error) error {
	if err == nil {
		return nil
	}

	var ruleErr *RuleError
	if errors.As(err, &ruleErr) {
		if ruleErr.Engine == "" {
			ruleErr.Engine = engine
		}
		if ruleErr.Expr == "" {
			ruleErr.Expr = expr
		}
		return ruleErr
	}

	return &RuleError{
		Engine: engine,
		Expr:   expr,
		Err:    err,
	}
}

// Rule pairs an expression with the message reported when it does not hold.
type Rule struct {
	Name    string
	Expr    string
	Message string
}

// RuleSet evaluates rules against documents and collects violations.
type RuleSet struct {
	evaluator RuleEvaluator
	rules     []Rule

	mu       sync.Mutex
	compiled map[string]CompiledRule
}

// NewRuleSet constructs a RuleSet. A nil evaluator falls back to the expr
// dialect.
func NewRuleSet(evaluator RuleEvaluator, rules ...Rule) *RuleSet {
	if evaluator == nil {
		evaluator = NewExprEvaluator()
	}
	return &RuleSet{
		evaluator: evaluator,
		rules:     append([]Rule(nil), rules...),
		compiled:  make(map[string]CompiledRule, len(rules)),
	}
}

// Rules returns a copy of the configured rules.
func (s *RuleSet) Rules() []Rule {
	if s == nil {
		return nil
	}
	return append([]Rule(nil), s.rules...)
}

// Validate evaluates every rule against doc. Each rule must evaluate to
// true; violations are joined into a single error.
func (s *RuleSet) Validate(doc Document) error {
	if s == nil || len(s.rules) == 0 {
		return nil
	}
	ctx := RuleContext{Document: doc}.withDefaultNow().withDefaultMaps()
	var errs []error
	for _, rule := range s.rules {
		value, err := s.evaluateRule(ctx, rule)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		holds, ok := value.(bool)
		if !ok {
			errs = append(errs, &RuleError{
				Expr: rule.Expr,
				Err:  fmt.Errorf("rule %q must evaluate to bool, got %T", ruleLabel(rule), value),
			})
			continue
		}
		if !holds {
			errs = append(errs, fmt.Errorf("enhance: rule %q violated: %s", ruleLabel(rule), ruleMessage(rule)))
		}
	}
	return errors.Join(errs...)
}

func (s *RuleSet) evaluateRule(ctx RuleContext, rule Rule) (any, error) {
	s.mu.Lock()
	compiled, ok := s.compiled[rule.Expr]
	s.mu.Unlock()
	if ok {
		return compiled.Evaluate(ctx)
	}
	compiled, err := s.evaluator.Compile(rule.Expr)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.compiled[rule.Expr] = compiled
	s.mu.Unlock()
	return compiled.Evaluate(ctx)
}

func ruleLabel(rule Rule) string {
	if rule.Name != "" {
		return rule.Name
	}
	return rule.Expr
}

func ruleMessage(rule Rule) string {
	if rule.Message != "" {
		return rule.Message
	}
	return "expression evaluated to false"
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// identifierKeys returns the document keys usable as bare expression
// identifiers. Keys with dashes or other punctuation stay reachable through
// the "config" binding.
func identifierKeys(doc Document) []string {
	var out []string
	for key := range doc {
		if identifierPattern.MatchString(key) {
			out = append(out, key)
		}
	}
	return out
}
