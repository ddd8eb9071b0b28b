// Package hydrate projects loosely typed configuration documents onto
// strongly typed structs. Callers register hooks to normalise the document
// before decoding and to validate or default the result afterwards.
package hydrate

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Context identifies the document being hydrated.
type Context struct {
	Domain string // config domain, e.g. "settings"
	Source string // provenance, e.g. a file path or "draft"
}

// PreHook lets callers mutate or normalise the document before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the hydrated struct after decoding.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default YAML decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts configuration documents into strongly typed structs.
type Decoder[T any] struct {
	preHooks    []PreHook
	postHooks   []PostHook[T]
	knownFields bool
	custom      CustomDecoder[T]
}

// WithPreHook applies hook prior to decoding.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook applies hook after decoding completes.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithKnownFields rejects document keys that have no counterpart in T.
func WithKnownFields[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.knownFields = true
	}
}

// WithCustomDecoder replaces the default YAML decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts doc into the target struct T applying configured hooks.
// The input document is never mutated; pre-hooks receive a deep copy.
func (d *Decoder[T]) Decode(ctx Context, doc map[string]any) (T, error) {
	var zero T

	if doc == nil {
		return zero, fmt.Errorf("hydrate: document is nil for domain %q", ctx.Domain)
	}

	current, err := cloneDocument(doc)
	if err != nil {
		return zero, fmt.Errorf("hydrate: clone document for domain %q: %w", ctx.Domain, err)
	}

	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for domain %q failed: %w", ctx.Domain, err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		result, err = d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for domain %q failed: %w", ctx.Domain, err)
		}
	} else {
		buffer, err := yaml.Marshal(current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: marshal document for domain %q: %w", ctx.Domain, err)
		}
		decoder := yaml.NewDecoder(bytes.NewReader(buffer))
		decoder.KnownFields(d.knownFields)
		if err := decoder.Decode(&result); err != nil {
			return zero, fmt.Errorf("hydrate: decode domain %q: %w", ctx.Domain, err)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for domain %q failed: %w", ctx.Domain, err)
		}
	}

	return result, nil
}

func cloneDocument(doc map[string]any) (map[string]any, error) {
	buffer, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := yaml.Unmarshal(buffer, &out); err != nil {
		return nil, err
	}
	return out, nil
}
