package enhance

import "reflect"

// DefaultAppendKeys lists the document paths whose sequences accumulate
// across layers instead of being replaced.
var DefaultAppendKeys = []string{"rules", "dns.nameserver", "dns.fallback"}

// MergerOption configures a Merger.
type MergerOption func(*Merger)

// WithAppendKeys replaces the append-key set. Paths are dotted from the
// document root.
func WithAppendKeys(paths ...string) MergerOption {
	return func(m *Merger) {
		m.appendKeys = make(map[string]struct{}, len(paths))
		for _, path := range paths {
			if path == "" {
				continue
			}
			m.appendKeys[path] = struct{}{}
		}
	}
}

// Merger applies patch documents over base documents. The zero-argument
// constructor uses DefaultAppendKeys.
type Merger struct {
	appendKeys map[string]struct{}
}

// NewMerger constructs a Merger with the supplied configuration.
func NewMerger(opts ...MergerOption) *Merger {
	m := &Merger{appendKeys: make(map[string]struct{}, len(DefaultAppendKeys))}
	for _, path := range DefaultAppendKeys {
		m.appendKeys[path] = struct{}{}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Merge combines base and patch into a fresh document. Neither input is
// mutated and the merge is total:
//   - mappings merge key by key, recursively
//   - a nil patch value removes the key
//   - sequences at append keys accumulate, deduplicated with the first
//     occurrence winning; append wins over replacement when both sides hold
//     a sequence at an append key
//   - every other patch value replaces the base value
func (m *Merger) Merge(base, patch Document) Document {
	return m.mergeMaps("", base, patch)
}

// Apply folds patches over base left to right using Merge.
func (m *Merger) Apply(base Document, patches ...Document) Document {
	out := CloneDocument(base)
	for _, patch := range patches {
		out = m.Merge(out, patch)
	}
	return out
}

func (m *Merger) mergeMaps(path string, base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	for key, value := range base {
		out[key] = cloneValue(value)
	}
	for key, value := range patch {
		if value == nil {
			delete(out, key)
			continue
		}
		keyPath := joinPath(path, key)
		if existing, ok := out[key]; ok {
			if baseMap, ok := existing.(map[string]any); ok {
				if patchMap, ok := value.(map[string]any); ok {
					out[key] = m.mergeMaps(keyPath, baseMap, patchMap)
					continue
				}
			}
			if m.isAppendKey(keyPath) {
				if baseList, ok := existing.([]any); ok {
					if patchList, ok := value.([]any); ok {
						out[key] = appendDedupe(baseList, patchList)
						continue
					}
				}
			}
		}
		out[key] = cloneValue(value)
	}
	return out
}

func (m *Merger) isAppendKey(path string) bool {
	_, ok := m.appendKeys[path]
	return ok
}

func appendDedupe(base, patch []any) []any {
	out := make([]any, 0, len(base)+len(patch))
	for _, item := range base {
		if containsValue(out, item) {
			continue
		}
		out = append(out, cloneValue(item))
	}
	for _, item := range patch {
		if containsValue(out, item) {
			continue
		}
		out = append(out, cloneValue(item))
	}
	return out
}

func containsValue(list []any, value any) bool {
	for _, item := range list {
		if valuesEqual(item, value) {
			return true
		}
	}
	return false
}

func valuesEqual(a, b any) bool {
	if a == nil && b == nil {
		return true
	}
	return reflect.DeepEqual(a, b)
}

var defaultMerger = NewMerger()

// Merge combines base and patch using the default append keys.
func Merge(base, patch Document) Document {
	return defaultMerger.Merge(base, patch)
}

// MergeAll folds patches over base left to right using the default append
// keys.
func MergeAll(base Document, patches ...Document) Document {
	return defaultMerger.Apply(base, patches...)
}
