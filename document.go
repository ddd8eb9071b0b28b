package enhance

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is a parsed configuration document: a YAML mapping with string
// keys, arbitrarily nested. Nested mappings are always map[string]any and
// sequences are always []any so helpers can walk any document uniformly.
type Document = map[string]any

// ParseError reports a payload that could not be decoded into a Document.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source == "" {
		return fmt.Sprintf("enhance: parse document: %v", e.Err)
	}
	return fmt.Sprintf("enhance: parse document %q: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseDocument decodes a YAML payload into a Document. Empty payloads decode
// to an empty document; scalar and sequence roots are rejected.
func ParseDocument(payload []byte) (Document, error) {
	return parseDocument("", payload)
}

// ParseDocumentFile reads and decodes a YAML file, retaining the path as the
// error source.
func ParseDocumentFile(path string) (Document, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Source: path, Err: err}
	}
	return parseDocument(path, payload)
}

func parseDocument(source string, payload []byte) (Document, error) {
	if strings.TrimSpace(string(payload)) == "" {
		return Document{}, nil
	}
	var raw any
	if err := yaml.Unmarshal(payload, &raw); err != nil {
		return nil, &ParseError{Source: source, Err: err}
	}
	if raw == nil {
		return Document{}, nil
	}
	doc, ok := normalizeValue(raw).(map[string]any)
	if !ok {
		return nil, &ParseError{Source: source, Err: fmt.Errorf("document root must be a mapping, got %T", raw)}
	}
	return doc, nil
}

// EncodeDocument renders doc as YAML.
func EncodeDocument(doc Document) ([]byte, error) {
	if doc == nil {
		doc = Document{}
	}
	payload, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("enhance: encode document: %w", err)
	}
	return payload, nil
}

// normalizeValue rewrites a decoded YAML tree so every nested mapping is a
// map[string]any regardless of the key types the decoder produced.
func normalizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalizeValue(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(key)] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return value
	}
}

// CloneDocument returns a deep copy of doc. A nil document clones to an empty
// one so callers can mutate the result unconditionally.
func CloneDocument(doc Document) Document {
	if doc == nil {
		return Document{}
	}
	return cloneMap(doc)
}

func cloneMap(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return value
	}
}

// EqualDocuments reports whether two documents hold the same tree. Nil and
// empty documents compare equal.
func EqualDocuments(a, b Document) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

// Lookup resolves a dotted path against doc and reports whether it exists.
func Lookup(doc Document, path string) (any, bool) {
	if doc == nil || path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	current := any(doc)
	for _, segment := range segments {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok := node[segment]
		if !ok {
			return nil, false
		}
		current = value
	}
	return current, true
}

// Put sets value at a dotted path, creating intermediate mappings as needed.
// Non-mapping intermediates are replaced.
func Put(doc Document, path string, value any) {
	if doc == nil || path == "" {
		return
	}
	segments := strings.Split(path, ".")
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[segment] = next
		}
		current = next
	}
	current[segments[len(segments)-1]] = value
}

// Remove deletes the value at a dotted path. Missing paths are a no-op.
func Remove(doc Document, path string) {
	if doc == nil || path == "" {
		return
	}
	segments := strings.Split(path, ".")
	current := doc
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment].(map[string]any)
		if !ok {
			return
		}
		current = next
	}
	delete(current, segments[len(segments)-1])
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
