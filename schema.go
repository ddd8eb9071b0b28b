package enhance

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// FieldType classifies the value shape a descriptor expects at a path.
type FieldType string

const (
	// TypeString expects a scalar string.
	TypeString FieldType = "string"
	// TypeBool expects a boolean.
	TypeBool FieldType = "bool"
	// TypeInt expects an integer; integral floats from other decoders are
	// accepted.
	TypeInt FieldType = "int"
	// TypeMapping expects a nested mapping.
	TypeMapping FieldType = "mapping"
	// TypeSequence expects a sequence.
	TypeSequence FieldType = "sequence"
)

// FieldDescriptor describes a dotted path and the type expected there.
type FieldDescriptor struct {
	Path string    `json:"path" yaml:"path"`
	Type FieldType `json:"type" yaml:"type"`
}

// Schema validates documents against a set of field descriptors. Paths
// absent from the document pass; present values must match the declared
// type.
type Schema struct {
	fields []FieldDescriptor
}

// NewSchema constructs a schema from descriptors.
func NewSchema(fields ...FieldDescriptor) *Schema {
	return &Schema{fields: append([]FieldDescriptor(nil), fields...)}
}

// DefaultSchema returns descriptors for the well-known engine keys.
func DefaultSchema() *Schema {
	return NewSchema(
		FieldDescriptor{Path: "port", Type: TypeInt},
		FieldDescriptor{Path: "socks-port", Type: TypeInt},
		FieldDescriptor{Path: "mixed-port", Type: TypeInt},
		FieldDescriptor{Path: "redir-port", Type: TypeInt},
		FieldDescriptor{Path: "mode", Type: TypeString},
		FieldDescriptor{Path: "log-level", Type: TypeString},
		FieldDescriptor{Path: "ipv6", Type: TypeBool},
		FieldDescriptor{Path: "allow-lan", Type: TypeBool},
		FieldDescriptor{Path: "external-controller", Type: TypeString},
		FieldDescriptor{Path: "secret", Type: TypeString},
		FieldDescriptor{Path: "rules", Type: TypeSequence},
		FieldDescriptor{Path: "proxies", Type: TypeSequence},
		FieldDescriptor{Path: "proxy-groups", Type: TypeSequence},
		FieldDescriptor{Path: "dns", Type: TypeMapping},
		FieldDescriptor{Path: "dns.enable", Type: TypeBool},
		FieldDescriptor{Path: "dns.nameserver", Type: TypeSequence},
		FieldDescriptor{Path: "dns.fallback", Type: TypeSequence},
		FieldDescriptor{Path: "tun", Type: TypeMapping},
		FieldDescriptor{Path: "tun.enable", Type: TypeBool},
		FieldDescriptor{Path: "tun.stack", Type: TypeString},
	)
}

// Fields returns a copy of the schema's descriptors.
func (s *Schema) Fields() []FieldDescriptor {
	if s == nil {
		return nil
	}
	return append([]FieldDescriptor(nil), s.fields...)
}

// Validate type-checks every descriptor path present in doc. Violations
// are joined into a single error.
func (s *Schema) Validate(doc Document) error {
	if s == nil || len(s.fields) == 0 {
		return nil
	}
	var errs []error
	for _, field := range s.fields {
		value, ok := Lookup(doc, field.Path)
		if !ok {
			continue
		}
		if !matchesFieldType(value, field.Type) {
			errs = append(errs, fmt.Errorf("enhance: field %q must be %s, got %s", field.Path, field.Type, typeName(value)))
		}
	}
	return errors.Join(errs...)
}

func matchesFieldType(value any, fieldType FieldType) bool {
	switch fieldType {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBool:
		_, ok := value.(bool)
		return ok
	case TypeInt:
		return isIntegral(value)
	case TypeMapping:
		_, ok := value.(map[string]any)
		return ok
	case TypeSequence:
		_, ok := value.([]any)
		return ok
	default:
		return false
	}
}

func isIntegral(value any) bool {
	switch typed := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return typed == math.Trunc(typed)
	case float32:
		return float64(typed) == math.Trunc(float64(typed))
	default:
		return false
	}
}

// DescribeDocument walks doc and returns a descriptor for every leaf path,
// sorted by key at each level. Sequences describe their first element.
func DescribeDocument(doc Document) []FieldDescriptor {
	fields := describeValue(doc, "")
	if fields == nil {
		return []FieldDescriptor{}
	}
	return fields
}

func describeValue(value any, prefix string) []FieldDescriptor {
	if value == nil {
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: "nil"}}
	}

	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 {
			if prefix == "" {
				return nil
			}
			return []FieldDescriptor{{Path: prefix, Type: TypeMapping}}
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var fields []FieldDescriptor
		for _, key := range keys {
			fields = append(fields, describeValue(typed[key], joinPath(prefix, key))...)
		}
		return fields
	case []any:
		elementType := FieldType("any")
		if len(typed) > 0 {
			elementType = scalarFieldType(typed[0])
		}
		return []FieldDescriptor{{Path: prefix, Type: "sequence of " + elementType}}
	default:
		if prefix == "" {
			return nil
		}
		return []FieldDescriptor{{Path: prefix, Type: scalarFieldType(typed)}}
	}
}

func scalarFieldType(value any) FieldType {
	switch value.(type) {
	case string:
		return TypeString
	case bool:
		return TypeBool
	case map[string]any:
		return TypeMapping
	case []any:
		return TypeSequence
	default:
		if isIntegral(value) {
			return TypeInt
		}
		return FieldType(typeName(value))
	}
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}
