package settings

import (
	"fmt"
	"slices"
)

// SourceLevel identifies the precedence of a settings layer. Higher levels
// override lower levels when layering.
type SourceLevel int

const (
	// LevelUnknown guards against misconfiguration so call sites can detect
	// missing metadata.
	LevelUnknown SourceLevel = iota
	// LevelDefault represents the weakest layer (built-in defaults).
	LevelDefault
	// LevelFile represents values loaded from settings.yaml.
	LevelFile
	// LevelEnvironment represents ENHANCE_* environment overrides.
	LevelEnvironment
	// LevelFlag represents the strongest layer, command-line flags.
	LevelFlag
)

func (l SourceLevel) String() string {
	switch l {
	case LevelDefault:
		return "default"
	case LevelFile:
		return "file"
	case LevelEnvironment:
		return "environment"
	case LevelFlag:
		return "flag"
	default:
		return "unknown"
	}
}

// ParseSourceLevel converts a string representation into the corresponding
// SourceLevel. Returns LevelUnknown for unrecognised values.
func ParseSourceLevel(value string) SourceLevel {
	switch value {
	case "default", "DEFAULT":
		return LevelDefault
	case "file", "FILE":
		return LevelFile
	case "environment", "ENVIRONMENT", "env", "ENV":
		return LevelEnvironment
	case "flag", "FLAG":
		return LevelFlag
	default:
		return LevelUnknown
	}
}

// Source names a settings layer within a layering chain.
type Source struct {
	Name  string // provenance label, e.g. "settings.yaml" or "--engine-url"
	Level SourceLevel
}

// Identifier returns a stable slug usable in logs and deduplication,
// e.g. "file/settings.yaml".
func (s Source) Identifier() string {
	return fmt.Sprintf("%s/%s", s.Level, s.Name)
}

// Layer pairs a settings snapshot with its source.
type Layer struct {
	Source Source
	Value  Settings
}

// DefaultLayer returns the built-in defaults as the weakest layer.
func DefaultLayer() Layer {
	return Layer{
		Source: Source{Name: "builtin", Level: LevelDefault},
		Value:  Default(),
	}
}

// Resolve orders layers by source strength (stable for peers), drops
// layers with an unknown level or a duplicate identifier, and merges the
// rest strongest-first. The returned chain records the layering order that
// produced the effective settings.
func Resolve(layers ...Layer) (Settings, SourceChain) {
	filtered := make([]Layer, 0, len(layers))
	seen := map[string]struct{}{}

	for _, layer := range layers {
		if layer.Source.Level == LevelUnknown {
			continue
		}
		id := layer.Source.Identifier()
		if _, exists := seen[id]; exists {
			continue
		}
		seen[id] = struct{}{}
		filtered = append(filtered, layer)
	}

	slices.SortStableFunc(filtered, func(a, b Layer) int {
		if a.Source.Level == b.Source.Level {
			return 0
		}
		if a.Source.Level > b.Source.Level {
			return -1
		}
		return 1
	})

	sources := make([]Source, len(filtered))
	values := make([]Settings, len(filtered))
	for i, layer := range filtered {
		sources[i] = layer.Source
		values[i] = layer.Value
	}

	return Merge(values...), SourceChain{ordered: sources}
}

// SourceChain describes the ordered layering sequence from strongest to
// weakest.
type SourceChain struct {
	ordered []Source
}

// Ordered returns the layering sequence from strongest (index 0) to weakest.
func (c SourceChain) Ordered() []Source {
	out := make([]Source, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// Strongest returns the first source in the chain (zero source if empty).
func (c SourceChain) Strongest() Source {
	if len(c.ordered) == 0 {
		return Source{}
	}
	return c.ordered[0]
}

// Weakest returns the final source in the chain (zero source if empty).
func (c SourceChain) Weakest() Source {
	if len(c.ordered) == 0 {
		return Source{}
	}
	return c.ordered[len(c.ordered)-1]
}
