package profile

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-enhance/pkg/state"
)

// Kind classifies what a catalog item contributes to a build.
type Kind string

const (
	// KindLocal is a base document stored in the catalog itself.
	KindLocal Kind = "local"
	// KindRemote is a base document fetched from a subscription URL.
	KindRemote Kind = "remote"
	// KindMerge is a document fragment applied through the merge engine.
	KindMerge Kind = "merge"
	// KindScript is a sandboxed program run over the document.
	KindScript Kind = "script"
)

// ParseKind converts raw into a Kind, rejecting unknown values.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(raw)
	if !kind.Valid() {
		return "", fmt.Errorf("profile: unknown kind %q", raw)
	}
	return kind, nil
}

// Valid reports whether the kind is one of the four catalog kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindLocal, KindRemote, KindMerge, KindScript:
		return true
	}
	return false
}

// Selectable reports whether an item of this kind can be the active
// profile. Only base documents qualify.
func (k Kind) Selectable() bool {
	return k == KindLocal || k == KindRemote
}

// Chainable reports whether an item of this kind can join an enhancement
// chain.
func (k Kind) Chainable() bool {
	return k == KindMerge || k == KindScript
}

var (
	// ErrItemNotFound indicates a catalog lookup by an unknown id.
	ErrItemNotFound = errors.New("profile: item not found")
	// ErrItemExists indicates an Add with an id already in the catalog.
	ErrItemExists = errors.New("profile: item already exists")
	// ErrKindNotSelectable indicates activating an item that is not a base
	// document.
	ErrKindNotSelectable = errors.New("profile: item kind cannot be activated")
	// ErrKindNotChainable indicates chaining an item that is not a merge
	// fragment or script.
	ErrKindNotChainable = errors.New("profile: item kind cannot join a chain")
)

// Item is one catalog entry. Content holds the raw text for every kind:
// the base document for local and remote items, the fragment for merge
// items, and the program for script items.
type Item struct {
	ID              string    `json:"id" yaml:"id"`
	Name            string    `json:"name" yaml:"name"`
	Kind            Kind      `json:"kind" yaml:"kind"`
	Desc            string    `json:"desc,omitempty" yaml:"desc,omitempty"`
	URL             string    `json:"url,omitempty" yaml:"url,omitempty"`
	Engine          string    `json:"engine,omitempty" yaml:"engine,omitempty"`
	IntervalMinutes int       `json:"interval_minutes,omitempty" yaml:"interval-minutes,omitempty"`
	Enabled         bool      `json:"enabled" yaml:"enabled"`
	Chain           []string  `json:"chain,omitempty" yaml:"chain,omitempty"`
	Fingerprint     string    `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	UpdatedAt       time.Time `json:"updated_at,omitempty" yaml:"updated-at,omitempty"`
	Content         string    `json:"content,omitempty" yaml:"content,omitempty"`
}

// NewItemID returns a fresh catalog id.
func NewItemID() string {
	return "p-" + uuid.New().String()
}

// NewLocalItem builds a local base-document item with the given content.
func NewLocalItem(name, content string) Item {
	item := Item{
		ID:      NewItemID(),
		Name:    name,
		Kind:    KindLocal,
		Enabled: true,
	}
	item.SetContent(content)
	return item
}

// NewRemoteItem builds a remote base-document item. Content stays empty
// until the first fetch.
func NewRemoteItem(name, url string) Item {
	return Item{
		ID:        NewItemID(),
		Name:      name,
		Kind:      KindRemote,
		URL:       url,
		Enabled:   true,
		UpdatedAt: time.Now().UTC(),
	}
}

// NewMergeItem builds a merge-fragment item.
func NewMergeItem(name, patch string) Item {
	item := Item{
		ID:      NewItemID(),
		Name:    name,
		Kind:    KindMerge,
		Enabled: true,
	}
	item.SetContent(patch)
	return item
}

// NewScriptItem builds a script item. An empty engine resolves to the
// default engine at build time.
func NewScriptItem(name, engine, program string) Item {
	item := Item{
		ID:      NewItemID(),
		Name:    name,
		Kind:    KindScript,
		Engine:  engine,
		Enabled: true,
	}
	item.SetContent(program)
	return item
}

// Clone returns a deep copy of the item.
func (i Item) Clone() Item {
	out := i
	out.Chain = append([]string(nil), i.Chain...)
	return out
}

// SetContent replaces the item's content and refreshes its fingerprint and
// timestamp.
func (i *Item) SetContent(content string) {
	i.Content = content
	i.Fingerprint = state.Fingerprint([]byte(content))
	i.UpdatedAt = time.Now().UTC()
}

// ApplyFetched installs freshly fetched content when it differs from the
// stored fingerprint and reports whether anything changed.
func (i *Item) ApplyFetched(data []byte) bool {
	sum := state.Fingerprint(data)
	if sum == i.Fingerprint {
		return false
	}
	i.Content = string(data)
	i.Fingerprint = sum
	i.UpdatedAt = time.Now().UTC()
	return true
}

// Validate checks the item's structural invariants.
func (i Item) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("profile: item id is required")
	}
	if i.Name == "" {
		return fmt.Errorf("profile: item %s: name is required", i.ID)
	}
	if !i.Kind.Valid() {
		return fmt.Errorf("profile: item %s: unknown kind %q", i.ID, i.Kind)
	}
	if i.Kind == KindRemote && i.URL == "" {
		return fmt.Errorf("profile: item %s: remote item needs a url", i.ID)
	}
	if i.IntervalMinutes < 0 {
		return fmt.Errorf("profile: item %s: interval must not be negative", i.ID)
	}
	return nil
}
