package profile

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/goliatone/go-enhance/pkg/state"
)

const (
	itemsDomain = "profiles"
	indexDomain = "registry"
)

// indexRecord is the persisted registry index: catalog order, the active
// profile, and the global chain. Items live in their own files.
type indexRecord struct {
	Order  []string `yaml:"order,omitempty"`
	Active string   `yaml:"active,omitempty"`
	Chain  []string `yaml:"chain,omitempty"`
}

// Store persists the catalog under a data directory: one YAML file per
// item in profiles/ plus registry.yaml holding the index.
type Store struct {
	root  string
	items *state.FileStore[Item]
	index *state.FileStore[indexRecord]
}

// NewStore opens a catalog store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	items, err := state.NewFileStore[Item](dir)
	if err != nil {
		return nil, err
	}
	index, err := state.NewFileStore[indexRecord](dir)
	if err != nil {
		return nil, err
	}
	return &Store{root: dir, items: items, index: index}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.root
}

// ItemsDir returns the directory holding the per-item files. Watchers
// observe this path for external edits.
func (s *Store) ItemsDir() string {
	return filepath.Join(s.root, itemsDomain)
}

// ItemPath returns the file backing the item with the given id.
func (s *Store) ItemPath(id string) (string, error) {
	return s.items.Path(state.Ref{Domain: itemsDomain, Name: id})
}

// SaveItem writes one item to its file.
func (s *Store) SaveItem(ctx context.Context, item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	ref := state.Ref{Domain: itemsDomain, Name: item.ID}
	if _, err := s.items.Save(ctx, ref, item, state.Meta{}); err != nil {
		return fmt.Errorf("profile: save item %s: %w", item.ID, err)
	}
	return nil
}

// LoadItem reads one item by id.
func (s *Store) LoadItem(ctx context.Context, id string) (Item, bool, error) {
	ref := state.Ref{Domain: itemsDomain, Name: id}
	item, _, ok, err := s.items.Load(ctx, ref)
	if err != nil {
		return Item{}, false, fmt.Errorf("profile: load item %s: %w", id, err)
	}
	if !ok {
		return Item{}, false, nil
	}
	if item.ID == "" {
		item.ID = id
	}
	return item, true, nil
}

// DeleteItem removes one item's file. Deleting a missing item is a no-op.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	ref := state.Ref{Domain: itemsDomain, Name: id}
	if err := s.items.Delete(ctx, ref); err != nil {
		return fmt.Errorf("profile: delete item %s: %w", id, err)
	}
	return nil
}

// SaveIndex writes the registry index for the catalog.
func (s *Store) SaveIndex(ctx context.Context, reg *Registry) error {
	snap := reg.Snapshot()
	record := indexRecord{
		Active: snap.ActiveID,
		Chain:  snap.GlobalChain,
	}
	for _, item := range snap.Items {
		record.Order = append(record.Order, item.ID)
	}
	if _, err := s.index.Save(ctx, state.Ref{Domain: indexDomain}, record, state.Meta{}); err != nil {
		return fmt.Errorf("profile: save index: %w", err)
	}
	return nil
}

// SaveAll writes every catalog item and the index.
func (s *Store) SaveAll(ctx context.Context, reg *Registry) error {
	for _, item := range reg.Items() {
		if err := s.SaveItem(ctx, item); err != nil {
			return err
		}
	}
	return s.SaveIndex(ctx, reg)
}

// LoadAll reads the index and every item it lists into a fresh registry.
// The index is authoritative: item files it does not list are ignored, and
// listed ids whose files are gone are dropped along with any references.
func (s *Store) LoadAll(ctx context.Context) (*Registry, error) {
	record, _, ok, err := s.index.Load(ctx, state.Ref{Domain: indexDomain})
	if err != nil {
		return nil, fmt.Errorf("profile: load index: %w", err)
	}

	reg := NewRegistry()
	if !ok {
		return reg, nil
	}

	for _, id := range record.Order {
		item, found, err := s.LoadItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		reg.items[item.ID] = item
		reg.order = append(reg.order, item.ID)
	}

	if _, found := reg.items[record.Active]; found {
		reg.active = record.Active
	}
	for _, id := range record.Chain {
		if _, found := reg.items[id]; found {
			reg.chain = append(reg.chain, id)
		}
	}
	return reg, nil
}
