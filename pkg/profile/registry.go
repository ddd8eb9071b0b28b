package profile

import (
	"fmt"
	"sync"
)

// Registry is the mutable profile catalog: ordered items, the active
// profile, and the global enhancement chain. All reads hand out copies so
// callers never alias internal state.
type Registry struct {
	mu     sync.RWMutex
	items  map[string]Item
	order  []string
	active string
	chain  []string
}

// NewRegistry returns an empty catalog.
func NewRegistry() *Registry {
	return &Registry{items: make(map[string]Item)}
}

// Add appends a validated item to the catalog.
func (r *Registry) Add(item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID]; ok {
		return fmt.Errorf("%w: %s", ErrItemExists, item.ID)
	}
	r.items[item.ID] = item.Clone()
	r.order = append(r.order, item.ID)
	return nil
}

// Get returns a copy of the item with the given id.
func (r *Registry) Get(id string) (Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return Item{}, false
	}
	return item.Clone(), true
}

// Update replaces an existing item, keeping its catalog position.
func (r *Registry) Update(item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[item.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, item.ID)
	}
	r.items[item.ID] = item.Clone()
	return nil
}

// Remove deletes an item and scrubs every reference to it: the active
// pointer, the global chain, and other items' chains.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	delete(r.items, id)
	r.order = removeID(r.order, id)
	r.chain = removeID(r.chain, id)
	if r.active == id {
		r.active = ""
	}
	for key, item := range r.items {
		if contains(item.Chain, id) {
			item.Chain = removeID(item.Chain, id)
			r.items[key] = item
		}
	}
	return nil
}

// Items returns copies of all items in catalog order.
func (r *Registry) Items() []Item {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.itemsLocked()
}

func (r *Registry) itemsLocked() []Item {
	if len(r.order) == 0 {
		return nil
	}
	out := make([]Item, 0, len(r.order))
	for _, id := range r.order {
		if item, ok := r.items[id]; ok {
			out = append(out, item.Clone())
		}
	}
	return out
}

// Len returns the number of catalog items.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// SetActive selects the profile whose base document seeds builds. Only
// local and remote items can be activated.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if !item.Kind.Selectable() {
		return fmt.Errorf("%w: %s is %s", ErrKindNotSelectable, id, item.Kind)
	}
	r.active = id
	return nil
}

// Active returns a copy of the active profile item.
func (r *Registry) Active() (Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[r.active]
	if !ok {
		return Item{}, false
	}
	return item.Clone(), true
}

// ActiveID returns the active profile id, or empty when none is selected.
func (r *Registry) ActiveID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// SetGlobalChain replaces the registry-wide enhancement chain. Every entry
// must resolve to a chainable item and ids must be unique.
func (r *Registry) SetGlobalChain(ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkChainLocked(ids); err != nil {
		return err
	}
	r.chain = append([]string(nil), ids...)
	return nil
}

// GlobalChain returns a copy of the registry-wide chain.
func (r *Registry) GlobalChain() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.chain...)
}

// SetItemChain replaces the per-profile chain of the item with the given
// id, applying the same resolution rules as SetGlobalChain.
func (r *Registry) SetItemChain(id string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	item, ok := r.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrItemNotFound, id)
	}
	if err := r.checkChainLocked(ids); err != nil {
		return err
	}
	item.Chain = append([]string(nil), ids...)
	r.items[id] = item
	return nil
}

func (r *Registry) checkChainLocked(ids []string) error {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("profile: duplicate chain entry %s", id)
		}
		seen[id] = struct{}{}
		item, ok := r.items[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		if !item.Kind.Chainable() {
			return fmt.Errorf("%w: %s is %s", ErrKindNotChainable, id, item.Kind)
		}
	}
	return nil
}

// Snapshot captures an isolated copy of the catalog for building.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Snapshot{
		Items:       r.itemsLocked(),
		ActiveID:    r.active,
		GlobalChain: append([]string(nil), r.chain...),
	}
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func contains(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
