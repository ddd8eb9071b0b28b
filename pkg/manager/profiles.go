package manager

import (
	"context"
	"fmt"

	enhance "github.com/goliatone/go-enhance"
	"github.com/goliatone/go-enhance/pkg/activity"
	"github.com/goliatone/go-enhance/pkg/profile"
)

// Profiles returns copies of the catalog items in order.
func (m *Manager) Profiles() []profile.Item {
	return m.registry().Items()
}

// Profile returns a copy of one catalog item.
func (m *Manager) Profile(id string) (profile.Item, bool) {
	return m.registry().Get(id)
}

// ActiveProfileID returns the active profile id, empty when none.
func (m *Manager) ActiveProfileID() string {
	return m.registry().ActiveID()
}

// AddProfile adds item to the catalog, persists it, and requests a
// rebuild.
func (m *Manager) AddProfile(ctx context.Context, item profile.Item) error {
	reg := m.registry()
	if err := reg.Add(item); err != nil {
		return err
	}
	if err := m.persistItem(ctx, reg, item); err != nil {
		return err
	}
	m.afterCatalogChange(reg)
	return nil
}

// UpdateProfile replaces an existing item, persists it, and requests a
// rebuild.
func (m *Manager) UpdateProfile(ctx context.Context, item profile.Item) error {
	reg := m.registry()
	if err := reg.Update(item); err != nil {
		return err
	}
	if err := m.persistItem(ctx, reg, item); err != nil {
		return err
	}
	m.afterCatalogChange(reg)
	return nil
}

// RemoveProfile deletes an item, scrubbing every chain that references it.
func (m *Manager) RemoveProfile(ctx context.Context, id string) error {
	reg := m.registry()
	if err := reg.Remove(id); err != nil {
		return err
	}
	if err := m.catalog.DeleteItem(ctx, id); err != nil {
		return err
	}
	// Chains may have been scrubbed, so rewrite every remaining item.
	if err := m.catalog.SaveAll(ctx, reg); err != nil {
		return err
	}
	m.afterCatalogChange(reg)
	return nil
}

// Activate selects the profile whose base document seeds builds.
func (m *Manager) Activate(ctx context.Context, id string) error {
	reg := m.registry()
	if err := reg.SetActive(id); err != nil {
		return err
	}
	if err := m.catalog.SaveIndex(ctx, reg); err != nil {
		return err
	}
	m.afterCatalogChange(reg)
	return nil
}

// SetGlobalChain replaces the registry-wide enhancement chain.
func (m *Manager) SetGlobalChain(ctx context.Context, ids []string) error {
	reg := m.registry()
	if err := reg.SetGlobalChain(ids); err != nil {
		return err
	}
	if err := m.catalog.SaveIndex(ctx, reg); err != nil {
		return err
	}
	m.afterCatalogChange(reg)
	return nil
}

// SetProfileChain replaces one profile's own enhancement chain.
func (m *Manager) SetProfileChain(ctx context.Context, id string, ids []string) error {
	reg := m.registry()
	if err := reg.SetItemChain(id, ids); err != nil {
		return err
	}
	item, ok := reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", profile.ErrItemNotFound, id)
	}
	if err := m.persistItem(ctx, reg, item); err != nil {
		return err
	}
	m.afterCatalogChange(reg)
	return nil
}

// ImportRemote fetches url, validates the payload parses as a document,
// and adds it to the catalog as a remote profile. Provider hints fill the
// name and refresh interval when the caller leaves them empty.
func (m *Manager) ImportRemote(ctx context.Context, name, url string) (profile.Item, error) {
	res, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		return profile.Item{}, err
	}
	if _, err := enhance.ParseDocument(res.Data); err != nil {
		return profile.Item{}, fmt.Errorf("manager: remote %s: %w", url, err)
	}

	if name == "" {
		name = res.Filename
	}
	if name == "" {
		name = url
	}
	item := profile.NewRemoteItem(name, url)
	item.IntervalMinutes = res.IntervalMinutes
	item.SetContent(string(res.Data))

	if err := m.AddProfile(ctx, item); err != nil {
		return profile.Item{}, err
	}
	return item, nil
}

// RefreshProfile re-fetches one remote profile. Any fetch or parse
// failure keeps the stored content and surfaces the error; unchanged
// content updates nothing and requests no rebuild.
func (m *Manager) RefreshProfile(ctx context.Context, id string) error {
	reg := m.registry()
	item, ok := reg.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", profile.ErrItemNotFound, id)
	}
	if item.Kind != profile.KindRemote || item.URL == "" {
		return fmt.Errorf("manager: profile %s is not refreshable", id)
	}

	res, err := m.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		m.emitRefreshFailed(ctx, item, err)
		return err
	}
	if _, perr := enhance.ParseDocument(res.Data); perr != nil {
		err := fmt.Errorf("manager: refresh %s: %w", id, perr)
		m.emitRefreshFailed(ctx, item, err)
		return err
	}

	if !item.ApplyFetched(res.Data) {
		m.log.Debug("profile unchanged", "profile", id)
		return nil
	}
	if res.IntervalMinutes > 0 {
		item.IntervalMinutes = res.IntervalMinutes
	}

	if err := reg.Update(item); err != nil {
		return err
	}
	if err := m.persistItem(ctx, reg, item); err != nil {
		return err
	}
	m.emit(ctx, activity.BuildProfileRefreshedEvent(activity.ConfigEventInput{
		ProfileID: item.ID,
		ObjectID:  item.ID,
		Metadata:  map[string]any{"fingerprint": item.Fingerprint},
	}))
	m.afterCatalogChange(reg)
	return nil
}

func (m *Manager) persistItem(ctx context.Context, reg *profile.Registry, item profile.Item) error {
	if err := m.catalog.SaveItem(ctx, item); err != nil {
		return err
	}
	return m.catalog.SaveIndex(ctx, reg)
}

// afterCatalogChange reconciles refresh timers with the catalog and
// requests a rebuild.
func (m *Manager) afterCatalogChange(reg *profile.Registry) {
	if m.Settings().RefreshEnabled() {
		m.refresh.sync(reg.Items())
	}
	m.requestRebuild()
}

// runRefresh is the timer callback for one remote profile.
func (m *Manager) runRefresh(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := m.RefreshProfile(ctx, id); err != nil {
		m.log.Warn("scheduled refresh failed", "profile", id, "error", err)
	}
}

func (m *Manager) emitRefreshFailed(ctx context.Context, item profile.Item, err error) {
	m.emit(ctx, activity.BuildProfileRefreshFailedEvent(activity.ConfigEventInput{
		ProfileID: item.ID,
		ObjectID:  item.ID,
		Message:   err.Error(),
	}))
}
