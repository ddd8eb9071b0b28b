package profile_test

import (
	"strings"
	"testing"

	"github.com/goliatone/go-enhance/pkg/profile"
)

func TestNewItemID(t *testing.T) {
	first := profile.NewItemID()
	second := profile.NewItemID()
	if !strings.HasPrefix(first, "p-") {
		t.Fatalf("expected p- prefix, got %q", first)
	}
	if first == second {
		t.Fatalf("expected unique ids, got %q twice", first)
	}
	if first != strings.ToLower(first) {
		t.Fatalf("expected lowercase id, got %q", first)
	}
}

func TestParseKind(t *testing.T) {
	cases := []struct {
		raw      string
		expected profile.Kind
		wantErr  bool
	}{
		{raw: "local", expected: profile.KindLocal},
		{raw: "remote", expected: profile.KindRemote},
		{raw: "merge", expected: profile.KindMerge},
		{raw: "script", expected: profile.KindScript},
		{raw: "Local", wantErr: true},
		{raw: "", wantErr: true},
		{raw: "global", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			kind, err := profile.ParseKind(tc.raw)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if kind != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, kind)
			}
		})
	}
}

func TestKindClassification(t *testing.T) {
	if !profile.KindLocal.Selectable() || !profile.KindRemote.Selectable() {
		t.Fatal("expected base document kinds to be selectable")
	}
	if profile.KindMerge.Selectable() || profile.KindScript.Selectable() {
		t.Fatal("expected chain kinds not to be selectable")
	}
	if !profile.KindMerge.Chainable() || !profile.KindScript.Chainable() {
		t.Fatal("expected merge and script kinds to be chainable")
	}
	if profile.KindLocal.Chainable() || profile.KindRemote.Chainable() {
		t.Fatal("expected base document kinds not to be chainable")
	}
}

func TestNewLocalItem(t *testing.T) {
	item := profile.NewLocalItem("home", "port: 7890\n")

	if item.Kind != profile.KindLocal {
		t.Fatalf("expected local kind, got %q", item.Kind)
	}
	if !item.Enabled {
		t.Fatal("expected new items to start enabled")
	}
	if item.Content != "port: 7890\n" {
		t.Fatalf("unexpected content %q", item.Content)
	}
	if len(item.Fingerprint) != 64 {
		t.Fatalf("expected content fingerprint, got %q", item.Fingerprint)
	}
	if item.UpdatedAt.IsZero() {
		t.Fatal("expected updated-at to be set")
	}
	if err := item.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewRemoteItem(t *testing.T) {
	item := profile.NewRemoteItem("sub", "https://example.com/sub.yaml")

	if item.Kind != profile.KindRemote {
		t.Fatalf("expected remote kind, got %q", item.Kind)
	}
	if item.URL != "https://example.com/sub.yaml" {
		t.Fatalf("unexpected url %q", item.URL)
	}
	if item.Content != "" || item.Fingerprint != "" {
		t.Fatal("expected remote items to start without content")
	}
}

func TestNewScriptItem(t *testing.T) {
	item := profile.NewScriptItem("tweak", "lua", "function main(c) return c end")

	if item.Kind != profile.KindScript {
		t.Fatalf("expected script kind, got %q", item.Kind)
	}
	if item.Engine != "lua" {
		t.Fatalf("expected lua engine, got %q", item.Engine)
	}
}

func TestItemSetContent(t *testing.T) {
	item := profile.NewMergeItem("tweak", "mode: rule\n")
	before := item.Fingerprint

	item.SetContent("mode: global\n")
	if item.Fingerprint == before {
		t.Fatal("expected fingerprint to change with content")
	}

	twin := profile.NewMergeItem("other", "mode: global\n")
	if item.Fingerprint != twin.Fingerprint {
		t.Fatal("expected identical content to share a fingerprint")
	}
}

func TestItemApplyFetched(t *testing.T) {
	item := profile.NewRemoteItem("sub", "https://example.com/sub.yaml")

	if !item.ApplyFetched([]byte("port: 7890\n")) {
		t.Fatal("expected first fetch to install content")
	}
	if item.Content != "port: 7890\n" {
		t.Fatalf("unexpected content %q", item.Content)
	}

	if item.ApplyFetched([]byte("port: 7890\n")) {
		t.Fatal("expected identical fetch to be a no-op")
	}
	if !item.ApplyFetched([]byte("port: 1080\n")) {
		t.Fatal("expected changed fetch to install content")
	}
	if item.Content != "port: 1080\n" {
		t.Fatalf("unexpected content %q", item.Content)
	}
}

func TestItemClone(t *testing.T) {
	item := profile.NewLocalItem("home", "port: 7890\n")
	item.Chain = []string{"p-a", "p-b"}

	clone := item.Clone()
	clone.Chain[0] = "p-z"
	clone.Name = "away"

	if item.Chain[0] != "p-a" {
		t.Fatalf("expected original chain untouched, got %q", item.Chain[0])
	}
	if item.Name != "home" {
		t.Fatalf("expected original name untouched, got %q", item.Name)
	}
}

func TestItemValidate(t *testing.T) {
	valid := profile.NewLocalItem("home", "port: 7890\n")

	cases := []struct {
		name    string
		mutate  func(*profile.Item)
		wantErr bool
	}{
		{name: "valid", mutate: func(*profile.Item) {}},
		{name: "missing id", mutate: func(i *profile.Item) { i.ID = "" }, wantErr: true},
		{name: "missing name", mutate: func(i *profile.Item) { i.Name = "" }, wantErr: true},
		{name: "unknown kind", mutate: func(i *profile.Item) { i.Kind = "virtual" }, wantErr: true},
		{name: "remote without url", mutate: func(i *profile.Item) { i.Kind = profile.KindRemote }, wantErr: true},
		{name: "negative interval", mutate: func(i *profile.Item) { i.IntervalMinutes = -5 }, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			item := valid.Clone()
			tc.mutate(&item)
			err := item.Validate()
			if tc.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}
