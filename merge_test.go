package enhance

import "testing"

func TestMergeRecursesIntoMappings(t *testing.T) {
	base := Document{
		"dns": map[string]any{
			"enable": true,
			"ipv6":   false,
		},
		"mode": "rule",
	}
	patch := Document{
		"dns": map[string]any{
			"ipv6": true,
		},
	}

	merged := Merge(base, patch)

	dns := merged["dns"].(map[string]any)
	if dns["enable"] != true {
		t.Fatalf("expected untouched key to survive, got %v", dns["enable"])
	}
	if dns["ipv6"] != true {
		t.Fatalf("expected patch to win, got %v", dns["ipv6"])
	}
	if merged["mode"] != "rule" {
		t.Fatalf("expected base-only key to survive, got %v", merged["mode"])
	}
}

func TestMergeScalarReplaces(t *testing.T) {
	merged := Merge(Document{"port": 7890}, Document{"port": 9090})
	if merged["port"] != 9090 {
		t.Fatalf("expected 9090, got %v", merged["port"])
	}
}

func TestMergeTombstoneRemovesKey(t *testing.T) {
	base := Document{
		"tun":  map[string]any{"enable": true},
		"mode": "rule",
	}
	merged := Merge(base, Document{"tun": nil})

	if _, ok := merged["tun"]; ok {
		t.Fatal("expected tombstoned key to be removed")
	}
	if merged["mode"] != "rule" {
		t.Fatal("expected sibling key to survive")
	}
	if _, ok := base["tun"]; !ok {
		t.Fatal("tombstone must not mutate the base document")
	}
}

func TestMergeTombstoneMissingKey(t *testing.T) {
	merged := Merge(Document{"mode": "rule"}, Document{"absent": nil})
	if !EqualDocuments(merged, Document{"mode": "rule"}) {
		t.Fatalf("expected no-op tombstone, got %v", merged)
	}
}

func TestMergeSequenceReplacesOutsideAppendKeys(t *testing.T) {
	base := Document{"proxies": []any{"a", "b"}}
	patch := Document{"proxies": []any{"c"}}
	merged := Merge(base, patch)
	if !valuesEqual(merged["proxies"], []any{"c"}) {
		t.Fatalf("expected wholesale replacement, got %v", merged["proxies"])
	}
}

func TestMergeAppendKeysAccumulate(t *testing.T) {
	base := Document{
		"rules": []any{"DOMAIN,example.com,DIRECT", "MATCH,DIRECT"},
		"dns": map[string]any{
			"nameserver": []any{"1.1.1.1"},
		},
	}
	patch := Document{
		"rules": []any{"MATCH,DIRECT", "DOMAIN,ads.example,REJECT"},
		"dns": map[string]any{
			"nameserver": []any{"8.8.8.8", "1.1.1.1"},
		},
	}

	merged := Merge(base, patch)

	wantRules := []any{"DOMAIN,example.com,DIRECT", "MATCH,DIRECT", "DOMAIN,ads.example,REJECT"}
	if !valuesEqual(merged["rules"], wantRules) {
		t.Fatalf("rules = %v, want %v", merged["rules"], wantRules)
	}
	wantServers := []any{"1.1.1.1", "8.8.8.8"}
	if got := merged["dns"].(map[string]any)["nameserver"]; !valuesEqual(got, wantServers) {
		t.Fatalf("nameserver = %v, want %v", got, wantServers)
	}
}

func TestMergeAppendKeyTypeMismatchReplaces(t *testing.T) {
	merged := Merge(Document{"rules": []any{"MATCH,DIRECT"}}, Document{"rules": "invalid"})
	if merged["rules"] != "invalid" {
		t.Fatalf("expected non-sequence patch to replace, got %v", merged["rules"])
	}
}

func TestMergeAppendKeyTombstone(t *testing.T) {
	merged := Merge(Document{"rules": []any{"MATCH,DIRECT"}}, Document{"rules": nil})
	if _, ok := merged["rules"]; ok {
		t.Fatal("expected tombstone to win over append")
	}
}

func TestMergeCustomAppendKeys(t *testing.T) {
	merger := NewMerger(WithAppendKeys("hosts.extra"))

	merged := merger.Merge(
		Document{
			"rules": []any{"a"},
			"hosts": map[string]any{"extra": []any{"x"}},
		},
		Document{
			"rules": []any{"b"},
			"hosts": map[string]any{"extra": []any{"y"}},
		},
	)

	if !valuesEqual(merged["rules"], []any{"b"}) {
		t.Fatalf("expected rules to replace under custom keys, got %v", merged["rules"])
	}
	if got := merged["hosts"].(map[string]any)["extra"]; !valuesEqual(got, []any{"x", "y"}) {
		t.Fatalf("expected hosts.extra to append, got %v", got)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	base := Document{
		"dns":   map[string]any{"enable": true},
		"rules": []any{"MATCH,DIRECT"},
	}
	patch := Document{
		"dns":   map[string]any{"ipv6": true},
		"rules": []any{"DOMAIN,x,REJECT"},
	}
	baseCopy := CloneDocument(base)
	patchCopy := CloneDocument(patch)

	merged := Merge(base, patch)
	merged["dns"].(map[string]any)["enable"] = "mutated"
	merged["rules"] = append(merged["rules"].([]any), "extra")

	if !EqualDocuments(base, baseCopy) {
		t.Fatalf("base mutated: %v", base)
	}
	if !EqualDocuments(patch, patchCopy) {
		t.Fatalf("patch mutated: %v", patch)
	}
}

func TestMergeAllFoldsLeftToRight(t *testing.T) {
	result := MergeAll(
		Document{"port": 1, "mode": "rule"},
		Document{"port": 2},
		Document{"port": 3, "log-level": "info"},
	)
	if result["port"] != 3 {
		t.Fatalf("expected last patch to win, got %v", result["port"])
	}
	if result["mode"] != "rule" || result["log-level"] != "info" {
		t.Fatalf("expected union of keys, got %v", result)
	}
}

func TestMergeIdempotent(t *testing.T) {
	base := Document{
		"dns":   map[string]any{"nameserver": []any{"1.1.1.1"}},
		"rules": []any{"MATCH,DIRECT"},
	}
	patch := Document{
		"dns":   map[string]any{"nameserver": []any{"8.8.8.8"}},
		"rules": []any{"DOMAIN,x,REJECT"},
		"port":  7890,
	}

	once := Merge(base, patch)
	twice := Merge(once, patch)
	if !EqualDocuments(once, twice) {
		t.Fatalf("reapplying the same patch changed the result:\nonce:  %v\ntwice: %v", once, twice)
	}
}
