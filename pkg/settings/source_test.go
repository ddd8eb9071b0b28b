package settings

import (
	"reflect"
	"testing"
)

func TestParseSourceLevel(t *testing.T) {
	cases := []struct {
		value string
		want  SourceLevel
	}{
		{"default", LevelDefault},
		{"file", LevelFile},
		{"environment", LevelEnvironment},
		{"env", LevelEnvironment},
		{"flag", LevelFlag},
		{"FLAG", LevelFlag},
		{"", LevelUnknown},
		{"bogus", LevelUnknown},
	}

	for _, tc := range cases {
		if got := ParseSourceLevel(tc.value); got != tc.want {
			t.Errorf("ParseSourceLevel(%q): expected %v, got %v", tc.value, tc.want, got)
		}
	}
}

func TestSourceLevelString(t *testing.T) {
	levels := map[SourceLevel]string{
		LevelDefault:     "default",
		LevelFile:        "file",
		LevelEnvironment: "environment",
		LevelFlag:        "flag",
		LevelUnknown:     "unknown",
	}
	for level, want := range levels {
		if got := level.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestResolveOrdersStrongestFirst(t *testing.T) {
	flag := Layer{
		Source: Source{Name: "--engine-url", Level: LevelFlag},
		Value:  Settings{Engine: Engine{ExternalController: ptr("127.0.0.1:7777")}},
	}
	env := Layer{
		Source: Source{Name: "ENHANCE_ENGINE_SECRET", Level: LevelEnvironment},
		Value:  Settings{Engine: Engine{Secret: ptr("from-env")}},
	}
	file := Layer{
		Source: Source{Name: "settings.yaml", Level: LevelFile},
		Value: Settings{
			Engine:  Engine{ExternalController: ptr("127.0.0.1:9999"), Secret: ptr("from-file")},
			Logging: Logging{Level: ptr("debug")},
		},
	}

	// Deliberately passed weakest-first; Resolve must reorder.
	effective, chain := Resolve(file, DefaultLayer(), env, flag)

	if effective.ControllerAddress() != "127.0.0.1:7777" {
		t.Fatalf("expected flag layer to win controller, got %q", effective.ControllerAddress())
	}
	if effective.ControllerSecret() != "from-env" {
		t.Fatalf("expected env layer to win secret, got %q", effective.ControllerSecret())
	}
	if effective.LogLevel() != "debug" {
		t.Fatalf("expected file layer log level, got %q", effective.LogLevel())
	}
	if !effective.RefreshEnabled() {
		t.Fatal("expected defaults to fill refresh.enabled")
	}

	ordered := chain.Ordered()
	wantLevels := []SourceLevel{LevelFlag, LevelEnvironment, LevelFile, LevelDefault}
	gotLevels := make([]SourceLevel, len(ordered))
	for i, src := range ordered {
		gotLevels[i] = src.Level
	}
	if !reflect.DeepEqual(wantLevels, gotLevels) {
		t.Fatalf("expected chain levels %v, got %v", wantLevels, gotLevels)
	}
	if chain.Strongest().Level != LevelFlag {
		t.Fatalf("expected strongest=flag, got %v", chain.Strongest())
	}
	if chain.Weakest().Level != LevelDefault {
		t.Fatalf("expected weakest=default, got %v", chain.Weakest())
	}
}

func TestResolveKeepsPeerOrderStable(t *testing.T) {
	first := Layer{
		Source: Source{Name: "a.yaml", Level: LevelFile},
		Value:  Settings{Logging: Logging{Level: ptr("warn")}},
	}
	second := Layer{
		Source: Source{Name: "b.yaml", Level: LevelFile},
		Value:  Settings{Logging: Logging{Level: ptr("error")}},
	}

	effective, chain := Resolve(first, second)

	if effective.LogLevel() != "warn" {
		t.Fatalf("expected first peer to stay stronger, got %q", effective.LogLevel())
	}
	ordered := chain.Ordered()
	if len(ordered) != 2 || ordered[0].Name != "a.yaml" || ordered[1].Name != "b.yaml" {
		t.Fatalf("expected stable peer order, got %#v", ordered)
	}
}

func TestResolveDropsUnknownAndDuplicates(t *testing.T) {
	unknown := Layer{Source: Source{Name: "mystery"}}
	file := Layer{
		Source: Source{Name: "settings.yaml", Level: LevelFile},
		Value:  Settings{Logging: Logging{Level: ptr("warn")}},
	}
	duplicate := Layer{
		Source: Source{Name: "settings.yaml", Level: LevelFile},
		Value:  Settings{Logging: Logging{Level: ptr("error")}},
	}

	effective, chain := Resolve(unknown, file, duplicate)

	if got := len(chain.Ordered()); got != 1 {
		t.Fatalf("expected 1 surviving source, got %d: %#v", got, chain.Ordered())
	}
	if effective.LogLevel() != "warn" {
		t.Fatalf("expected first occurrence to win, got %q", effective.LogLevel())
	}
}

func TestResolveEmpty(t *testing.T) {
	effective, chain := Resolve()
	if len(chain.Ordered()) != 0 {
		t.Fatalf("expected empty chain, got %#v", chain.Ordered())
	}
	if effective.ControllerAddress() != "" {
		t.Fatalf("expected zero settings, got %#v", effective)
	}
}

func TestSourceChainOrderedIsCopy(t *testing.T) {
	_, chain := Resolve(DefaultLayer())
	ordered := chain.Ordered()
	if len(ordered) != 1 {
		t.Fatalf("expected one source, got %d", len(ordered))
	}
	ordered[0].Name = "mutated"
	if chain.Strongest().Name == "mutated" {
		t.Fatal("Ordered must return a copy")
	}
}
