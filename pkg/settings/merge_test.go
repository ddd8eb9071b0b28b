package settings

import (
	"reflect"
	"testing"
)

type mergeSnapshot struct {
	Enabled   *bool
	Threshold *int
	Limits    map[string]int
	Tags      []string
	Channel   *mergeChannel
}

type mergeChannel struct {
	Enabled *bool
	Volume  *int
	Labels  []string
}

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

func TestMergeStrongerPointerWins(t *testing.T) {
	strong := mergeSnapshot{Enabled: boolPtr(false), Threshold: intPtr(10)}
	weak := mergeSnapshot{Enabled: boolPtr(true), Threshold: intPtr(99)}

	got := Merge(strong, weak)

	if got.Enabled == nil || *got.Enabled != false {
		t.Fatalf("expected strong enabled=false to win, got %v", got.Enabled)
	}
	if got.Threshold == nil || *got.Threshold != 10 {
		t.Fatalf("expected strong threshold=10 to win, got %v", got.Threshold)
	}
}

func TestMergeFillsUnsetFromWeaker(t *testing.T) {
	strong := mergeSnapshot{Threshold: intPtr(10)}
	weak := mergeSnapshot{Enabled: boolPtr(true), Tags: []string{"weak"}}

	got := Merge(strong, weak)

	if got.Enabled == nil || *got.Enabled != true {
		t.Fatalf("expected enabled filled from weak layer, got %v", got.Enabled)
	}
	if !reflect.DeepEqual(got.Tags, []string{"weak"}) {
		t.Fatalf("expected tags filled from weak layer, got %#v", got.Tags)
	}
	if got.Threshold == nil || *got.Threshold != 10 {
		t.Fatalf("expected strong threshold kept, got %v", got.Threshold)
	}
}

func TestMergeNestedStructPerField(t *testing.T) {
	strong := mergeSnapshot{Channel: &mergeChannel{Volume: intPtr(5)}}
	weak := mergeSnapshot{Channel: &mergeChannel{Enabled: boolPtr(true), Volume: intPtr(1)}}

	got := Merge(strong, weak)

	if got.Channel == nil {
		t.Fatal("expected merged channel, got nil")
	}
	if got.Channel.Volume == nil || *got.Channel.Volume != 5 {
		t.Fatalf("expected strong volume=5, got %v", got.Channel.Volume)
	}
	if got.Channel.Enabled == nil || *got.Channel.Enabled != true {
		t.Fatalf("expected enabled filled from weak channel, got %v", got.Channel.Enabled)
	}
}

func TestMergeMapsUnionPerKey(t *testing.T) {
	strong := mergeSnapshot{Limits: map[string]int{"daily": 10}}
	weak := mergeSnapshot{Limits: map[string]int{"daily": 1, "monthly": 100}}

	got := Merge(strong, weak)

	want := map[string]int{"daily": 10, "monthly": 100}
	if !reflect.DeepEqual(want, got.Limits) {
		t.Fatalf("expected %#v, got %#v", want, got.Limits)
	}
}

func TestMergeSlicesReplaceWholesale(t *testing.T) {
	strong := mergeSnapshot{Tags: []string{"a"}}
	weak := mergeSnapshot{Tags: []string{"x", "y", "z"}}

	got := Merge(strong, weak)

	if !reflect.DeepEqual(got.Tags, []string{"a"}) {
		t.Fatalf("expected strong tags to replace weak wholesale, got %#v", got.Tags)
	}
}

func TestMergeZeroInput(t *testing.T) {
	var zero mergeSnapshot
	if got := Merge[mergeSnapshot](); !reflect.DeepEqual(zero, got) {
		t.Fatalf("expected Merge() to return zero value, got %+v", got)
	}
}

func TestMergeSingleLayerIsDeepCopy(t *testing.T) {
	original := mergeSnapshot{
		Limits: map[string]int{"daily": 1},
		Tags:   []string{"a"},
		Channel: &mergeChannel{
			Labels: []string{"email"},
		},
	}

	got := Merge(original)

	original.Limits["daily"] = 99
	original.Tags[0] = "mutated"
	original.Channel.Labels[0] = "mutated"

	if got.Limits["daily"] != 1 {
		t.Fatalf("merged limits share backing map with input: %#v", got.Limits)
	}
	if got.Tags[0] != "a" {
		t.Fatalf("merged tags share backing array with input: %#v", got.Tags)
	}
	if got.Channel.Labels[0] != "email" {
		t.Fatalf("merged channel shares backing array with input: %#v", got.Channel.Labels)
	}
}

func TestMergeSettingsLayers(t *testing.T) {
	override := Settings{
		Engine: Engine{ExternalController: ptr("127.0.0.1:7777")},
	}
	file := Settings{
		Engine:  Engine{Secret: ptr("s3cret")},
		Logging: Logging{Level: ptr("debug")},
	}

	got := Merge(override, file, Default())

	if got.ControllerAddress() != "127.0.0.1:7777" {
		t.Fatalf("expected override controller, got %q", got.ControllerAddress())
	}
	if got.ControllerSecret() != "s3cret" {
		t.Fatalf("expected file secret, got %q", got.ControllerSecret())
	}
	if got.LogLevel() != "debug" {
		t.Fatalf("expected file log level, got %q", got.LogLevel())
	}
	if !got.RefreshEnabled() {
		t.Fatal("expected refresh enabled from defaults")
	}
	if got.FetchUserAgent() != "enhance/1.0" {
		t.Fatalf("expected default user agent, got %q", got.FetchUserAgent())
	}
}
