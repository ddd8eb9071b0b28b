package activity

import (
	"context"
	"testing"
)

func TestBuildConfigUpdatedEventIncludesMetadata(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	input := ConfigEventInput{
		ProfileID: " p-1 ",
		Path:      "dns.enable",
		Metadata:  meta,
		OldValue:  false,
		NewValue:  true,
		Message:   "dns enabled",
		Channel:   "desktop",
	}

	event := BuildConfigUpdatedEvent(input)

	if event.Verb != "config.updated" {
		t.Fatalf("expected verb config.updated got %s", event.Verb)
	}
	if event.ObjectType != "config" || event.ObjectID != "p-1" {
		t.Fatalf("unexpected object fields: %+v", event)
	}
	if event.ProfileID != "p-1" || event.Severity != SeverityInfo {
		t.Fatalf("unexpected profile fields: %+v", event)
	}
	if event.Metadata["path"] != "dns.enable" {
		t.Fatalf("expected path metadata, got %v", event.Metadata["path"])
	}
	if event.Metadata["profile_id"] != "p-1" {
		t.Fatalf("expected profile_id metadata, got %v", event.Metadata["profile_id"])
	}
	if event.Metadata["old_value"] != false || event.Metadata["new_value"] != true {
		t.Fatalf("expected old/new values, got %v %v", event.Metadata["old_value"], event.Metadata["new_value"])
	}
	if meta["custom"] != "value" {
		t.Fatalf("expected input metadata untouched")
	}
	if _, leaked := meta["path"]; leaked {
		t.Fatalf("expected input metadata untouched, got %+v", meta)
	}
}

func TestBuildLayerFailedEventDefaultsToErrorSeverity(t *testing.T) {
	event := BuildLayerFailedEvent(ConfigEventInput{
		ObjectID: "layer-1",
		Metadata: map[string]any{"error": "script timeout"},
	})
	if event.Verb != "config.layer.failed" || event.ObjectType != "config.layer" {
		t.Fatalf("unexpected event fields: %+v", event)
	}
	if event.Severity != SeverityError {
		t.Fatalf("expected error severity, got %q", event.Severity)
	}
	if event.Metadata["error"] != "script timeout" {
		t.Fatalf("expected error metadata, got %+v", event.Metadata)
	}
}

func TestBuildConfigRevertedEventSeverityOverride(t *testing.T) {
	event := BuildConfigRevertedEvent(ConfigEventInput{ObjectID: "runtime", Severity: SeverityError})
	if event.Severity != SeverityError {
		t.Fatalf("expected override severity, got %q", event.Severity)
	}

	event = BuildConfigRevertedEvent(ConfigEventInput{ObjectID: "runtime"})
	if event.Severity != SeverityWarning {
		t.Fatalf("expected warning severity, got %q", event.Severity)
	}
}

func TestBuildConfigEventObjectIDFallbacks(t *testing.T) {
	cases := []struct {
		name     string
		input    ConfigEventInput
		expected string
	}{
		{name: "explicit", input: ConfigEventInput{ObjectID: "x", ProfileID: "p-1", Path: "dns"}, expected: "x"},
		{name: "profile", input: ConfigEventInput{ProfileID: "p-1", Path: "dns"}, expected: "p-1"},
		{name: "path", input: ConfigEventInput{Path: "dns"}, expected: "dns"},
		{name: "object type", input: ConfigEventInput{}, expected: "profile"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event := BuildProfileRefreshedEvent(tc.input)
			if event.ObjectID != tc.expected {
				t.Fatalf("expected object ID %q, got %q", tc.expected, event.ObjectID)
			}
		})
	}
}

func TestBuildConfigEventsWorkWithHooks(t *testing.T) {
	capture := &CaptureHook{}
	hooks := Hooks{capture}

	event := BuildProfileRefreshFailedEvent(ConfigEventInput{
		ProfileID: "p-2",
		Message:   "fetch failed",
	})
	err := hooks.Notify(context.Background(), event)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected capture to record event, got %d", len(capture.Events))
	}
	if capture.Events[0].Verb != "profile.refresh.failed" {
		t.Fatalf("expected verb profile.refresh.failed, got %s", capture.Events[0].Verb)
	}
	if capture.Events[0].Severity != SeverityError {
		t.Fatalf("expected error severity, got %q", capture.Events[0].Severity)
	}
}
