package hydrate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

type engineSettings struct {
	ExternalController string   `yaml:"external-controller"`
	Secret             string   `yaml:"secret"`
	Flags              []string `yaml:"flags"`
}

type testSettings struct {
	Engine   engineSettings `yaml:"engine"`
	LogLevel string         `yaml:"log-level"`
	Tags     []string       `yaml:"tags"`
}

func TestDecoderDecodesNestedDocument(t *testing.T) {
	decoder := NewDecoder[testSettings]()

	doc := map[string]any{
		"engine": map[string]any{
			"external-controller": "127.0.0.1:9090",
			"secret":              "s3cret",
		},
		"log-level": "info",
	}

	got, err := decoder.Decode(Context{Domain: "settings"}, doc)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	want := testSettings{
		Engine:   engineSettings{ExternalController: "127.0.0.1:9090", Secret: "s3cret"},
		LogLevel: "info",
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("decoded settings mismatch:\nwant: %#v\n got: %#v", want, got)
	}
}

func TestDecoderNilDocument(t *testing.T) {
	decoder := NewDecoder[testSettings]()

	_, err := decoder.Decode(Context{Domain: "settings"}, nil)
	if err == nil {
		t.Fatal("expected error for nil document, got nil")
	}
	if !strings.Contains(err.Error(), `domain "settings"`) {
		t.Fatalf("expected error to name the domain, got %v", err)
	}
}

func TestDecoderPreHookNormalisesLegacyKeys(t *testing.T) {
	// Older settings files stored the controller address at the top level.
	legacyController := func(_ Context, doc map[string]any) (map[string]any, error) {
		value, ok := doc["external-controller"].(string)
		if !ok || value == "" {
			return doc, nil
		}
		delete(doc, "external-controller")
		doc["engine"] = map[string]any{"external-controller": value}
		return doc, nil
	}

	decoder := NewDecoder[testSettings](WithPreHook[testSettings](legacyController))

	got, err := decoder.Decode(Context{Domain: "settings"}, map[string]any{
		"external-controller": "127.0.0.1:7777",
	})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.Engine.ExternalController != "127.0.0.1:7777" {
		t.Fatalf("expected pre-hook to relocate controller, got %#v", got)
	}
}

func TestDecoderPreHookDoesNotMutateInput(t *testing.T) {
	decoder := NewDecoder[testSettings](WithPreHook[testSettings](
		func(_ Context, doc map[string]any) (map[string]any, error) {
			doc["log-level"] = "debug"
			return doc, nil
		},
	))

	doc := map[string]any{"log-level": "info"}
	got, err := decoder.Decode(Context{Domain: "settings"}, doc)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.LogLevel != "debug" {
		t.Fatalf("expected hook result to win, got %q", got.LogLevel)
	}
	if doc["log-level"] != "info" {
		t.Fatalf("input document was mutated: %#v", doc)
	}
}

func TestDecoderPreHookErrorWrapped(t *testing.T) {
	hookErr := errors.New("bad controller address")
	decoder := NewDecoder[testSettings](WithPreHook[testSettings](
		func(Context, map[string]any) (map[string]any, error) {
			return nil, hookErr
		},
	))

	_, err := decoder.Decode(Context{Domain: "settings", Source: "settings.yaml"}, map[string]any{})
	if err == nil {
		t.Fatal("expected pre-hook error, got nil")
	}
	if !errors.Is(err, hookErr) {
		t.Fatalf("expected wrapped hook error, got %v", err)
	}
	if !strings.Contains(err.Error(), "pre-hook") {
		t.Fatalf("expected pre-hook prefix, got %v", err)
	}
}

func TestDecoderPostHookDefaultsAndValidates(t *testing.T) {
	defaultTags := func(ctx Context, s *testSettings) error {
		if s == nil {
			return errors.New("settings is nil")
		}
		if len(s.Tags) == 0 {
			s.Tags = []string{ctx.Domain}
		}
		return nil
	}
	rejectEmptyController := func(_ Context, s *testSettings) error {
		if s.Engine.ExternalController == "" {
			return fmt.Errorf("external-controller is required")
		}
		return nil
	}

	decoder := NewDecoder[testSettings](
		WithPostHook[testSettings](defaultTags),
		WithPostHook[testSettings](rejectEmptyController),
	)

	got, err := decoder.Decode(Context{Domain: "settings"}, map[string]any{
		"engine": map[string]any{"external-controller": "127.0.0.1:9090"},
	})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(got.Tags) != 1 || got.Tags[0] != "settings" {
		t.Fatalf("expected defaulted tags, got %#v", got.Tags)
	}

	_, err = decoder.Decode(Context{Domain: "settings"}, map[string]any{})
	if err == nil {
		t.Fatal("expected post-hook validation error, got nil")
	}
	if !strings.Contains(err.Error(), "external-controller is required") {
		t.Fatalf("expected validation detail, got %v", err)
	}
}

func TestDecoderKnownFieldsRejectsUnknownKeys(t *testing.T) {
	decoder := NewDecoder[testSettings](WithKnownFields[testSettings]())

	_, err := decoder.Decode(Context{Domain: "settings"}, map[string]any{
		"log-levl": "info",
	})
	if err == nil {
		t.Fatal("expected unknown field error, got nil")
	}
	if !strings.Contains(err.Error(), "log-levl") {
		t.Fatalf("expected offending key in error, got %v", err)
	}
}

func TestDecoderCustomDecoder(t *testing.T) {
	decoder := NewDecoder[testSettings](WithCustomDecoder[testSettings](
		func(_ Context, doc map[string]any) (testSettings, error) {
			level, _ := doc["log-level"].(string)
			if level == "" {
				return testSettings{}, errors.New("missing log-level")
			}
			return testSettings{LogLevel: strings.ToLower(level)}, nil
		},
	))

	got, err := decoder.Decode(Context{Domain: "settings"}, map[string]any{"log-level": "INFO"})
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if got.LogLevel != "info" {
		t.Fatalf("expected custom decoder result, got %q", got.LogLevel)
	}

	_, err = decoder.Decode(Context{Domain: "settings"}, map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "custom decoder") {
		t.Fatalf("expected custom decoder failure, got %v", err)
	}
}
