package activity

import (
	"strings"
	"time"
)

// ConfigEventInput describes the common fields for configuration lifecycle
// events.
type ConfigEventInput struct {
	ProfileID  string
	ObjectID   string
	Channel    string
	Severity   string
	Message    string
	Path       string
	OldValue   any
	NewValue   any
	Metadata   map[string]any
	OccurredAt time.Time
}

// BuildConfigUpdatedEvent constructs an event for a committed configuration.
func BuildConfigUpdatedEvent(input ConfigEventInput) Event {
	return buildConfigEvent("config.updated", "config", SeverityInfo, input)
}

// BuildConfigRevertedEvent constructs an event for a rolled-back commit.
func BuildConfigRevertedEvent(input ConfigEventInput) Event {
	return buildConfigEvent("config.reverted", "config", SeverityWarning, input)
}

// BuildLayerFailedEvent constructs an event for an enhancement layer that
// failed to apply.
func BuildLayerFailedEvent(input ConfigEventInput) Event {
	return buildConfigEvent("config.layer.failed", "config.layer", SeverityError, input)
}

// BuildProfileRefreshedEvent constructs an event for a refreshed remote
// profile.
func BuildProfileRefreshedEvent(input ConfigEventInput) Event {
	return buildConfigEvent("profile.refreshed", "profile", SeverityInfo, input)
}

// BuildProfileRefreshFailedEvent constructs an event for a failed remote
// profile refresh.
func BuildProfileRefreshFailedEvent(input ConfigEventInput) Event {
	return buildConfigEvent("profile.refresh.failed", "profile", SeverityError, input)
}

func buildConfigEvent(verb, objectType, severity string, input ConfigEventInput) Event {
	profileID := strings.TrimSpace(input.ProfileID)

	metadata := cloneMap(input.Metadata)
	if input.Path != "" {
		metadata = ensureMetadata(metadata)
		metadata["path"] = input.Path
	}
	if profileID != "" {
		metadata = ensureMetadata(metadata)
		metadata["profile_id"] = profileID
	}
	if input.OldValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["old_value"] = input.OldValue
	}
	if input.NewValue != nil {
		metadata = ensureMetadata(metadata)
		metadata["new_value"] = input.NewValue
	}

	if strings.TrimSpace(input.Severity) != "" {
		severity = strings.TrimSpace(input.Severity)
	}

	objectID := strings.TrimSpace(input.ObjectID)
	if objectID == "" {
		objectID = profileID
	}
	if objectID == "" {
		objectID = strings.TrimSpace(input.Path)
	}
	if objectID == "" {
		objectID = objectType
	}

	return Event{
		Verb:       verb,
		ObjectType: objectType,
		ObjectID:   objectID,
		ProfileID:  profileID,
		Severity:   severity,
		Channel:    strings.TrimSpace(input.Channel),
		Message:    strings.TrimSpace(input.Message),
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}

func ensureMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return meta
}
