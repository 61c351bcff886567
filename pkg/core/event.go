package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of notifications exchanged on the bus.
type EventType uint8

const (
	DocumentChanged EventType = iota
	DocumentCreated
	DocumentOpened
	DocumentSaved
	DocumentClosed

	ProjectCreated
	ProjectOpened
	ProjectSaved
	ProjectClosed
	ProjectSettingsChanged

	PluginLoaded
	PluginUnloaded
	PluginEnabled
	PluginDisabled

	LayoutChanged
	PanelOpened
	PanelClosed
	ThemeChanged

	ApplicationStartup
	ApplicationShutdown
	ConfigurationChanged

	// Custom is the escape hatch for plugin specific signals. The signal
	// name travels in the "name" metadata key.
	Custom
)

// EventCategory groups event types.
type EventCategory string

const (
	CategoryDocument    EventCategory = "document"
	CategoryProject     EventCategory = "project"
	CategoryPlugin      EventCategory = "plugin"
	CategoryUI          EventCategory = "ui"
	CategoryApplication EventCategory = "application"
	CategoryCustom      EventCategory = "custom"
)

type eventTypeInfo struct {
	name        string
	description string
	category    EventCategory
}

var eventTypes = [...]eventTypeInfo{
	DocumentChanged:        {"DocumentChanged", "Document content has changed", CategoryDocument},
	DocumentCreated:        {"DocumentCreated", "New document was created", CategoryDocument},
	DocumentOpened:         {"DocumentOpened", "Document was opened", CategoryDocument},
	DocumentSaved:          {"DocumentSaved", "Document was saved", CategoryDocument},
	DocumentClosed:         {"DocumentClosed", "Document was closed", CategoryDocument},
	ProjectCreated:         {"ProjectCreated", "New project was created", CategoryProject},
	ProjectOpened:          {"ProjectOpened", "Project was opened", CategoryProject},
	ProjectSaved:           {"ProjectSaved", "Project was saved", CategoryProject},
	ProjectClosed:          {"ProjectClosed", "Project was closed", CategoryProject},
	ProjectSettingsChanged: {"ProjectSettingsChanged", "Project settings were changed", CategoryProject},
	PluginLoaded:           {"PluginLoaded", "Plugin was loaded", CategoryPlugin},
	PluginUnloaded:         {"PluginUnloaded", "Plugin was unloaded", CategoryPlugin},
	PluginEnabled:          {"PluginEnabled", "Plugin was enabled", CategoryPlugin},
	PluginDisabled:         {"PluginDisabled", "Plugin was disabled", CategoryPlugin},
	LayoutChanged:          {"LayoutChanged", "UI layout was changed", CategoryUI},
	PanelOpened:            {"PanelOpened", "Panel was opened", CategoryUI},
	PanelClosed:            {"PanelClosed", "Panel was closed", CategoryUI},
	ThemeChanged:           {"ThemeChanged", "Theme was changed", CategoryUI},
	ApplicationStartup:     {"ApplicationStartup", "Application is starting up", CategoryApplication},
	ApplicationShutdown:    {"ApplicationShutdown", "Application is shutting down", CategoryApplication},
	ConfigurationChanged:   {"ConfigurationChanged", "Configuration was changed", CategoryApplication},
	Custom:                 {"Custom", "Custom event", CategoryCustom},
}

// EventTypes returns every event type in declaration order.
func EventTypes() []EventType {
	out := make([]EventType, len(eventTypes))
	for i := range eventTypes {
		out[i] = EventType(i)
	}
	return out
}

// Valid reports whether t is a declared event type.
func (t EventType) Valid() bool { return int(t) < len(eventTypes) }

func (t EventType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("EventType(%d)", t)
	}
	return eventTypes[t].name
}

// Description returns a human readable sentence for t.
func (t EventType) Description() string {
	if !t.Valid() {
		return ""
	}
	return eventTypes[t].description
}

// Category returns the group t belongs to.
func (t EventType) Category() EventCategory {
	if !t.Valid() {
		return ""
	}
	return eventTypes[t].category
}

func (t EventType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid event type %d", t)
	}
	return []byte(t.String()), nil
}

func (t *EventType) UnmarshalText(b []byte) error {
	parsed, err := ParseEventType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseEventType resolves an event type from its name.
func ParseEventType(name string) (EventType, error) {
	for i, info := range eventTypes {
		if info.name == name {
			return EventType(i), nil
		}
	}
	return 0, Errorf(KindEvent, "unknown event type %q", name)
}

// MetadataName is the metadata key carrying the name of a Custom event.
const MetadataName = "name"

// Event is a notification delivered through the bus. Handlers receive
// copies; only metadata may be added before dispatch.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Type      EventType         `json:"type"`
	Data      string            `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEvent creates an event with a fresh id and the current time.
func NewEvent(t EventType, data string) Event {
	return Event{
		ID:        uuid.New(),
		Type:      t,
		Data:      data,
		Metadata:  make(map[string]string),
		Timestamp: time.Now(),
	}
}

// NewCustomEvent creates a Custom event carrying name in its metadata.
func NewCustomEvent(name, data string) Event {
	e := NewEvent(Custom, data)
	e.Metadata[MetadataName] = name
	return e
}

// SetMetadata adds or replaces a metadata entry.
func (e *Event) SetMetadata(key, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
}

// GetMetadata returns the metadata value for key.
func (e Event) GetMetadata(key string) (string, bool) {
	v, ok := e.Metadata[key]
	return v, ok
}

// WithMetadata returns a copy of e with the entry added.
func (e Event) WithMetadata(key, value string) Event {
	meta := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	e.Metadata = meta
	return e
}

// String satisfies lifecycle.Event.
func (e Event) String() string {
	if e.Type == Custom {
		if name, ok := e.Metadata[MetadataName]; ok {
			return fmt.Sprintf("Custom(%s): %s", name, e.Data)
		}
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Data)
}
