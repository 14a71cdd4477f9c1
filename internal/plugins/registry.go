// Package plugins maps content-type keys to {chunker, extraction engine,
// formatter} bundles. The registry is compile-time: known plugin
// implementations are registered at startup and can be disabled by name from
// config; there is no filesystem discovery.
package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/meetscribe/backend/internal/chunker"
	"github.com/meetscribe/backend/internal/extraction"
	"github.com/meetscribe/backend/internal/formatter"
)

// FieldSpec describes one metadata or settings field.
type FieldSpec struct {
	Type        string `json:"type"` // string | int | float | bool
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
	Overridable bool   `json:"overridable,omitempty"` // may be overridden per-request
	Description string `json:"description,omitempty"`
}

// Plugin bundles the processing components for one content type.
type Plugin interface {
	Name() string
	MetadataSchema() map[string]FieldSpec
	SettingsSchema() map[string]FieldSpec
	// Configure applies user settings; unknown keys and non-overridable
	// fields are rejected. Call it on a Clone, never on the registered
	// singleton: it replaces the plugin's components in place.
	Configure(settings map[string]any) error
	// Clone returns an independent copy that Configure may mutate.
	Clone() Plugin
	Chunker() chunker.Chunker
	Engine() extraction.Engine
	Formatter() formatter.Formatter
}

// ContentTypeEducational is the default content type.
const (
	ContentTypeEducational = "educational"
	ContentTypeMeeting     = "meeting"
)

// Registry resolves content types to plugins.
type Registry struct {
	mu       sync.RWMutex
	plugins  map[string]Plugin
	disabled map[string]bool
}

// NewRegistry creates a registry with the given disabled plugin names.
func NewRegistry(disabled []string) *Registry {
	d := make(map[string]bool, len(disabled))
	for _, name := range disabled {
		d[name] = true
	}
	return &Registry{plugins: make(map[string]Plugin), disabled: d}
}

// Register adds a plugin. Registering two plugins under the same key is a
// configuration error and must fail at startup, not at request time.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.plugins[p.Name()]; exists {
		return fmt.Errorf("plugin %q already registered", p.Name())
	}
	r.plugins[p.Name()] = p
	return nil
}

// Get returns the plugin for a content type, or an error if unknown or
// disabled.
func (r *Registry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.disabled[name] {
		return nil, fmt.Errorf("plugin %q is disabled", name)
	}
	p, ok := r.plugins[name]
	if !ok {
		return nil, fmt.Errorf("no plugin registered for content type %q", name)
	}
	return p, nil
}

// List returns enabled plugin names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for name := range r.plugins {
		if !r.disabled[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// educationalKeys are metadata keys whose presence marks educational content;
// meetingKeys mark general working meetings.
var (
	educationalKeys = []string{"instructor", "course", "teacher", "class", "subject"}
	meetingKeys     = []string{"organizer", "attendees", "agenda"}
)

// Resolve picks a plugin from an explicit hint or by inspecting metadata
// keys. Records without a recognizable content type default to educational
// for backward compatibility.
func (r *Registry) Resolve(hint string, metadata map[string]string) (Plugin, error) {
	if hint != "" {
		return r.Get(hint)
	}
	for _, key := range educationalKeys {
		if _, ok := metadata[key]; ok {
			return r.Get(ContentTypeEducational)
		}
	}
	for _, key := range meetingKeys {
		if _, ok := metadata[key]; ok {
			return r.Get(ContentTypeMeeting)
		}
	}
	return r.Get(ContentTypeEducational)
}

// ResolveConfigured resolves a plugin and applies per-request settings to a
// private copy, leaving the registered singleton untouched. Empty settings
// return the shared instance.
func (r *Registry) ResolveConfigured(hint string, metadata map[string]string, settings map[string]any) (Plugin, error) {
	p, err := r.Resolve(hint, metadata)
	if err != nil {
		return nil, err
	}
	if len(settings) == 0 {
		return p, nil
	}
	configured := p.Clone()
	if err := configured.Configure(settings); err != nil {
		return nil, fmt.Errorf("plugin %q settings: %w", p.Name(), err)
	}
	return configured, nil
}
