package event

import (
	"fmt"
	"sort"
	"sync"
)

// KindInfo describes a declared kind.
type KindInfo struct {
	// Tag is the type tag (e.g., "lobby.player_joined").
	Tag string

	// PayloadType is the Go type name of the payload.
	PayloadType string

	// Description explains the event's purpose.
	Description string
}

// Registry catalogues declared kinds so a tag is bound to exactly one
// payload type for the life of the process.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]KindInfo
}

// DefaultRegistry records every kind created with Define.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		kinds: make(map[string]KindInfo),
	}
}

// Register binds tag to payloadType. Registering the same pair again is a
// no-op; binding an existing tag to another payload type is an error.
func (r *Registry) Register(tag, payloadType, description string) error {
	if tag == "" {
		return ErrEmptyTag
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.kinds[tag]; ok {
		if existing.PayloadType != payloadType {
			return fmt.Errorf("%w: %s is bound to %s, not %s",
				ErrTagConflict, tag, existing.PayloadType, payloadType)
		}
		if description != "" {
			existing.Description = description
			r.kinds[tag] = existing
		}
		return nil
	}

	r.kinds[tag] = KindInfo{
		Tag:         tag,
		PayloadType: payloadType,
		Description: description,
	}
	return nil
}

// Describe attaches a description to an already registered tag.
func (r *Registry) Describe(tag, description string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.kinds[tag]
	if !ok {
		return false
	}
	info.Description = description
	r.kinds[tag] = info
	return true
}

// Get returns the kind registered under tag.
func (r *Registry) Get(tag string) (KindInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.kinds[tag]
	return info, ok
}

// Has reports whether tag is registered.
func (r *Registry) Has(tag string) bool {
	_, ok := r.Get(tag)
	return ok
}

// Tags returns all registered tags, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.kinds))
	for tag := range r.kinds {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
