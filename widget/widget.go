// Package widget implements Fanray's widget composition engine: a catalog of
// installable widget types discovered from a filesystem layout, a registry
// decoding polymorphic widget payloads, and a composition service resolving
// named layout areas into ordered widget instances with cache-aside reads.
package widget

import (
	"encoding/json"
	"sync"

	goerrors "github.com/goliatone/go-errors"
)

// Widget is a configured, renderable unit of content. Concrete widget types
// embed BaseWidget and add their own configuration fields.
type Widget interface {
	Base() *BaseWidget
}

// BaseWidget carries the identity every widget instance shares. Folder is the
// type discriminator: it names both the widget's directory in the catalog and
// its decoder in the registry.
type BaseWidget struct {
	ID     int64  `json:"id"`
	AreaID string `json:"areaId"`
	Title  string `json:"title"`
	Folder string `json:"folder"`
}

// Base returns the embedded identity, letting any concrete widget satisfy the
// Widget interface through embedding.
func (b *BaseWidget) Base() *BaseWidget { return b }

// Factory returns a new widget of one concrete type with its configuration
// defaults applied.
type Factory func() Widget

// Registry maps folder discriminators to widget factories. A payload read
// back from storage is decoded into the concrete type its folder names;
// there is no runtime type resolution by name.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register binds a folder discriminator to a factory. Registering the same
// folder twice replaces the previous binding.
func (r *Registry) Register(folder string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[folder] = factory
}

// New returns a widget of the given folder's type with defaults applied and
// Folder set.
func (r *Registry) New(folder string) (Widget, error) {
	r.mu.RLock()
	factory, ok := r.factories[folder]
	r.mu.RUnlock()

	if !ok {
		return nil, NewUnknownFolder(folder)
	}

	w := factory()
	w.Base().Folder = folder
	return w, nil
}

// Decode rehydrates a serialized payload into the concrete type the folder
// discriminator names.
func (r *Registry) Decode(folder string, data []byte) (Widget, error) {
	w, err := r.New(folder)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, w); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode widget payload").
			WithMetadata(map[string]any{"folder": folder})
	}

	return w, nil
}

// DecodeAny rehydrates a payload whose folder is not known up front by
// probing the serialized BaseWidget first.
func (r *Registry) DecodeAny(data []byte) (Widget, error) {
	var probe BaseWidget
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to probe widget payload")
	}
	return r.Decode(probe.Folder, data)
}
