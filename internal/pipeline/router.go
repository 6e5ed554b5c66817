package pipeline

import (
	"fmt"
	"sort"
)

// Router maps engine names to backend implementations for one pipeline stage.
// The active backend is chosen once at wiring time from deployment config;
// engine selection is never per-message.
type Router[T any] struct {
	stage    Stage
	backends map[string]T
	fallback string
}

// NewRouter creates a router for a stage with the given backends. The fallback
// name is used when a requested engine is not registered.
func NewRouter[T any](stage Stage, backends map[string]T, fallback string) *Router[T] {
	return &Router[T]{stage: stage, backends: backends, fallback: fallback}
}

// Route returns the backend registered under name, or the fallback backend.
func (r *Router[T]) Route(name string) (T, error) {
	if backend, ok := r.backends[name]; ok {
		return backend, nil
	}
	if backend, ok := r.backends[r.fallback]; ok {
		return backend, nil
	}
	var zero T
	return zero, fmt.Errorf("%s: no backend registered for engine %q", r.stage, name)
}

// Engines returns the registered backend names, sorted for stable listings.
func (r *Router[T]) Engines() []string {
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
