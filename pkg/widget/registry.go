package widget

import (
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/pkg/model"
)

// Factory builds the widget for a field.
type Factory func(field model.FieldDescriptor, deps *Deps) Widget

// Registry maps field types to widget factories. Types without a factory
// (captcha, anything unknown) are skipped during form assembly.
type Registry struct {
	mu        sync.RWMutex
	factories map[model.FieldType]Factory
}

// NewRegistry constructs a registry with the built-in widget types
// registered.
func NewRegistry() *Registry {
	reg := &Registry{factories: make(map[model.FieldType]Factory)}
	reg.registerBuiltins()
	return reg
}

// Register adds or replaces the factory for a field type.
func (r *Registry) Register(fieldType model.FieldType, factory Factory) {
	if r == nil || factory == nil {
		return
	}
	trimmed := model.FieldType(strings.TrimSpace(string(fieldType)))
	if trimmed == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.factories == nil {
		r.factories = make(map[model.FieldType]Factory)
	}
	r.factories[trimmed] = factory
}

// Has reports whether fieldType resolves to a widget.
func (r *Registry) Has(fieldType model.FieldType) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[fieldType]
	return ok
}

// Types returns the registered field types in sorted order.
func (r *Registry) Types() []model.FieldType {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	out := make([]model.FieldType, 0, len(r.factories))
	for fieldType := range r.factories {
		out = append(out, fieldType)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WidgetFor builds the widget for field. The boolean is false when the type
// is not registered.
func (r *Registry) WidgetFor(field model.FieldDescriptor, deps *Deps) (Widget, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	factory, ok := r.factories[field.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return factory(field, deps), true
}

func (r *Registry) registerBuiltins() {
	r.Register(model.FieldTypeText, newText)
	r.Register(model.FieldTypeTextarea, newText)
	r.Register(model.FieldTypePassword, newPassword)
	r.Register(model.FieldTypeUpload, newUpload)
	r.Register(model.FieldTypeRadio, newChoice)
	r.Register(model.FieldTypeCheckbox, newChoice)
	r.Register(model.FieldTypeSelect, newChoice)
	r.Register(model.FieldTypeHidden, newHidden)
	r.Register(model.FieldTypeRange, newRange)
	r.Register(model.FieldTypeExplanation, newStatic)
	r.Register(model.FieldTypeHTML, newStatic)
	r.Register(model.FieldTypeFieldsetStart, newStatic)
	r.Register(model.FieldTypeFieldsetStop, newStatic)
	r.Register(model.FieldTypeSubmit, newStatic)
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the shared registry holding the built-in types.
func DefaultRegistry() *Registry { return defaultRegistry }

// WidgetFor resolves field through the default registry.
func WidgetFor(field model.FieldDescriptor, deps *Deps) (Widget, bool) {
	return defaultRegistry.WidgetFor(field, deps)
}
