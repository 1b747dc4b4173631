// Package schema supplies form configurations and their ordered field
// descriptors.
package schema

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/pkg/model"
)

// ErrFormNotFound is returned when no form matches the requested id.
var ErrFormNotFound = errors.New("schema: form not found")

// Definition is a form and its fields in render order.
type Definition struct {
	Form   model.FormConfig        `json:"form" yaml:"form"`
	Fields []model.FieldDescriptor `json:"fields" yaml:"fields"`
}

// Provider resolves a form by id or alias.
type Provider interface {
	Definition(ctx context.Context, formID string) (Definition, error)
}

// StaticProvider serves definitions held in memory.
type StaticProvider struct {
	mu    sync.RWMutex
	forms map[string]Definition
}

// NewStaticProvider registers defs under their id and alias.
func NewStaticProvider(defs ...Definition) *StaticProvider {
	p := &StaticProvider{forms: make(map[string]Definition)}
	for _, def := range defs {
		_ = p.Add(def)
	}
	return p
}

// Add registers def. Ids and aliases must be unique.
func (p *StaticProvider) Add(def Definition) error {
	def = normaliseDefinition(def)
	if def.Form.ID == "" {
		return errors.New("schema: form id is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.forms == nil {
		p.forms = make(map[string]Definition)
	}
	for _, key := range lookupKeys(def.Form) {
		if _, exists := p.forms[key]; exists {
			return fmt.Errorf("schema: duplicate form %q", key)
		}
	}
	for _, key := range lookupKeys(def.Form) {
		p.forms[key] = def
	}
	return nil
}

// Definition implements Provider. The returned field slice is a copy.
func (p *StaticProvider) Definition(_ context.Context, formID string) (Definition, error) {
	p.mu.RLock()
	def, ok := p.forms[strings.TrimSpace(formID)]
	p.mu.RUnlock()
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrFormNotFound, formID)
	}
	def.Fields = append([]model.FieldDescriptor(nil), def.Fields...)
	return def, nil
}

// IDs returns the registered form ids in sorted order.
func (p *StaticProvider) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[string]struct{}, len(p.forms))
	out := make([]string, 0, len(p.forms))
	for _, def := range p.forms {
		if _, ok := seen[def.Form.ID]; ok {
			continue
		}
		seen[def.Form.ID] = struct{}{}
		out = append(out, def.Form.ID)
	}
	sort.Strings(out)
	return out
}

// LoadFS walks fsys and parses JSON or YAML form documents into a
// StaticProvider. A nil fsys yields an empty provider.
func LoadFS(fsys fs.FS) (*StaticProvider, error) {
	provider := NewStaticProvider()
	if fsys == nil {
		return provider, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		src := SourceFromFS(path)
		if entry.IsDir() || Format(src) == "" {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}
		doc, err := NewDocument(src, data)
		if err != nil {
			return err
		}
		defs, err := doc.Definitions()
		if err != nil {
			return err
		}
		for _, def := range defs {
			if err := provider.Add(def); err != nil {
				return fmt.Errorf("%w (file %s)", err, path)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return provider, nil
}

func validateDefinition(def Definition, source string) error {
	seen := make(map[string]struct{}, len(def.Fields))
	for i, field := range def.Fields {
		if strings.TrimSpace(string(field.Type)) == "" {
			return fmt.Errorf("schema: form %q (file %s) field %d has no type", def.Form.ID, source, i)
		}
		if field.Name == "" {
			continue
		}
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("schema: form %q (file %s) defines duplicate field %q", def.Form.ID, source, field.Name)
		}
		seen[field.Name] = struct{}{}
	}
	return nil
}

// normaliseDefinition trims identifiers and orders fields by their sorting
// value, keeping declaration order for ties.
func normaliseDefinition(def Definition) Definition {
	def.Form.ID = strings.TrimSpace(def.Form.ID)
	def.Form.Alias = strings.TrimSpace(def.Form.Alias)
	fields := append([]model.FieldDescriptor(nil), def.Fields...)
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].Sorting < fields[j].Sorting
	})
	def.Fields = fields
	return def
}

func lookupKeys(form model.FormConfig) []string {
	keys := []string{form.ID}
	if form.Alias != "" && form.Alias != form.ID {
		keys = append(keys, form.Alias)
	}
	return keys
}
