package form

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	theme "github.com/goliatone/go-theme"
)

// ManifestSelector is a theme.ThemeSelector over in-memory manifests.
type ManifestSelector struct {
	mu        sync.RWMutex
	manifests map[string]*theme.Manifest
	fallback  string
}

var _ theme.ThemeSelector = (*ManifestSelector)(nil)

// NewManifestSelector registers manifests by name. fallback names the theme
// used when a selection asks for none.
func NewManifestSelector(fallback string, manifests ...*theme.Manifest) *ManifestSelector {
	s := &ManifestSelector{manifests: make(map[string]*theme.Manifest), fallback: strings.TrimSpace(fallback)}
	for _, manifest := range manifests {
		s.Register(manifest)
	}
	return s
}

// Register adds or replaces a manifest.
func (s *ManifestSelector) Register(manifest *theme.Manifest) {
	if manifest == nil || strings.TrimSpace(manifest.Name) == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[manifest.Name] = manifest
	if s.fallback == "" {
		s.fallback = manifest.Name
	}
}

// Select implements theme.ThemeSelector. Unknown variants are ignored.
func (s *ManifestSelector) Select(name, variant string, _ ...theme.QueryOption) (*theme.Selection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.TrimSpace(name)
	if name == "" {
		name = s.fallback
	}
	manifest, ok := s.manifests[name]
	if !ok {
		return nil, fmt.Errorf("form: theme %q is not registered", name)
	}
	if _, ok := manifest.Variants[variant]; !ok {
		variant = ""
	}
	return &theme.Selection{Theme: manifest.Name, Variant: variant, Manifest: manifest}, nil
}

// Names lists the registered themes.
func (s *ManifestSelector) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.manifests))
	for name := range s.manifests {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ThemeTokens flattens the design tokens of a selection, variant tokens
// overriding the base set. Asset files are exposed as "asset.<key>" with
// the manifest prefix applied.
func ThemeTokens(selection *theme.Selection) map[string]string {
	if selection == nil || selection.Manifest == nil {
		return nil
	}
	manifest := selection.Manifest
	out := make(map[string]string, len(manifest.Tokens))
	for key, value := range manifest.Tokens {
		out[key] = value
	}
	addAssets(out, manifest.Assets.Prefix, manifest.Assets.Files)

	if variant, ok := manifest.Variants[selection.Variant]; ok && selection.Variant != "" {
		for key, value := range variant.Tokens {
			out[key] = value
		}
		prefix := variant.Assets.Prefix
		if prefix == "" {
			prefix = manifest.Assets.Prefix
		}
		addAssets(out, prefix, variant.Assets.Files)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func addAssets(out map[string]string, prefix string, files map[string]string) {
	prefix = strings.TrimRight(prefix, "/")
	for key, file := range files {
		if prefix != "" && !strings.HasPrefix(file, "/") {
			file = prefix + "/" + file
		}
		out["asset."+key] = file
	}
}
