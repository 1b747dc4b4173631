package render

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Translator resolves user-facing strings. Arguments are applied with
// fmt-style verbs contained in the catalog entry.
type Translator interface {
	Translate(locale, key string, args ...any) (string, error)
}

// MissingTranslationHandler decides the text used when a key cannot be
// resolved.
type MissingTranslationHandler func(locale, key string, args []any, err error) string

var (
	// ErrMissingTranslator is reported when no translator is configured.
	ErrMissingTranslator = errors.New("render: translator is not configured")
	// ErrMissingTranslation is reported when a catalog has no entry for a key.
	ErrMissingTranslation = errors.New("render: missing translation")
)

// DefaultLocale is used when a request carries no locale or the requested
// locale has no catalog.
const DefaultLocale = "en"

//go:embed translations/*.yaml
var embeddedTranslations embed.FS

// Catalog is a Translator backed by nested YAML documents, one per locale.
// Keys are addressed with dots ("ERR.mandatory").
type Catalog struct {
	mu       sync.RWMutex
	fallback string
	entries  map[string]map[string]string
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		fallback: DefaultLocale,
		entries:  make(map[string]map[string]string),
	}
}

// DefaultCatalog returns a catalog preloaded with the embedded translations.
func DefaultCatalog() *Catalog {
	catalog := NewCatalog()
	if err := catalog.LoadFS(embeddedTranslations); err != nil {
		panic(fmt.Sprintf("render: embedded translations: %v", err))
	}
	return catalog
}

// LoadFS reads every `<locale>.yaml` file in fsys. Entries loaded later win.
func (c *Catalog) LoadFS(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(path.Ext(p))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("render: read catalog %s: %w", p, err)
		}
		locale := strings.TrimSuffix(path.Base(p), path.Ext(p))
		return c.Load(locale, data)
	})
}

// Load merges a YAML document into the catalog for locale.
func (c *Catalog) Load(locale string, data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("render: parse catalog %q: %w", locale, err)
	}
	flat := make(map[string]string)
	flatten("", doc, flat)

	c.mu.Lock()
	defer c.mu.Unlock()
	locale = normalizeLocale(locale)
	if c.entries[locale] == nil {
		c.entries[locale] = make(map[string]string, len(flat))
	}
	for key, value := range flat {
		c.entries[locale][key] = value
	}
	return nil
}

// Set adds or replaces a single entry.
func (c *Catalog) Set(locale, key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	locale = normalizeLocale(locale)
	if c.entries[locale] == nil {
		c.entries[locale] = make(map[string]string)
	}
	c.entries[locale][key] = value
}

// Translate implements Translator. Lookups fall back from "de-CH" to "de" to
// the default locale.
func (c *Catalog) Translate(locale, key string, args ...any) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, candidate := range localeChain(locale, c.fallback) {
		entries := c.entries[candidate]
		if entries == nil {
			continue
		}
		if msg, ok := entries[key]; ok {
			if len(args) == 0 {
				return msg, nil
			}
			return fmt.Sprintf(msg, args...), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrMissingTranslation, key)
}

// Translate resolves key through t, routing failures through onMissing. It
// never returns an empty string for a non-empty key.
func Translate(t Translator, locale, key string, onMissing MissingTranslationHandler, args ...any) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	if onMissing == nil {
		onMissing = missingTranslationDefault
	}
	if t == nil {
		return onMissing(locale, key, args, ErrMissingTranslator)
	}
	msg, err := t.Translate(locale, key, args...)
	if err != nil || strings.TrimSpace(msg) == "" {
		return onMissing(locale, key, args, err)
	}
	return msg
}

func missingTranslationDefault(_ string, key string, args []any, _ error) string {
	if len(args) == 0 {
		return key
	}
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		parts = append(parts, fmt.Sprint(arg))
	}
	return key + " (" + strings.Join(parts, ", ") + ")"
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for key, value := range in {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		switch v := value.(type) {
		case map[string]any:
			flatten(full, v, out)
		case nil:
			out[full] = ""
		default:
			out[full] = fmt.Sprint(v)
		}
	}
}

func normalizeLocale(locale string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(locale), "_", "-"))
}

func localeChain(locale, fallback string) []string {
	locale = normalizeLocale(locale)
	var chain []string
	if locale != "" {
		chain = append(chain, locale)
		if idx := strings.Index(locale, "-"); idx > 0 {
			chain = append(chain, locale[:idx])
		}
	}
	return append(chain, fallback)
}
