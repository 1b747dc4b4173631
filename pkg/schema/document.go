package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Document is the raw payload of one form file and its origin.
type Document struct {
	source Source
	raw    []byte
}

// NewDocument wraps raw. Empty payloads are rejected.
func NewDocument(src Source, raw []byte) (Document, error) {
	if src == nil {
		return Document{}, errors.New("schema: source is required")
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return Document{}, fmt.Errorf("schema: file %s is empty", src.Location())
	}
	return Document{source: src, raw: append([]byte(nil), raw...)}, nil
}

// Source returns the origin of the document.
func (d Document) Source() Source {
	return d.source
}

// Location returns the origin path, or "" for the zero Document.
func (d Document) Location() string {
	if d.source == nil {
		return ""
	}
	return d.source.Location()
}

// Definitions decodes the document. Map keys become form ids when a
// definition omits one.
func (d Document) Definitions() ([]Definition, error) {
	var file documentFile
	var err error
	switch Format(d.source) {
	case "json":
		err = json.Unmarshal(d.raw, &file)
	case "yaml":
		err = yaml.Unmarshal(d.raw, &file)
	default:
		return nil, fmt.Errorf("schema: unsupported document %s", d.Location())
	}
	if err != nil {
		return nil, fmt.Errorf("schema: parse %s: %w", d.Location(), err)
	}

	ids := make([]string, 0, len(file.Forms))
	for id := range file.Forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	defs := make([]Definition, 0, len(ids))
	for _, id := range ids {
		def := file.Forms[id]
		if strings.TrimSpace(def.Form.ID) == "" {
			def.Form.ID = strings.TrimSpace(id)
		}
		if err := validateDefinition(def, d.Location()); err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, nil
}

type documentFile struct {
	Forms map[string]Definition `json:"forms" yaml:"forms"`
}
