package schema

import (
	"path/filepath"
	"strings"
)

// Source identifies where a form document was read from.
type Source interface {
	Kind() SourceKind
	Location() string
}

// SourceKind enumerates the places form documents are loaded from.
type SourceKind string

const (
	SourceKindFile SourceKind = "file"
	SourceKindFS   SourceKind = "fs"
)

type fileSource struct {
	path string
}

func (s fileSource) Location() string { return s.path }
func (s fileSource) Kind() SourceKind { return SourceKindFile }

// SourceFromFile returns a Source pointing to a file path.
func SourceFromFile(path string) Source {
	return fileSource{path: filepath.Clean(path)}
}

type fsSource struct {
	name string
}

func (s fsSource) Location() string { return s.name }
func (s fsSource) Kind() SourceKind { return SourceKindFS }

// SourceFromFS returns a Source naming an entry inside an fs.FS.
func SourceFromFS(name string) Source {
	return fsSource{name: name}
}

// Format reports the document encoding implied by the location.
func Format(src Source) string {
	if src == nil {
		return ""
	}
	switch strings.ToLower(filepath.Ext(src.Location())) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	}
	return ""
}
