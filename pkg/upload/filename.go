package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const forbiddenNameChars = `/\:*?"<>|`

// SanitizeFilename reduces a client supplied name to a safe base name. It
// reports false when nothing usable remains.
func SanitizeFilename(name string) (string, bool) {
	name = norm.NFC.String(name)
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	lastSpace := false
	for _, r := range name {
		switch {
		case r == unicode.ReplacementChar, unicode.IsControl(r), unicode.Is(unicode.Cf, r):
			continue
		case strings.ContainsRune(forbiddenNameChars, r):
			continue
		case unicode.IsSpace(r):
			if lastSpace {
				continue
			}
			lastSpace = true
			b.WriteRune(' ')
			continue
		}
		lastSpace = false
		b.WriteRune(r)
	}

	clean := strings.TrimRight(strings.TrimLeft(b.String(), " "), " .")
	if clean == "" || strings.HasPrefix(clean, ".") {
		return "", false
	}
	return clean, true
}

// Extension returns the lower-cased extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// UniqueName returns name unchanged when it does not exist in dir. Otherwise
// it appends `__<n>` to the base name, where n is one more than the highest
// suffix already present for the same base and extension, and at least 2.
func UniqueName(dir, name string) (string, error) {
	if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
		return name, nil
	} else if err != nil {
		return "", fmt.Errorf("upload: stat %s: %w", name, err)
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `__([0-9]+)` + regexp.QuoteMeta(ext) + `$`)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("upload: scan %s: %w", dir, err)
	}
	offset := 1
	for _, entry := range entries {
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		if n, err := strconv.Atoi(match[1]); err == nil && n > offset {
			offset = n
		}
	}
	return base + "__" + strconv.Itoa(offset+1) + ext, nil
}

// ReadableSize formats a byte count for user-facing messages.
func ReadableSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
