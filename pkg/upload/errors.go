package upload

import (
	"errors"
	"fmt"
)

// RejectKind classifies why a posted file was refused.
type RejectKind string

const (
	KindFilename    RejectKind = "filename"
	KindTooLarge    RejectKind = "too_large"
	KindSizeLimit   RejectKind = "size_limit"
	KindPartial     RejectKind = "partial"
	KindTransport   RejectKind = "transport"
	KindFileType    RejectKind = "filetype"
	KindImageWidth  RejectKind = "image_width"
	KindImageHeight RejectKind = "image_height"
)

// RejectError is a validation failure for one posted file. Args feed the
// translated message.
type RejectError struct {
	Field string
	Kind  RejectKind
	Args  []any
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("upload %q rejected: %s", e.Field, e.Kind)
}

// TranslationKey returns the catalog key of the user-facing message.
func (e *RejectError) TranslationKey() string {
	return "ERR.upload." + string(e.Kind)
}

// ErrNoFile is returned by Accept when no file was selected.
var ErrNoFile = errors.New("upload: no file posted")

func reject(field string, kind RejectKind, args ...any) error {
	return &RejectError{Field: field, Kind: kind, Args: args}
}
