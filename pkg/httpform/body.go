package httpform

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

const maxFileSizeField = "MAX_FILE_SIZE"

// body is a parsed request body. Files point to spooled temp files that the
// handler removes once the request is done.
type body struct {
	fields url.Values
	files  map[string]*model.PostedFile
}

func (b *body) cleanup() {
	for _, file := range b.files {
		if file.TempPath != "" {
			_ = os.Remove(file.TempPath)
		}
	}
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// readMultipart streams the body part by part so file limits apply while
// reading. A MAX_FILE_SIZE value sent before a file caps that file; the
// body cap set through http.MaxBytesReader ends parsing.
func (h *Handler) readMultipart(r *http.Request) (*body, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("httpform: multipart: %w", err)
	}
	out := &body{fields: url.Values{}, files: map[string]*model.PostedFile{}}
	var formLimit int64

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			if tooLarge(err) {
				return out, nil
			}
			out.cleanup()
			return nil, fmt.Errorf("httpform: multipart: %w", err)
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}
		if part.FileName() == "" && part.Header.Get("Content-Type") == "" {
			value, err := readValue(part, h.maxFieldSize)
			part.Close()
			if err != nil {
				if tooLarge(err) {
					return out, nil
				}
				out.cleanup()
				return nil, err
			}
			out.fields.Add(name, value)
			if name == maxFileSizeField {
				formLimit, _ = strconv.ParseInt(strings.TrimSpace(value), 10, 64)
			}
			continue
		}

		file, stop := h.spool(part, formLimit)
		part.Close()
		if previous, ok := out.files[name]; ok && previous.TempPath != "" {
			_ = os.Remove(previous.TempPath)
		}
		out.files[name] = file
		if stop {
			return out, nil
		}
	}
}

// spool copies a file part to a temp file. stop reports that the body cap
// was hit and no further parts can be read.
func (h *Handler) spool(part *multipart.Part, formLimit int64) (*model.PostedFile, bool) {
	file := &model.PostedFile{
		Field:       part.FormName(),
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Genuine:     true,
	}

	tmp, err := os.CreateTemp(h.tempDir, "formflow-*")
	if err != nil {
		h.logger.Errorw("spool upload failed", "field", file.Field, "error", err)
		file.ErrorCode = model.UploadTransport
		_, _ = io.Copy(io.Discard, part)
		return file, false
	}

	var src io.Reader = part
	if formLimit > 0 {
		src = io.LimitReader(part, formLimit+1)
	}
	n, err := io.Copy(tmp, src)
	closeErr := tmp.Close()
	file.Size = n

	switch {
	case err != nil && tooLarge(err):
		file.ErrorCode = model.UploadIniSize
	case err != nil:
		file.ErrorCode = model.UploadPartial
	case closeErr != nil:
		file.ErrorCode = model.UploadTransport
	case formLimit > 0 && n > formLimit:
		file.ErrorCode = model.UploadFormSize
		if _, err := io.Copy(io.Discard, part); err != nil && tooLarge(err) {
			_ = os.Remove(tmp.Name())
			return file, true
		}
	case file.Filename == "" && n == 0:
		file.ErrorCode = model.UploadNoFile
	}

	if file.ErrorCode != model.UploadOK {
		_ = os.Remove(tmp.Name())
		return file, file.ErrorCode == model.UploadIniSize
	}
	file.TempPath = tmp.Name()
	return file, false
}

func readValue(part *multipart.Part, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("httpform: field %q exceeds %d bytes", part.FormName(), limit)
	}
	return string(data), nil
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
