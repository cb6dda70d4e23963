// Package upload extracts the uploaded audio file from a multipart request
// and stages it in temp storage. The original file extension is preserved
// (sanitized) so ffmpeg can sniff the container from the name.
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// ErrMissingAudio reports a multipart body without the audio file field.
var ErrMissingAudio = errors.New("no audio file in request")

// SizeLimitError reports a request body that exceeded the configured limit.
type SizeLimitError struct {
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("upload exceeds %d byte limit", e.Limit)
}

// SavedFile describes an uploaded audio file staged on disk.
type SavedFile struct {
	Path     string // temp storage path, owned by the caller
	Filename string // client-supplied name, sanitized
	Size     int64
}

// SaveAudio walks the request's multipart body part by part and writes the
// file carried in `field` to a uuid-named file in dir. Driving the reader
// directly (instead of ParseMultipartForm) keeps a truncated body
// distinguishable from a body that simply lacks the field: truncation
// surfaces as a parse error, never as ErrMissingAudio. The caller is
// responsible for deleting the returned path. The request body should
// already be wrapped with http.MaxBytesReader; overruns surface as
// *SizeLimitError.
func SaveAudio(r *http.Request, field, dir string) (*SavedFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, ErrMissingAudio
		}
		return nil, fmt.Errorf("malformed multipart body: %w", err)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, ErrMissingAudio
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, &SizeLimitError{Limit: maxErr.Limit}
			}
			return nil, fmt.Errorf("malformed multipart body: %w", err)
		}

		if part.FormName() != field || part.FileName() == "" {
			part.Close()
			continue
		}

		saved, err := stagePart(part, dir)
		part.Close()
		return saved, err
	}
}

// stagePart copies one multipart file part to a fresh uuid-named file.
func stagePart(part *multipart.Part, dir string) (*SavedFile, error) {
	name := sanitizeFilename(part.FileName())
	destPath := filepath.Join(dir, "overdub_in_"+uuid.NewString()+filepath.Ext(name))

	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("cannot stage upload: %w", err)
	}

	size, err := io.Copy(dest, part)
	closeErr := dest.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)

		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return nil, &SizeLimitError{Limit: maxErr.Limit}
		case errors.Is(err, io.ErrUnexpectedEOF):
			// Body ended inside the part, before the closing boundary.
			return nil, fmt.Errorf("malformed multipart body: %w", err)
		default:
			return nil, fmt.Errorf("cannot stage upload: %w", err)
		}
	}

	return &SavedFile{Path: destPath, Filename: name, Size: size}, nil
}

// sanitizeFilename strips path components and control characters from a
// client-supplied filename.
func sanitizeFilename(s string) string {
	s = filepath.Base(filepath.ToSlash(s))

	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "audio"
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}
