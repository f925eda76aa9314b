package upload

import (
	"bytes"
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

// Kind names an acquisition path
type Kind string

// Acquisition paths
const (
	KindFile   Kind = "file"
	KindDrop   Kind = "drop"
	KindCamera Kind = "camera"
)

// ParseKind maps a form value to a Kind, defaulting to KindFile
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindDrop:
		return KindDrop
	case KindCamera:
		return KindCamera
	default:
		return KindFile
	}
}

// Source is one way of obtaining an image from the user
type Source interface {
	Kind() Kind
	Acquire(ctx context.Context) (File, error)
}

// FileInput is the native file picker; the first selected file wins
type FileInput struct {
	Files []File
}

// Kind implements Source
func (FileInput) Kind() Kind { return KindFile }

// Acquire implements Source
func (s FileInput) Acquire(context.Context) (File, error) {
	return first(s.Files)
}

// DragDrop is a drop onto the drop zone; the first dropped file wins
type DragDrop struct {
	Files []File
}

// Kind implements Source
func (DragDrop) Kind() Kind { return KindDrop }

// Acquire implements Source
func (s DragDrop) Acquire(context.Context) (File, error) {
	return first(s.Files)
}

func first(files []File) (File, error) {
	if len(files) == 0 {
		return File{}, ErrNoFile
	}
	return files[0], nil
}

// FromMultipart wraps an uploaded form file. The declared type is the part's
// Content-Type header as sent by the browser.
func FromMultipart(fh *multipart.FileHeader) File {
	return File{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes wraps an in-memory file
func FromBytes(name, contentType string, data []byte) File {
	return File{
		Name:        name,
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromPath wraps a local file. The declared type comes from the extension,
// falling back to content sniffing.
func FromPath(path string) (File, error) {
	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		f, err := os.Open(path)
		if err != nil {
			return File{}, err
		}
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		_ = f.Close()
		contentType = http.DetectContentType(head[:n])
	}
	return File{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}
