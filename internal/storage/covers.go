// Package storage saves uploaded book covers on the local filesystem and
// maps them to public URLs served by the HTTP server.
package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported image type")
)

var coverExt = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// CoverStore writes covers into Dir and names them <book id>-<uuid><ext>.
type CoverStore struct {
	Dir      string
	BaseURL  string
	MaxBytes int64
}

func NewCoverStore(dir, baseURL string, maxBytes int64) (*CoverStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CoverStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), MaxBytes: maxBytes}, nil
}

// Save reads at most MaxBytes from r, checks the image type from its magic
// bytes and writes the file.  It returns the public URL of the stored cover.
func (s *CoverStore) Save(bookID uint64, r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.MaxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > s.MaxBytes {
		return "", ErrTooLarge
	}
	ext, ok := coverExtension(data)
	if !ok {
		return "", ErrUnsupportedType
	}
	name := fmt.Sprintf("%d-%s%s", bookID, uuid.NewString(), ext)
	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.Dir, name)); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return s.BaseURL + "/" + name, nil
}

// Remove deletes the file behind a URL previously returned by Save.  URLs
// outside BaseURL are ignored.
func (s *CoverStore) Remove(url string) error {
	name, ok := strings.CutPrefix(url, s.BaseURL+"/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) {
		return nil
	}
	err := os.Remove(filepath.Join(s.Dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// coverExtension detects the image type of data from its magic bytes and
// returns the file extension for accepted cover formats.
func coverExtension(data []byte) (string, bool) {
	mt := mimetype.Detect(data)
	for mime, ext := range coverExt {
		if mt.Is(mime) {
			return ext, true
		}
	}
	return "", false
}
