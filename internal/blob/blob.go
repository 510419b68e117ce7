// Package blob stores uploaded documents and hands back retrievable URLs.
package blob

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Metadata describes the object being stored.
type Metadata struct {
	ApplicantID string
	DocumentID  string
	Name        string
	MediaType   string
}

// Handle locates a stored object. DeleteHandle is opaque to callers.
type Handle struct {
	URL          string `json:"url"`
	DeleteHandle string `json:"delete_handle"`
}

// Store is an object store for document bytes.
type Store interface {
	Put(ctx context.Context, data []byte, meta Metadata) (Handle, error)
	Delete(ctx context.Context, deleteHandle string) error
}

// Local stores objects as files under a root directory.
type Local struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(dir string) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "blob: resolve %s", dir)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, eris.Wrapf(err, "blob: create %s", abs)
	}
	return &Local{root: abs}, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "unnamed"
	}
	return s
}

// Put writes data to <root>/<applicant>/<uuid>-<name>.
func (l *Local) Put(ctx context.Context, data []byte, meta Metadata) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return Handle{}, eris.Wrap(err, "blob: put")
	}
	key := filepath.Join(sanitize(meta.ApplicantID), uuid.NewString()+"-"+sanitize(meta.Name))
	path := filepath.Join(l.root, key)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return Handle{}, eris.Wrap(err, "blob: create applicant dir")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return Handle{}, eris.Wrapf(err, "blob: write %s", key)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return Handle{URL: u.String(), DeleteHandle: filepath.ToSlash(key)}, nil
}

// Delete removes the object. Deleting a missing object is not an error.
func (l *Local) Delete(ctx context.Context, deleteHandle string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "blob: delete")
	}
	path, err := l.resolve(deleteHandle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "blob: delete %s", deleteHandle)
	}
	return nil
}

func (l *Local) resolve(handle string) (string, error) {
	if handle == "" {
		return "", eris.New("blob: empty handle")
	}
	path := filepath.Join(l.root, filepath.FromSlash(handle))
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", eris.Errorf("blob: handle %q escapes root", handle)
	}
	return path, nil
}
