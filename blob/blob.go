// Package blob stores vault objects on the local filesystem.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/etnz/askwarren"
)

// ErrInvalidPath is returned for object paths escaping the store.
var ErrInvalidPath = errors.New("invalid object path")

// Store is an askwarren.ObjectStore rooted in a directory.
type Store struct {
	root    string
	baseURL string
}

var _ askwarren.ObjectStore = (*Store)(nil)

// New returns a store writing under root. Objects are served from baseURL.
func New(root, baseURL string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve object root %q: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create object root %q: %w", abs, err)
	}
	return &Store{root: abs, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// UploadPath is the object path of a user's vault document.
func UploadPath(uid, id, name string) string {
	return path.Join("user_uploads", uid, id+"_"+SanitizeName(name))
}

// ProfileImagePath is the object path of a user's profile picture.
func ProfileImagePath(uid string) string { return path.Join("user_uploads", uid, "profile_image") }

// UserPrefix is the prefix of every object owned by uid.
func UserPrefix(uid string) string { return path.Join("user_uploads", uid) + "/" }

// SanitizeName keeps the base name of a user supplied file name.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." || name == "/" || name == ".." {
		return "file"
	}
	return name
}

// resolve maps an object path to a file, refusing anything outside the root.
func (s *Store) resolve(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
	}
	clean := path.Clean(p)
	if clean == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

// Put writes r to path and returns the number of bytes written.
func (s *Store) Put(ctx context.Context, p string, r io.Reader) (int64, error) {
	file, err := s.resolve(p)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return 0, fmt.Errorf("cannot create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(file), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("cannot create object %q: %w", p, err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, readerWithContext{ctx, r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("cannot write object %q: %w", p, err)
	}
	if err := os.Rename(tmp.Name(), file); err != nil {
		return 0, fmt.Errorf("cannot write object %q: %w", p, err)
	}
	return n, nil
}

func (s *Store) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	file, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(file)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("cannot open object %q: %w", p, askwarren.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open object %q: %w", p, err)
	}
	return f, nil
}

// Delete removes the object. A missing object is not an error.
func (s *Store) Delete(ctx context.Context, p string) error {
	file, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("cannot delete object %q: %w", p, err)
	}
	return nil
}

func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	dir, err := s.resolve(prefix)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("cannot delete objects under %q: %w", prefix, err)
	}
	return nil
}

// URL returns baseURL followed by the escaped object path.
func (s *Store) URL(p string) string {
	parts := strings.Split(strings.TrimPrefix(path.Clean("/"+p), "/"), "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return s.baseURL + "/" + strings.Join(parts, "/")
}

// readerWithContext stops copying once ctx is done.
type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (r readerWithContext) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
