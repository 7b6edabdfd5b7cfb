package askwarren

import (
	"context"
	"errors"
	"io"
)

// this file declares the external collaborators.

// ErrNotFound is returned by stores when a record or object does not exist.
var ErrNotFound = errors.New("not found")

// Session is an authenticated user session.
type Session struct {
	Token     string `json:"token"`
	UID       string `json:"uid"`
	ExpiresAt int64  `json:"expiresAt"` // unix milliseconds
}

// AuthProvider authenticates users and owns their accounts.
type AuthProvider interface {
	SignUp(ctx context.Context, name, email, password, confirm string) (*UserProfile, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context, token string) error
	// Authenticate resolves a session token into the verified user it belongs to.
	Authenticate(ctx context.Context, token string) (*UserProfile, error)
	DeleteAccount(ctx context.Context, uid string) error
}

// DocumentStore persists the per-user records.
type DocumentStore interface {
	GetProfile(uid string) (*UserProfile, error)
	SaveProfile(p *UserProfile) error
	DeleteProfile(uid string) error

	ListWatchlist(uid string) ([]WatchlistItem, error)
	SaveWatchlistItem(item *WatchlistItem) error
	DeleteWatchlistItem(uid, id string) error

	ListFiles(uid string) ([]FileRecord, error)
	GetFile(uid, id string) (*FileRecord, error)
	SaveFile(f *FileRecord) error
	DeleteFile(uid, id string) error
}

// ObjectStore holds the binary content of vault documents and profile pictures.
type ObjectStore interface {
	Put(ctx context.Context, path string, r io.Reader) (size int64, err error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	// DeletePrefix removes every object under prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	// URL returns the address the object can be downloaded from.
	URL(path string) string
}
