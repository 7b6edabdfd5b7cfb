package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/etnz/askwarren"
	"github.com/timshannon/badgerhold/v4"
)

// ErrEmailTaken is returned when creating a user with an email already in use.
var ErrEmailTaken = errors.New("email already registered")

// User holds the credentials of an account. Its public part is the UserProfile.
type User struct {
	UID          string
	Email        string // lower case
	PasswordHash []byte
	GoogleID     string
	Verified     bool
	CreatedAt    int64 // unix milliseconds
}

// Token is a single use token sent by mail.
type Token struct {
	Token     string
	UID       string
	Purpose   string
	ExpiresAt int64 // unix milliseconds
}

// NormalizeEmail is the form emails are stored and looked up in.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

// CreateUser stores a new user, emails are unique.
func (s *Store) CreateUser(u *User) error {
	u.Email = NormalizeEmail(u.Email)
	if _, err := s.UserByEmail(u.Email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, askwarren.ErrNotFound) {
		return err
	}
	if err := s.db.Insert(u.UID, u); err != nil {
		return fmt.Errorf("cannot create user %q: %w", u.UID, err)
	}
	return nil
}

func (s *Store) SaveUser(u *User) error {
	u.Email = NormalizeEmail(u.Email)
	if err := s.db.Upsert(u.UID, u); err != nil {
		return fmt.Errorf("cannot save user %q: %w", u.UID, err)
	}
	return nil
}

func (s *Store) User(uid string) (*User, error) {
	var u User
	if err := s.get(uid, &u); err != nil {
		return nil, fmt.Errorf("cannot get user %q: %w", uid, err)
	}
	return &u, nil
}

func (s *Store) UserByEmail(email string) (*User, error) {
	return s.findUser("Email", NormalizeEmail(email))
}

func (s *Store) UserByGoogleID(id string) (*User, error) {
	return s.findUser("GoogleID", id)
}

func (s *Store) findUser(field, value string) (*User, error) {
	var users []User
	if err := s.db.Find(&users, badgerhold.Where(field).Eq(value).Limit(1)); err != nil {
		return nil, fmt.Errorf("cannot find user: %w", err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("cannot find user by %s: %w", strings.ToLower(field), askwarren.ErrNotFound)
	}
	return &users[0], nil
}

// DeleteUser removes the user with its sessions and tokens.
func (s *Store) DeleteUser(uid string) error {
	if err := s.DeleteSessions(uid); err != nil {
		return err
	}
	if err := s.db.DeleteMatching(&Token{}, badgerhold.Where("UID").Eq(uid)); err != nil {
		return fmt.Errorf("cannot delete tokens of %q: %w", uid, err)
	}
	if err := s.del(uid, &User{}); err != nil {
		return fmt.Errorf("cannot delete user %q: %w", uid, err)
	}
	return nil
}

func (s *Store) SaveSession(sess *askwarren.Session) error {
	if err := s.db.Upsert(sess.Token, sess); err != nil {
		return fmt.Errorf("cannot save session: %w", err)
	}
	return nil
}

func (s *Store) Session(token string) (*askwarren.Session, error) {
	var sess askwarren.Session
	if err := s.get(token, &sess); err != nil {
		return nil, fmt.Errorf("cannot get session: %w", err)
	}
	return &sess, nil
}

// DeleteSessions signs the user out everywhere.
func (s *Store) DeleteSessions(uid string) error {
	if err := s.db.DeleteMatching(&askwarren.Session{}, badgerhold.Where("UID").Eq(uid)); err != nil {
		return fmt.Errorf("cannot delete sessions of %q: %w", uid, err)
	}
	return nil
}

func (s *Store) DeleteSession(token string) error {
	if err := s.del(token, &askwarren.Session{}); err != nil {
		return fmt.Errorf("cannot delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes sessions and tokens expired at now (unix milliseconds).
func (s *Store) DeleteExpired(now int64) error {
	if err := s.db.DeleteMatching(&askwarren.Session{}, badgerhold.Where("ExpiresAt").Lt(now)); err != nil {
		return fmt.Errorf("cannot delete expired sessions: %w", err)
	}
	if err := s.db.DeleteMatching(&Token{}, badgerhold.Where("ExpiresAt").Lt(now)); err != nil {
		return fmt.Errorf("cannot delete expired tokens: %w", err)
	}
	return nil
}

func (s *Store) SaveToken(t *Token) error {
	if err := s.db.Upsert(t.Token, t); err != nil {
		return fmt.Errorf("cannot save token: %w", err)
	}
	return nil
}

// ConsumeToken returns the token and deletes it. Tokens of another purpose are not found.
func (s *Store) ConsumeToken(token, purpose string) (*Token, error) {
	var t Token
	if err := s.get(token, &t); err != nil {
		return nil, fmt.Errorf("cannot get token: %w", err)
	}
	if t.Purpose != purpose {
		return nil, fmt.Errorf("cannot get token: %w", askwarren.ErrNotFound)
	}
	if err := s.del(token, &t); err != nil {
		return nil, fmt.Errorf("cannot delete token: %w", err)
	}
	return &t, nil
}
