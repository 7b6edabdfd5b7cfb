// Package auth manages accounts: password and Google sign-in, sessions, mail
// verification, password reset and account deletion.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/blob"
	"github.com/etnz/askwarren/mailer"
	"github.com/etnz/askwarren/store"
	"github.com/google/uuid"
	"github.com/phuslu/log"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrWeakPassword       = errors.New("password too short")
	ErrNameRequired       = errors.New("name is required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidSession     = errors.New("invalid or expired session")
	ErrEmailTaken         = store.ErrEmailTaken
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

const (
	purposeVerify = "verify"
	purposeReset  = "reset"
)

// Config of the account service.
type Config struct {
	// BaseURL prefixes the links sent by mail.
	BaseURL    string
	SessionTTL time.Duration
	VerifyTTL  time.Duration
	ResetTTL   time.Duration
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
	// Google enables "Sign in with Google" when not nil.
	Google *oauth2.Config
	// UserInfoURL is the OpenID userinfo endpoint, defaults to Google's.
	UserInfoURL string
}

// DefaultConfig returns a configuration with the standard lifetimes.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		SessionTTL: 30 * 24 * time.Hour,
		VerifyTTL:  48 * time.Hour,
		ResetTTL:   time.Hour,
		BcryptCost: bcrypt.DefaultCost,
	}
}

// Service implements askwarren.AuthProvider.
type Service struct {
	cfg     Config
	store   *store.Store
	objects askwarren.ObjectStore
	mail    mailer.Sender
	now     func() time.Time
}

var _ askwarren.AuthProvider = (*Service)(nil)

// New creates the account service.
func New(cfg Config, st *store.Store, objects askwarren.ObjectStore, mail mailer.Sender) *Service {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = googleUserInfoURL
	}
	return &Service{cfg: cfg, store: st, objects: objects, mail: mail, now: time.Now}
}

// SignUp creates an unverified account and mails the verification link.
func (s *Service) SignUp(ctx context.Context, name, email, password, confirm string) (*askwarren.UserProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}
	if password != confirm {
		return nil, ErrPasswordMismatch
	}
	if len(password) < MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("cannot hash password: %w", err)
	}

	now := s.now().UnixMilli()
	u := &store.User{UID: uuid.NewString(), Email: email, PasswordHash: hash, CreatedAt: now}
	if err := s.store.CreateUser(u); err != nil {
		return nil, err
	}
	p := &askwarren.UserProfile{UID: u.UID, Name: name, Email: u.Email, CreatedAt: now}
	if err := s.store.SaveProfile(p); err != nil {
		return nil, err
	}
	log.Info().Str("uid", u.UID).Msg("account created")

	// signing in resends the mail.
	if err := s.sendVerification(ctx, u, name); err != nil {
		log.Error().Err(err).Str("uid", u.UID).Msg("cannot send verification mail")
	}
	return p, nil
}

// SignIn checks the credentials and opens a session. Unverified accounts get
// a new verification mail and ErrEmailNotVerified.
func (s *Service) SignIn(ctx context.Context, email, password string) (*askwarren.Session, error) {
	u, err := s.store.UserByEmail(email)
	if errors.Is(err, askwarren.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if len(u.PasswordHash) == 0 || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Verified {
		name := ""
		if p, err := s.store.GetProfile(u.UID); err == nil {
			name = p.Name
		}
		if err := s.sendVerification(ctx, u, name); err != nil {
			log.Error().Err(err).Str("uid", u.UID).Msg("cannot resend verification mail")
		}
		return nil, ErrEmailNotVerified
	}
	return s.newSession(u.UID)
}

func (s *Service) SignOut(ctx context.Context, token string) error {
	return s.store.DeleteSession(token)
}

// Authenticate resolves a session token into its user's profile.
func (s *Service) Authenticate(ctx context.Context, token string) (*askwarren.UserProfile, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	sess, err := s.store.Session(token)
	if errors.Is(err, askwarren.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if sess.ExpiresAt <= s.now().UnixMilli() {
		if err := s.store.DeleteSession(token); err != nil {
			log.Warn().Err(err).Msg("cannot delete expired session")
		}
		return nil, ErrInvalidSession
	}
	p, err := s.store.GetProfile(sess.UID)
	if errors.Is(err, askwarren.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	return p, err
}

// Verify consumes a verification token and marks the account verified.
func (s *Service) Verify(ctx context.Context, token string) error {
	t, err := s.consume(token, purposeVerify)
	if err != nil {
		return err
	}
	u, err := s.store.User(t.UID)
	if err != nil {
		return err
	}
	u.Verified = true
	return s.store.SaveUser(u)
}

// RequestPasswordReset mails a reset link. Unknown addresses are silently ignored.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.store.UserByEmail(email)
	if errors.Is(err, askwarren.ErrNotFound) {
		log.Info().Str("email", email).Msg("password reset for unknown address")
		return nil
	}
	if err != nil {
		return err
	}
	tok, err := s.newToken(u.UID, purposeReset, s.cfg.ResetTTL)
	if err != nil {
		return err
	}
	return s.mail.Send(ctx, mailer.ResetMail(u.Email, s.link("/reset-password", tok)))
}

// ResetPassword sets a new password using a reset token and signs the user
// out of every session.
func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) error {
	if password != confirm {
		return ErrPasswordMismatch
	}
	if len(password) < MinPasswordLength {
		return ErrWeakPassword
	}
	t, err := s.consume(token, purposeReset)
	if err != nil {
		return err
	}
	u, err := s.store.User(t.UID)
	if err != nil {
		return err
	}
	if u.PasswordHash, err = bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost); err != nil {
		return fmt.Errorf("cannot hash password: %w", err)
	}
	// the link was received by mail, so the address is proven.
	u.Verified = true
	if err := s.store.SaveUser(u); err != nil {
		return err
	}
	if err := s.store.DeleteSessions(u.UID); err != nil {
		return err
	}
	log.Info().Str("uid", u.UID).Msg("password reset, sessions revoked")
	return nil
}

// UpdateProfile changes the display name and picture of a user.
func (s *Service) UpdateProfile(ctx context.Context, uid, name, photoURL string) (*askwarren.UserProfile, error) {
	p, err := s.store.GetProfile(uid)
	if err != nil {
		return nil, err
	}
	if name = strings.TrimSpace(name); name != "" {
		p.Name = name
	}
	if photoURL != "" {
		p.PhotoURL = photoURL
	}
	if err := s.store.SaveProfile(p); err != nil {
		return nil, err
	}
	return p, nil
}

// DeleteAccount removes the user's objects, records, profile and credentials, in that order.
func (s *Service) DeleteAccount(ctx context.Context, uid string) error {
	if err := s.objects.DeletePrefix(ctx, blob.UserPrefix(uid)); err != nil {
		return fmt.Errorf("cannot delete account %q: %w", uid, err)
	}
	if err := s.store.DeleteUserRecords(uid); err != nil {
		return fmt.Errorf("cannot delete account %q: %w", uid, err)
	}
	if err := s.store.DeleteProfile(uid); err != nil {
		return fmt.Errorf("cannot delete account %q: %w", uid, err)
	}
	if err := s.store.DeleteUser(uid); err != nil {
		return fmt.Errorf("cannot delete account %q: %w", uid, err)
	}
	log.Info().Str("uid", uid).Msg("account deleted")
	return nil
}

// PurgeExpired drops expired sessions and tokens.
func (s *Service) PurgeExpired() error {
	return s.store.DeleteExpired(s.now().UnixMilli())
}

func (s *Service) newSession(uid string) (*askwarren.Session, error) {
	sess := &askwarren.Session{
		Token:     uuid.NewString(),
		UID:       uid,
		ExpiresAt: s.now().Add(s.cfg.SessionTTL).UnixMilli(),
	}
	if err := s.store.SaveSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Service) newToken(uid, purpose string, ttl time.Duration) (string, error) {
	t := &store.Token{Token: uuid.NewString(), UID: uid, Purpose: purpose, ExpiresAt: s.now().Add(ttl).UnixMilli()}
	if err := s.store.SaveToken(t); err != nil {
		return "", err
	}
	return t.Token, nil
}

func (s *Service) consume(token, purpose string) (*store.Token, error) {
	t, err := s.store.ConsumeToken(token, purpose)
	if errors.Is(err, askwarren.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if t.ExpiresAt <= s.now().UnixMilli() {
		return nil, ErrInvalidToken
	}
	return t, nil
}

func (s *Service) sendVerification(ctx context.Context, u *store.User, name string) error {
	tok, err := s.newToken(u.UID, purposeVerify, s.cfg.VerifyTTL)
	if err != nil {
		return err
	}
	if err := s.mail.Send(ctx, mailer.VerificationMail(u.Email, name, s.link("/verify", tok))); err != nil {
		return fmt.Errorf("cannot send verification mail: %w", err)
	}
	return nil
}

func (s *Service) link(path, token string) string {
	return strings.TrimSuffix(s.cfg.BaseURL, "/") + path + "?token=" + token
}
