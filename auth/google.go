package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/store"
	"github.com/google/uuid"
	"github.com/phuslu/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

var (
	// ErrGoogleDisabled is returned when Google sign-in is not configured.
	ErrGoogleDisabled = errors.New("google sign-in not configured")
	// ErrGoogleUnverified is returned when Google has not verified the address.
	ErrGoogleUnverified = errors.New("google address not verified")
)

// GoogleConfig returns the OAuth configuration of "Sign in with Google".
func GoogleConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"openid", "email", "profile"},
	}
}

// GoogleUser is the subset of the OpenID userinfo used to sync profiles.
type GoogleUser struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleAuthURL is where the browser is sent to sign in. state is returned on the callback.
func (s *Service) GoogleAuthURL(state string) (string, error) {
	if s.cfg.Google == nil {
		return "", ErrGoogleDisabled
	}
	return s.cfg.Google.AuthCodeURL(state, oauth2.AccessTypeOnline), nil
}

// GoogleSignIn exchanges the callback code, then finds, links or creates the
// account of the Google user and opens a session.
func (s *Service) GoogleSignIn(ctx context.Context, code string) (*askwarren.Session, error) {
	if s.cfg.Google == nil {
		return nil, ErrGoogleDisabled
	}
	tok, err := s.cfg.Google.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("cannot exchange google code: %w", err)
	}
	gu, err := s.fetchGoogleUser(ctx, s.cfg.Google.Client(ctx, tok))
	if err != nil {
		return nil, err
	}
	if gu.Sub == "" || gu.Email == "" {
		return nil, fmt.Errorf("incomplete google profile")
	}

	u, err := s.store.UserByGoogleID(gu.Sub)
	if errors.Is(err, askwarren.ErrNotFound) {
		u, err = s.linkGoogleUser(gu)
	}
	if err != nil {
		return nil, err
	}

	p, err := s.store.GetProfile(u.UID)
	if errors.Is(err, askwarren.ErrNotFound) {
		p = &askwarren.UserProfile{UID: u.UID, Email: u.Email, CreatedAt: s.now().UnixMilli()}
	} else if err != nil {
		return nil, err
	}
	if gu.Name != "" {
		p.Name = gu.Name
	}
	if gu.Picture != "" && p.PhotoURL == "" {
		p.PhotoURL = gu.Picture
	}
	if err := s.store.SaveProfile(p); err != nil {
		return nil, err
	}
	return s.newSession(u.UID)
}

// linkGoogleUser attaches the Google identity to the account with the same
// email, or creates a new account. Both require an address verified by Google.
func (s *Service) linkGoogleUser(gu *GoogleUser) (*store.User, error) {
	if !gu.EmailVerified {
		return nil, fmt.Errorf("%w: %q", ErrGoogleUnverified, gu.Email)
	}
	u, err := s.store.UserByEmail(gu.Email)
	switch {
	case err == nil:
		u.GoogleID = gu.Sub
		u.Verified = true
		log.Info().Str("uid", u.UID).Msg("google account linked")
		return u, s.store.SaveUser(u)
	case errors.Is(err, askwarren.ErrNotFound):
		u = &store.User{UID: uuid.NewString(), Email: gu.Email, GoogleID: gu.Sub, Verified: gu.EmailVerified, CreatedAt: s.now().UnixMilli()}
		log.Info().Str("uid", u.UID).Msg("account created with google")
		return u, s.store.CreateUser(u)
	default:
		return nil, err
	}
}

func (s *Service) fetchGoogleUser(ctx context.Context, client *http.Client) (*GoogleUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot fetch google profile: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cannot fetch google profile: %s", resp.Status)
	}
	var gu GoogleUser
	if err := json.NewDecoder(resp.Body).Decode(&gu); err != nil {
		return nil, fmt.Errorf("cannot decode google profile: %w", err)
	}
	return &gu, nil
}
