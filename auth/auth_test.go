package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/blob"
	"github.com/etnz/askwarren/mailer"
	"github.com/etnz/askwarren/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/oauth2"
)

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error // returned by Send, the message is still recorded
}

func (o *outbox) Send(_ context.Context, m mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, m)
	return o.err
}

var tokenRegexp = regexp.MustCompile(`token=([0-9a-f-]+)`)

// lastToken returns the token of the last link mailed to addr.
func (o *outbox) lastToken(t *testing.T, addr string) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].To == addr {
			m := tokenRegexp.FindStringSubmatch(o.sent[i].Body)
			require.NotNil(t, m, "no token in %q", o.sent[i].Body)
			return m[1]
		}
	}
	t.Fatalf("no mail sent to %s", addr)
	return ""
}

type fixture struct {
	svc     *Service
	store   *store.Store
	objects *blob.Store
	mail    *outbox
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st, err := store.Open(store.Config{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	objects, err := blob.New(t.TempDir(), "/files")
	require.NoError(t, err)

	f := &fixture{store: st, objects: objects, mail: &outbox{}, clock: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	cfg := DefaultConfig("https://warren.example.com/")
	cfg.BcryptCost = bcrypt.MinCost
	f.svc = New(cfg, st, objects, f.mail)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

// signUp creates and verifies an account.
func (f *fixture) signUp(t *testing.T, email string) *askwarren.UserProfile {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.SignUp(ctx, "Warren", email, "secret123", "secret123")
	require.NoError(t, err)
	require.NoError(t, f.svc.Verify(ctx, f.mail.lastToken(t, store.NormalizeEmail(email))))
	return p
}

func TestSignUpValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignUp(ctx, " ", "a@example.com", "secret123", "secret123")
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = f.svc.SignUp(ctx, "A", "a@example.com", "secret123", "secret124")
	assert.ErrorIs(t, err, ErrPasswordMismatch)
	_, err = f.svc.SignUp(ctx, "A", "a@example.com", "abc", "abc")
	assert.ErrorIs(t, err, ErrWeakPassword)

	p, err := f.svc.SignUp(ctx, "Anna", "Anna@Example.com", "secret123", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", p.Email)
	assert.Equal(t, f.clock.UnixMilli(), p.CreatedAt)

	_, err = f.svc.SignUp(ctx, "Anna", "anna@example.com", "secret123", "secret123")
	assert.ErrorIs(t, err, ErrEmailTaken)

	require.Len(t, f.mail.sent, 1)
	assert.Contains(t, f.mail.sent[0].Body, "https://warren.example.com/verify?token=")
}

func TestSignInRequiresVerification(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SignUp(ctx, "Anna", "anna@example.com", "secret123", "secret123")
	require.NoError(t, err)

	_, err = f.svc.SignIn(ctx, "anna@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.SignIn(ctx, "bob@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.svc.SignIn(ctx, "anna@example.com", "secret123")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
	assert.Len(t, f.mail.sent, 2, "verification mail resent")

	assert.ErrorIs(t, f.svc.Verify(ctx, "bogus"), ErrInvalidToken)
	require.NoError(t, f.svc.Verify(ctx, f.mail.lastToken(t, "anna@example.com")))

	sess, err := f.svc.SignIn(ctx, "ANNA@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Add(30*24*time.Hour).UnixMilli(), sess.ExpiresAt)

	p, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "Anna", p.Name)

	require.NoError(t, f.svc.SignOut(ctx, sess.Token))
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSessionExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "a@example.com")

	sess, err := f.svc.SignIn(ctx, "a@example.com", "secret123")
	require.NoError(t, err)

	f.clock = f.clock.Add(31 * 24 * time.Hour)
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = f.svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestVerificationTokenExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, "Anna", "anna@example.com", "secret123", "secret123")
	require.NoError(t, err)
	tok := f.mail.lastToken(t, "anna@example.com")

	f.clock = f.clock.Add(49 * time.Hour)
	assert.ErrorIs(t, f.svc.Verify(ctx, tok), ErrInvalidToken)
	require.NoError(t, f.svc.PurgeExpired())
}

func TestPasswordReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "a@example.com")

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "nobody@example.com"))
	n := len(f.mail.sent)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "a@example.com"))
	require.Len(t, f.mail.sent, n+1)
	assert.Contains(t, f.mail.sent[n].Body, "/reset-password?token=")
	tok := f.mail.lastToken(t, "a@example.com")

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, tok, "newsecret", "other"), ErrPasswordMismatch)
	require.NoError(t, f.svc.ResetPassword(ctx, tok, "newsecret", "newsecret"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, tok, "again123", "again123"), ErrInvalidToken)

	_, err := f.svc.SignIn(ctx, "a@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.svc.SignIn(ctx, "a@example.com", "newsecret")
	assert.NoError(t, err)
}

func TestPasswordResetSignsOutEverywhere(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.signUp(t, "a@example.com")
	f.signUp(t, "b@example.com")

	laptop, err := f.svc.SignIn(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	phone, err := f.svc.SignIn(ctx, "a@example.com", "secret123")
	require.NoError(t, err)
	other, err := f.svc.SignIn(ctx, "b@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "a@example.com"))
	require.NoError(t, f.svc.ResetPassword(ctx, f.mail.lastToken(t, "a@example.com"), "newsecret", "newsecret"))

	for _, tok := range []string{laptop.Token, phone.Token} {
		_, err = f.svc.Authenticate(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidSession)
	}
	_, err = f.svc.Authenticate(ctx, other.Token)
	assert.NoError(t, err, "other users keep their sessions")

	sess, err := f.svc.SignIn(ctx, "a@example.com", "newsecret")
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.NoError(t, err)
}

func TestSignUpSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.mail.err = errors.New("smtp: connection refused")

	p, err := f.svc.SignUp(ctx, "Anna", "anna@example.com", "secret123", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", p.Email)

	// the address is not lost, signing up again is refused.
	_, err = f.svc.SignUp(ctx, "Anna", "anna@example.com", "secret123", "secret123")
	assert.ErrorIs(t, err, ErrEmailTaken)

	// once mail works again, signing in resends the verification link.
	f.mail.err = nil
	_, err = f.svc.SignIn(ctx, "anna@example.com", "secret123")
	assert.ErrorIs(t, err, ErrEmailNotVerified)
	require.NoError(t, f.svc.Verify(ctx, f.mail.lastToken(t, "anna@example.com")))
	_, err = f.svc.SignIn(ctx, "anna@example.com", "secret123")
	assert.NoError(t, err)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	p := f.signUp(t, "a@example.com")

	got, err := f.svc.UpdateProfile(context.Background(), p.UID, "Charlie", "")
	require.NoError(t, err)
	assert.Equal(t, "Charlie", got.Name)
	got, err = f.svc.UpdateProfile(context.Background(), p.UID, "", "/files/pic.png")
	require.NoError(t, err)
	assert.Equal(t, "Charlie", got.Name)
	assert.Equal(t, "/files/pic.png", got.PhotoURL)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestProfilePhoto(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.signUp(t, "a@example.com")

	_, err := f.svc.SetProfilePhoto(ctx, p.UID, []byte("just some text"))
	assert.ErrorIs(t, err, ErrNotImage)

	got, err := f.svc.SetProfilePhoto(ctx, p.UID, pngHeader)
	require.NoError(t, err)
	assert.Equal(t, "/files/user_uploads/"+p.UID+"/profile_image?v="+strconv.FormatInt(f.clock.UnixMilli(), 10), got.PhotoURL)

	r, err := f.objects.Open(ctx, blob.ProfileImagePath(p.UID))
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(pngHeader, data))

	stored, err := f.store.GetProfile(p.UID)
	require.NoError(t, err)
	assert.Equal(t, got.PhotoURL, stored.PhotoURL)

	got, err = f.svc.DeleteProfilePhoto(ctx, p.UID)
	require.NoError(t, err)
	assert.Empty(t, got.PhotoURL)
	_, err = f.objects.Open(ctx, blob.ProfileImagePath(p.UID))
	assert.ErrorIs(t, err, askwarren.ErrNotFound)

	// deleting twice is fine.
	_, err = f.svc.DeleteProfilePhoto(ctx, p.UID)
	assert.NoError(t, err)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.signUp(t, "a@example.com")
	other := f.signUp(t, "b@example.com")

	path := blob.UploadPath(p.UID, "f1", "report.pdf")
	_, err := f.objects.Put(ctx, path, strings.NewReader("pdf"))
	require.NoError(t, err)
	require.NoError(t, f.store.SaveFile(&askwarren.FileRecord{ID: "f1", UserID: p.UID, StoragePath: path}))
	require.NoError(t, f.store.SaveWatchlistItem(&askwarren.WatchlistItem{ID: "w1", UserID: p.UID, Query: "Apple"}))
	require.NoError(t, f.store.SaveWatchlistItem(&askwarren.WatchlistItem{ID: "w2", UserID: other.UID, Query: "Apple"}))
	sess, err := f.svc.SignIn(ctx, "a@example.com", "secret123")
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteAccount(ctx, p.UID))

	_, err = f.objects.Open(ctx, path)
	assert.ErrorIs(t, err, askwarren.ErrNotFound)
	files, err := f.store.ListFiles(p.UID)
	require.NoError(t, err)
	assert.Empty(t, files)
	_, err = f.store.GetProfile(p.UID)
	assert.ErrorIs(t, err, askwarren.ErrNotFound)
	_, err = f.svc.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, ErrInvalidSession)
	_, err = f.svc.SignIn(ctx, "a@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	items, err := f.store.ListWatchlist(other.UID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func googleServer(t *testing.T, user GoogleUser) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "at", "token_type": "Bearer", "expires_in": 3600})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer at" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(user)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func withGoogle(f *fixture, srv *httptest.Server) {
	f.svc.cfg.Google = &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "https://warren.example.com/api/auth/google/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
	}
	f.svc.cfg.UserInfoURL = srv.URL + "/userinfo"
}

func TestGoogleSignIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.GoogleAuthURL("state")
	assert.ErrorIs(t, err, ErrGoogleDisabled)

	srv := googleServer(t, GoogleUser{Sub: "g-42", Email: "Carol@example.com", EmailVerified: true, Name: "Carol", Picture: "https://pics/carol.png"})
	withGoogle(f, srv)

	u, err := f.svc.GoogleAuthURL("xyz")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(u, srv.URL+"/auth?"))
	assert.Contains(t, u, "state=xyz")

	sess, err := f.svc.GoogleSignIn(ctx, "the-code")
	require.NoError(t, err)
	p, err := f.svc.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, "Carol", p.Name)
	assert.Equal(t, "carol@example.com", p.Email)
	assert.Equal(t, "https://pics/carol.png", p.PhotoURL)

	// Signing in again finds the same account.
	again, err := f.svc.GoogleSignIn(ctx, "the-code")
	require.NoError(t, err)
	assert.Equal(t, sess.UID, again.UID)
}

func TestGoogleSignInLinksExistingAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, "Dan", "dan@example.com", "secret123", "secret123")
	require.NoError(t, err)

	withGoogle(f, googleServer(t, GoogleUser{Sub: "g-7", Email: "dan@example.com", EmailVerified: true}))
	sess, err := f.svc.GoogleSignIn(ctx, "the-code")
	require.NoError(t, err)

	u, err := f.store.User(sess.UID)
	require.NoError(t, err)
	assert.Equal(t, "g-7", u.GoogleID)
	assert.True(t, u.Verified)

	p, err := f.store.GetProfile(sess.UID)
	require.NoError(t, err)
	assert.Equal(t, "Dan", p.Name, "empty google name keeps the profile name")

	// the password keeps working once the address is verified through Google.
	_, err = f.svc.SignIn(ctx, "dan@example.com", "secret123")
	assert.NoError(t, err)
}

func TestGoogleSignInUnverifiedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.SignUp(ctx, "Dan", "dan@example.com", "secret123", "secret123")
	require.NoError(t, err)

	withGoogle(f, googleServer(t, GoogleUser{Sub: "g-8", Email: "erin@example.com"}))
	_, err = f.svc.GoogleSignIn(ctx, "the-code")
	assert.ErrorIs(t, err, ErrGoogleUnverified)
	_, err = f.store.UserByEmail("erin@example.com")
	assert.ErrorIs(t, err, askwarren.ErrNotFound, "no account is created")

	withGoogle(f, googleServer(t, GoogleUser{Sub: "g-9", Email: "dan@example.com"}))
	_, err = f.svc.GoogleSignIn(ctx, "the-code")
	assert.ErrorIs(t, err, ErrGoogleUnverified)
	u, err := f.store.UserByEmail("dan@example.com")
	require.NoError(t, err)
	assert.Empty(t, u.GoogleID)
	assert.False(t, u.Verified)
}
