package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/auth"
	"github.com/google/uuid"
)

type ctxKey struct{}

// authenticate rejects requests without a valid session and stores the
// user's profile in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			WriteError(w, http.StatusUnauthorized, msgUnauthorized)
			return
		}
		p, err := s.accounts.Authenticate(r.Context(), token)
		if err != nil {
			Fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, p)))
	})
}

// currentUser returns the profile stored by authenticate.
func currentUser(r *http.Request) *askwarren.UserProfile {
	p, _ := r.Context().Value(ctxKey{}).(*askwarren.UserProfile)
	return p
}

type signUpRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Confirm  string `json:"confirmPassword"`
}

func (s *Server) signUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decode(r, &req); err != nil {
		Fail(w, r, err)
		return
	}
	p, err := s.accounts.SignUp(r.Context(), req.Name, req.Email, req.Password, req.Confirm)
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

type signInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decode(r, &req); err != nil {
		Fail(w, r, err)
		return
	}
	sess, err := s.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, sess)
}

func (s *Server) signOut(w http.ResponseWriter, r *http.Request) {
	if err := s.accounts.SignOut(r.Context(), bearer(r)); err != nil {
		Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// verify accepts the token from the mailed link or from a JSON body.
func (s *Server) verify(w http.ResponseWriter, r *http.Request) {
	req := tokenRequest{Token: r.URL.Query().Get("token")}
	if r.Method == http.MethodPost {
		if err := decode(r, &req); err != nil {
			Fail(w, r, err)
			return
		}
	}
	if req.Token == "" {
		WriteError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	if err := s.accounts.Verify(r.Context(), req.Token); err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Ihre E-Mail-Adresse wurde bestätigt."})
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// requestReset always answers 202, whether the address is known or not.
func (s *Server) requestReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := decode(r, &req); err != nil {
		Fail(w, r, err)
		return
	}
	if err := s.accounts.RequestPasswordReset(r.Context(), req.Email); err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "success", "message": "Falls die Adresse registriert ist, erhalten Sie eine E-Mail."})
}

type confirmResetRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required"`
	Confirm  string `json:"confirmPassword"`
}

func (s *Server) confirmReset(w http.ResponseWriter, r *http.Request) {
	var req confirmResetRequest
	if err := decode(r, &req); err != nil {
		Fail(w, r, err)
		return
	}
	if err := s.accounts.ResetPassword(r.Context(), req.Token, req.Password, req.Confirm); err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Ihr Passwort wurde geändert."})
}

const stateCookie = "warren_oauth_state"

func (s *Server) googleRedirect(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	u, err := s.accounts.GoogleAuthURL(state)
	if err != nil {
		Fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/api/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(s.opts.BaseURL, "https://"),
	})
	http.Redirect(w, r, u, http.StatusFound)
}

// googleCallback completes the sign-in and sends the browser back to the web
// client with the session token in the fragment.
func (s *Server) googleCallback(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(stateCookie)
	if err != nil || c.Value == "" || c.Value != r.URL.Query().Get("state") {
		WriteError(w, http.StatusBadRequest, "Anmeldung mit Google fehlgeschlagen.")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/api/auth/google", MaxAge: -1})

	sess, err := s.accounts.GoogleSignIn(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		Fail(w, r, err)
		return
	}
	http.Redirect(w, r, strings.TrimSuffix(s.opts.BaseURL, "/")+"/#session="+url.QueryEscape(sess.Token), http.StatusFound)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, currentUser(r))
}

type profileRequest struct {
	Name     string `json:"name" validate:"required"`
	PhotoURL string `json:"photoURL" validate:"omitempty,url"`
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decode(r, &req); err != nil {
		Fail(w, r, err)
		return
	}
	p, err := s.accounts.UpdateProfile(r.Context(), currentUser(r).UID, req.Name, req.PhotoURL)
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

const maxPhotoBytes = 5 << 20

func (s *Server) uploadPhoto(w http.ResponseWriter, r *http.Request) {
	_, data, ok := formFile(w, r, maxPhotoBytes)
	if !ok {
		return
	}
	p, err := s.accounts.SetProfilePhoto(r.Context(), currentUser(r).UID, data)
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (s *Server) deletePhoto(w http.ResponseWriter, r *http.Request) {
	p, err := s.accounts.DeleteProfilePhoto(r.Context(), currentUser(r).UID)
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func (s *Server) deleteAccount(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r).UID
	if err := s.accounts.DeleteAccount(r.Context(), uid); err != nil {
		Fail(w, r, err)
		return
	}
	s.dropLimiter(uid)
	w.WriteHeader(http.StatusNoContent)
}

var _ Accounts = (*auth.Service)(nil)
