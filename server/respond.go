package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/agent"
	"github.com/etnz/askwarren/auth"
	"github.com/etnz/askwarren/blob"
	"github.com/etnz/askwarren/chart"
	"github.com/etnz/askwarren/vault"
	"github.com/go-playground/validator/v10"
	"github.com/phuslu/log"
)

// Messages shown to users, keyed by the error they translate.
const (
	msgInvalidRequest = "Ungültige Anfrage."
	msgUnauthorized   = "Bitte melden Sie sich an."
	msgNotFound       = "Nicht gefunden."
	msgInternal       = "Ein unerwarteter Fehler ist aufgetreten."
	msgOracle         = "Fehler bei der Kommunikation mit dem Orakel. Bitte versuchen Sie es später erneut."
	msgRateLimited    = "Das Orakel braucht eine kurze Pause. Bitte versuchen Sie es gleich erneut."
	msgQuota          = "Speicherlimit von 5 GB überschritten."
	msgTooLarge       = "Die Datei ist zu groß."
)

var errorMessages = []struct {
	err    error
	status int
	msg    string
}{
	{askwarren.ErrNotFound, http.StatusNotFound, msgNotFound},
	{askwarren.ErrQuotaExceeded, http.StatusRequestEntityTooLarge, msgQuota},
	{auth.ErrInvalidCredentials, http.StatusUnauthorized, "E-Mail oder Passwort falsch."},
	{auth.ErrInvalidSession, http.StatusUnauthorized, msgUnauthorized},
	{auth.ErrEmailNotVerified, http.StatusForbidden, "Bitte bestätigen Sie zuerst Ihre E-Mail-Adresse. Wir haben Ihnen einen neuen Link gesendet."},
	{auth.ErrEmailTaken, http.StatusConflict, "Diese E-Mail-Adresse ist bereits registriert."},
	{auth.ErrPasswordMismatch, http.StatusBadRequest, "Passwörter stimmen nicht überein."},
	{auth.ErrWeakPassword, http.StatusBadRequest, "Das Passwort muss mindestens 6 Zeichen lang sein."},
	{auth.ErrNameRequired, http.StatusBadRequest, "Bitte geben Sie Ihren Namen an."},
	{auth.ErrInvalidToken, http.StatusBadRequest, "Der Link ist ungültig oder abgelaufen."},
	{auth.ErrGoogleDisabled, http.StatusNotImplemented, "Anmeldung mit Google ist nicht verfügbar."},
	{auth.ErrGoogleUnverified, http.StatusForbidden, "Ihre Google-Adresse ist nicht bestätigt."},
	{auth.ErrNotImage, http.StatusUnsupportedMediaType, "Bitte laden Sie ein Bild hoch."},
	{agent.ErrOracleUnavailable, http.StatusBadGateway, msgOracle},
	{vault.ErrEmptyFile, http.StatusBadRequest, "Die Datei ist leer."},
	{blob.ErrInvalidPath, http.StatusBadRequest, msgInvalidRequest},
}

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("cannot write response")
	}
}

// WriteError writes a JSON error with a message meant for the user.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"status": "error", "error": message})
}

// Fail translates err into a status code and a user message.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := http.StatusInternalServerError, msgInternal
	var (
		verr     validator.ValidationErrors
		bad      errInvalidRequest
		tooLarge *http.MaxBytesError
		empty    chart.InvalidSeriesError
		flat     chart.DegenerateRangeError
	)
	switch {
	case errors.As(err, &tooLarge):
		status, msg = http.StatusRequestEntityTooLarge, msgTooLarge
	case errors.As(err, &verr), errors.As(err, &bad):
		status, msg = http.StatusBadRequest, msgInvalidRequest
	case errors.As(err, &empty), errors.As(err, &flat):
		status, msg = http.StatusUnprocessableEntity, "Für diese Kennzahl kann kein Diagramm gezeichnet werden."
	default:
		for _, m := range errorMessages {
			if errors.Is(err, m.err) {
				status, msg = m.status, m.msg
				break
			}
		}
	}
	if status >= 500 {
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
	} else {
		log.Debug().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request rejected")
	}
	WriteError(w, status, msg)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// decode reads a JSON body into dst and validates it.
func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidRequest{err}
	}
	return validate.Struct(dst)
}

type errInvalidRequest struct{ err error }

func (e errInvalidRequest) Error() string { return "invalid request body: " + e.err.Error() }
func (e errInvalidRequest) Unwrap() error { return e.err }
