package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/blob"
	"github.com/etnz/askwarren/vault"
	"github.com/gorilla/mux"
	"github.com/phuslu/log"
)

type vaultReply struct {
	Files []askwarren.FileRecord `json:"files"`
	Usage vault.Usage            `json:"usage"`
}

func (s *Server) listVault(w http.ResponseWriter, r *http.Request) {
	uid := currentUser(r).UID
	files, err := s.vault.List(uid)
	if err != nil {
		Fail(w, r, err)
		return
	}
	usage, err := s.vault.Usage(uid)
	if err != nil {
		Fail(w, r, err)
		return
	}
	if files == nil {
		files = []askwarren.FileRecord{}
	}
	WriteJSON(w, http.StatusOK, vaultReply{Files: files, Usage: usage})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	name, data, ok := formFile(w, r, s.opts.MaxUploadBytes)
	if !ok {
		return
	}
	rec, err := s.vault.Upload(r.Context(), currentUser(r).UID, name, data)
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, rec)
}

// formFile reads the "file" field of a multipart form, at most max bytes
// unless max is zero. It writes the error response when it returns false.
func formFile(w http.ResponseWriter, r *http.Request, max int64) (string, []byte, bool) {
	if max > 0 {
		// room for the multipart envelope
		r.Body = http.MaxBytesReader(w, r.Body, max+1<<20)
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if !errors.As(err, &tooLarge) {
			err = errInvalidRequest{err}
		}
		Fail(w, r, err)
		return "", nil, false
	}
	defer f.Close()
	if max > 0 && hdr.Size > max {
		WriteError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return "", nil, false
	}
	data, err := io.ReadAll(f)
	if err != nil {
		Fail(w, r, err)
		return "", nil, false
	}
	return hdr.Filename, data, true
}

type noteRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := decode(r, &req); err != nil {
		Fail(w, r, err)
		return
	}
	rec, err := s.vault.UpdateNote(currentUser(r).UID, mux.Vars(r)["id"], req.Note)
	if err != nil {
		Fail(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.Delete(r.Context(), currentUser(r).UID, mux.Vars(r)["id"]); err != nil {
		Fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	rec, rc, err := s.vault.Open(r.Context(), currentUser(r).UID, mux.Vars(r)["id"])
	if err != nil {
		Fail(w, r, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", rec.Type)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": rec.Name}))
	if _, err := io.Copy(w, rc); err != nil {
		log.Warn().Err(err).Str("id", rec.ID).Msg("download interrupted")
	}
}

// serveObject serves the object URLs handed out by the object store. Users
// only reach objects under their own prefix.
func (s *Server) serveObject(w http.ResponseWriter, r *http.Request) {
	p := strings.TrimPrefix(r.URL.Path, s.opts.FilesURL+"/")
	if !strings.HasPrefix(p, blob.UserPrefix(currentUser(r).UID)) {
		WriteError(w, http.StatusNotFound, msgNotFound)
		return
	}
	rc, err := s.objects.Open(r.Context(), p)
	if err != nil {
		Fail(w, r, err)
		return
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		log.Warn().Err(err).Str("path", p).Msg("object transfer interrupted")
	}
}
