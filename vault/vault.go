// Package vault keeps the documents users upload to support their analyses.
package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/etnz/askwarren"
	"github.com/etnz/askwarren/blob"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/phuslu/log"
)

// Unsupported is the summary of documents the oracle cannot read.
const Unsupported = "Analyse für diesen Dateityp nicht unterstützt."

// ErrEmptyFile is returned when uploading a file without content.
var ErrEmptyFile = errors.New("empty file")

// Summarizer produces the AI summary of a document.
type Summarizer interface {
	SummarizeDocument(ctx context.Context, data []byte, mimeType string) string
}

// Vault stores documents and their records.
type Vault struct {
	docs    askwarren.DocumentStore
	objects askwarren.ObjectStore
	oracle  Summarizer
	limit   int64
}

// New creates a vault enforcing askwarren.StorageLimit per user.
func New(docs askwarren.DocumentStore, objects askwarren.ObjectStore, oracle Summarizer) *Vault {
	return &Vault{docs: docs, objects: objects, oracle: oracle, limit: askwarren.StorageLimit}
}

// Summarizable reports whether the oracle can read documents of this type.
func Summarizable(mimeType string) bool {
	return mimeType == "application/pdf" || strings.HasPrefix(mimeType, "image/")
}

// Upload stores a document for uid. The declared type is replaced by the
// sniffed one when they disagree.
func (v *Vault) Upload(ctx context.Context, uid, name string, data []byte) (*askwarren.FileRecord, error) {
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}
	used, err := v.UsedStorage(uid)
	if err != nil {
		return nil, err
	}
	if err := askwarren.CheckQuotaLimit(used, int64(len(data)), v.limit); err != nil {
		return nil, err
	}

	mtype := mimetype.Detect(data)
	contentType := mtype.String()
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}

	id := uuid.NewString()
	path := blob.UploadPath(uid, id, name)
	size, err := v.objects.Put(ctx, path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("cannot store %q: %w", name, err)
	}

	summary := Unsupported
	if Summarizable(contentType) {
		summary = v.oracle.SummarizeDocument(ctx, data, contentType)
	}

	rec := &askwarren.FileRecord{
		ID:          id,
		UserID:      uid,
		Name:        blob.SanitizeName(name),
		URL:         v.objects.URL(path),
		StoragePath: path,
		Size:        size,
		Type:        contentType,
		Timestamp:   askwarren.NowMillis(),
		AISummary:   summary,
	}
	if err := v.docs.SaveFile(rec); err != nil {
		if derr := v.objects.Delete(ctx, path); derr != nil {
			log.Error().Err(derr).Str("path", path).Msg("cannot remove orphan object")
		}
		return nil, err
	}
	log.Info().Str("uid", uid).Str("file", rec.Name).Int64("size", size).Str("type", contentType).Msg("document uploaded")
	return rec, nil
}

// List returns the user's documents, newest first.
func (v *Vault) List(uid string) ([]askwarren.FileRecord, error) {
	return v.docs.ListFiles(uid)
}

// Open returns the record and the content of a document.
func (v *Vault) Open(ctx context.Context, uid, id string) (*askwarren.FileRecord, io.ReadCloser, error) {
	rec, err := v.docs.GetFile(uid, id)
	if err != nil {
		return nil, nil, err
	}
	r, err := v.objects.Open(ctx, rec.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return rec, r, nil
}

// Delete removes the record first, then the object.
func (v *Vault) Delete(ctx context.Context, uid, id string) error {
	rec, err := v.docs.GetFile(uid, id)
	if err != nil {
		return err
	}
	if err := v.docs.DeleteFile(uid, id); err != nil {
		return err
	}
	if err := v.objects.Delete(ctx, rec.StoragePath); err != nil {
		log.Error().Err(err).Str("path", rec.StoragePath).Msg("document record deleted but object remains")
		return err
	}
	return nil
}

// UpdateNote replaces the user's note on a document.
func (v *Vault) UpdateNote(uid, id, note string) (*askwarren.FileRecord, error) {
	rec, err := v.docs.GetFile(uid, id)
	if err != nil {
		return nil, err
	}
	rec.Note = note
	if err := v.docs.SaveFile(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// UsedStorage sums the size of the user's documents.
func (v *Vault) UsedStorage(uid string) (int64, error) {
	files, err := v.docs.ListFiles(uid)
	if err != nil {
		return 0, err
	}
	return askwarren.UsedStorage(files), nil
}

// Usage describes how much of the quota a user consumes.
type Usage struct {
	Used    int64   `json:"used"`
	Limit   int64   `json:"limit"`
	Percent float64 `json:"percent"`
	Label   string  `json:"label"`
}

// Usage returns the storage usage of uid.
func (v *Vault) Usage(uid string) (Usage, error) {
	used, err := v.UsedStorage(uid)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Used:    used,
		Limit:   v.limit,
		Percent: math.Min(float64(used)/float64(v.limit)*100, 100),
		Label:   askwarren.FormatBytes(used) + " / " + askwarren.FormatBytes(v.limit),
	}, nil
}
