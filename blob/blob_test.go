package blob

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/etnz/askwarren"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutOpenDelete(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root, "http://localhost:8080/files/")
	require.NoError(t, err)

	p := UploadPath("u1", "id1", "Geschäftsbericht 2023.pdf")
	assert.Equal(t, "user_uploads/u1/id1_Geschäftsbericht 2023.pdf", p)

	n, err := s.Put(ctx, p, strings.NewReader("%PDF-1.4 content"))
	require.NoError(t, err)
	assert.EqualValues(t, 16, n)

	r, err := s.Open(ctx, p)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "%PDF-1.4 content", string(data))

	_, err = os.Stat(filepath.Join(root, "user_uploads", "u1", "id1_Geschäftsbericht 2023.pdf"))
	assert.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/files/user_uploads/u1/id1_Gesch%C3%A4ftsbericht%202023.pdf", s.URL(p))

	require.NoError(t, s.Delete(ctx, p))
	require.NoError(t, s.Delete(ctx, p), "missing objects are ignored")
	_, err = s.Open(ctx, p)
	assert.ErrorIs(t, err, askwarren.ErrNotFound)
}

func TestDeletePrefix(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)

	for _, p := range []string{UploadPath("u1", "a", "a.txt"), UploadPath("u1", "b", "b.txt"), UploadPath("u2", "c", "c.txt")} {
		_, err := s.Put(ctx, p, strings.NewReader(p))
		require.NoError(t, err)
	}
	require.NoError(t, s.DeletePrefix(ctx, UserPrefix("u1")))

	_, err = s.Open(ctx, UploadPath("u1", "a", "a.txt"))
	assert.ErrorIs(t, err, askwarren.ErrNotFound)
	r, err := s.Open(ctx, UploadPath("u2", "c", "c.txt"))
	require.NoError(t, err)
	r.Close()
}

func TestInvalidPaths(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)

	for _, p := range []string{"", "/etc/passwd", "../outside", "user_uploads/../../x", "a\\b", "."} {
		_, err := s.Put(ctx, p, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidPath, "Put(%q)", p)
	}
}

func TestSanitizeName(t *testing.T) {
	testCases := map[string]string{
		"report.pdf":             "report.pdf",
		"../../etc/passwd":       "passwd",
		`C:\Users\w\bilanz.xlsx`: "bilanz.xlsx",
		"..":                     "file",
		"":                       "file",
	}
	for in, want := range testCases {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := New(t.TempDir(), "")
	require.NoError(t, err)
	_, err = s.Put(ctx, "x/y.txt", strings.NewReader("data"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = s.Open(context.Background(), "x/y.txt")
	assert.ErrorIs(t, err, askwarren.ErrNotFound)
}
