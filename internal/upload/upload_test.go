package upload

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"

	"github.com/hupe1980/devloop/internal/logging"
	"github.com/hupe1980/devloop/internal/project"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	return root
}

func entryNames(t *testing.T, data []byte) []string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}

	sort.Strings(names)

	return names
}

// ---------------------------------------------------------------------------
// Archive
// ---------------------------------------------------------------------------

func TestArchive(t *testing.T) {
	root := writeTree(t, map[string]string{
		"index.html":      "<html></html>",
		"js/app.js":       "console.log(1)",
		".env":            "SECRET=1",
		".git/HEAD":       "ref",
		"css/site.css":    "body{}",
		"js/.cache/x.tmp": "x",
	})

	var buf bytes.Buffer

	info, err := Archive(context.Background(), root, &buf)
	require.NoError(t, err)

	assert.Equal(t, 3, info.Files)
	assert.Equal(t, int64(buf.Len()), info.Bytes)

	sum := blake3.Sum256(buf.Bytes())
	assert.Equal(t, hex.EncodeToString(sum[:]), info.Digest)

	assert.Equal(t, []string{"css/site.css", "index.html", "js/app.js"}, entryNames(t, buf.Bytes()))
}

func TestArchive_ContentRoundTrip(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "hello world"})

	var buf bytes.Buffer

	_, err := Archive(context.Background(), root, &buf)
	require.NoError(t, err)

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, zip.Deflate, zr.File[0].Method)

	rc, err := zr.File[0].Open()
	require.NoError(t, err)
	defer rc.Close()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestArchive_Cancelled(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Archive(ctx, root, io.Discard)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchive_MissingRoot(t *testing.T) {
	_, err := Archive(context.Background(), "/nonexistent/src/12345", io.Discard)
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// HTTPUploader
// ---------------------------------------------------------------------------

func projectRequest(t *testing.T) Request {
	t.Helper()

	dir := writeTree(t, map[string]string{
		"devloop.json":  `{"name": "demo", "srcDir": "src"}`,
		"src/index.js":  "export {}",
		"src/page.html": "<p></p>",
	})

	return Request{
		AccountID:  42,
		Project:    &project.Config{Name: "demo", SrcDir: "src"},
		ProjectDir: dir,
	}
}

func TestHTTPUploader_Post(t *testing.T) {
	var (
		gotPath, gotQuery, gotType, gotDigest, gotUA string
		gotBody                                      []byte
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotType = r.Header.Get("Content-Type")
		gotDigest = r.Header.Get(DigestHeader)
		gotUA = r.Header.Get("User-Agent")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	u := &HTTPUploader{Endpoint: srv.URL + "/api", Client: srv.Client(), Logger: logging.Discard()}

	require.NoError(t, u.UploadProject(context.Background(), projectRequest(t)))

	assert.Equal(t, "/api/projects/demo/uploads", gotPath)
	assert.Equal(t, "accountId=42", gotQuery)
	assert.Equal(t, "application/zip", gotType)
	assert.Contains(t, gotUA, "devloop/")

	sum := blake3.Sum256(gotBody)
	assert.Equal(t, hex.EncodeToString(sum[:]), gotDigest)
	assert.Equal(t, []string{"index.js", "page.html"}, entryNames(t, gotBody))
}

func TestHTTPUploader_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	u := &HTTPUploader{Endpoint: srv.URL, Client: srv.Client(), Logger: logging.Discard()}

	err := u.UploadProject(context.Background(), projectRequest(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestHTTPUploader_LocalBuildDir(t *testing.T) {
	buildDir := filepath.Join(t.TempDir(), "build")

	u := &HTTPUploader{BuildDir: buildDir, Logger: logging.Discard()}

	require.NoError(t, u.UploadProject(context.Background(), projectRequest(t)))

	matches, err := filepath.Glob(filepath.Join(buildDir, "demo-*.zip"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"index.js", "page.html"}, entryNames(t, data))
}

func TestHTTPUploader_NoProject(t *testing.T) {
	u := &HTTPUploader{}

	err := u.UploadProject(context.Background(), Request{})
	assert.Error(t, err)
}

func TestHTTPUploader_MissingSrcDir(t *testing.T) {
	u := &HTTPUploader{Logger: logging.Discard()}

	err := u.UploadProject(context.Background(), Request{
		Project:    &project.Config{Name: "demo", SrcDir: "missing"},
		ProjectDir: t.TempDir(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archiving")
}
