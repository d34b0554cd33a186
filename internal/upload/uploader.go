// Package upload performs the full project upload used when a change cannot
// be applied locally.
//
// The project source directory is packed into a zip archive and either
// posted to the configured upload endpoint or, when no endpoint is set,
// written to a local build directory.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/hupe1980/devloop/internal/project"
	"github.com/hupe1980/devloop/internal/version"
)

// DigestHeader carries the hex BLAKE3 digest of the uploaded archive.
const DigestHeader = "X-Content-Blake3"

// Request identifies what to upload and where.
type Request struct {
	AccountID  int
	Project    *project.Config
	ProjectDir string
}

// Uploader performs a full project upload. UploadProject blocks until the
// upload has completed; a nil error is the completion signal.
type Uploader interface {
	UploadProject(ctx context.Context, req Request) error
}

// HTTPUploader uploads project archives over HTTP.
type HTTPUploader struct {
	// Endpoint is the base URL of the upload service. Empty writes the
	// archive to BuildDir instead.
	Endpoint string

	// BuildDir receives archives when Endpoint is empty. Empty means
	// os.TempDir().
	BuildDir string

	// Client is the HTTP client. Nil means a client with a 5 minute timeout.
	Client *http.Client

	// Logger is used for structured logging.
	Logger *slog.Logger
}

var _ Uploader = (*HTTPUploader)(nil)

// UploadProject archives the project's source directory and delivers it.
func (u *HTTPUploader) UploadProject(ctx context.Context, req Request) error {
	if req.Project == nil {
		return fmt.Errorf("no project config")
	}

	logger := u.Logger
	if logger == nil {
		logger = slog.Default()
	}

	src := req.Project.SourcePath(req.ProjectDir)

	var buf bytes.Buffer

	info, err := Archive(ctx, src, &buf)
	if err != nil {
		return fmt.Errorf("archiving %s: %w", src, err)
	}

	logger.Info("Uploading project",
		slog.String("project", req.Project.Name),
		slog.Int("account", req.AccountID),
		slog.Int("files", info.Files),
		slog.Int64("bytes", info.Bytes),
	)

	if u.Endpoint == "" {
		path, err := u.writeLocal(req.Project.Name, buf.Bytes())
		if err != nil {
			return err
		}

		logger.Info("no upload endpoint configured, archive written locally", slog.String("path", path))

		return nil
	}

	if err := u.post(ctx, req, info, &buf); err != nil {
		return err
	}

	logger.Info("Upload complete", slog.String("project", req.Project.Name), slog.String("digest", info.Digest))

	return nil
}

func (u *HTTPUploader) post(ctx context.Context, req Request, info ArchiveInfo, body io.Reader) error {
	target, err := url.JoinPath(u.Endpoint, "projects", req.Project.Name, "uploads")
	if err != nil {
		return fmt.Errorf("building upload URL: %w", err)
	}

	target += "?" + url.Values{"accountId": {strconv.Itoa(req.AccountID)}}.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}

	httpReq.ContentLength = info.Bytes
	httpReq.Header.Set("Content-Type", "application/zip")
	httpReq.Header.Set("User-Agent", version.GetInfo().UserAgent())
	httpReq.Header.Set(DigestHeader, info.Digest)

	client := u.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("uploading project %s: %w", req.Project.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("uploading project %s: %s: %s", req.Project.Name, resp.Status, bytes.TrimSpace(msg))
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}

func (u *HTTPUploader) writeLocal(name string, data []byte) (string, error) {
	dir := u.BuildDir
	if dir == "" {
		dir = os.TempDir()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating build directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%d.zip", name, time.Now().UnixNano()))

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec
		return "", fmt.Errorf("writing archive: %w", err)
	}

	return path, nil
}
