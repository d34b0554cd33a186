package upload

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"
)

// ArchiveInfo describes a written archive.
type ArchiveInfo struct {
	// Files is the number of regular files archived.
	Files int

	// Bytes is the size of the archive.
	Bytes int64

	// Digest is the hex BLAKE3-256 digest of the archive.
	Digest string
}

// Archive writes a deflate zip of every regular file below root to w.
// Hidden files and directories are skipped. Entry names are slash separated
// and relative to root.
func Archive(ctx context.Context, root string, w io.Writer) (ArchiveInfo, error) {
	var info ArchiveInfo

	hasher := blake3.New()
	counter := &countWriter{}

	zw := zip.NewWriter(io.MultiWriter(w, hasher, counter))

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		if err := addFile(zw, path, filepath.ToSlash(rel), d); err != nil {
			return fmt.Errorf("archiving %s: %w", rel, err)
		}

		info.Files++

		return nil
	})
	if err != nil {
		_ = zw.Close()
		return ArchiveInfo{}, err
	}

	if err := zw.Close(); err != nil {
		return ArchiveInfo{}, fmt.Errorf("finalizing archive: %w", err)
	}

	info.Bytes = counter.n
	info.Digest = hex.EncodeToString(hasher.Sum(nil))

	return info, nil
}

func addFile(zw *zip.Writer, path, name string, d fs.DirEntry) error {
	fi, err := d.Info()
	if err != nil {
		return err
	}

	hdr, err := zip.FileInfoHeader(fi)
	if err != nil {
		return err
	}

	hdr.Name = name
	hdr.Method = zip.Deflate

	dst, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}

	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(dst, f)

	return err
}

type countWriter struct {
	n int64
}

func (c *countWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
