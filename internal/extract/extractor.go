// Package extract unpacks zipped log artifacts into a directory.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/timmy/logarchive/internal/domain"
)

// Result is the outcome of one extraction. A skipped result is not an error
// for the caller's control flow; Err only explains why.
type Result struct {
	Files   []string
	Skipped bool
	Err     error
}

// Extractor expands zip archives. The zero value is ready to use.
type Extractor struct {
	// MaxFileSize bounds a single uncompressed entry. Zero means unbounded.
	MaxFileSize int64
}

// Extract opens data as a zip archive and writes every entry below destDir,
// creating it if needed. Entries keep the names they have in the archive.
func (e *Extractor) Extract(data []byte, destDir string) Result {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return skipped(fmt.Errorf("open archive: %w", err))
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return skipped(fmt.Errorf("create %s: %w", destDir, err))
	}

	var files []string
	for _, f := range reader.File {
		path, err := e.extractFile(f, destDir)
		if err != nil {
			return Result{Files: files, Skipped: true, Err: domain.NewError(domain.KindExtractionSkipped, "extract artifact", err)}
		}
		if path != "" {
			files = append(files, path)
		}
	}
	return Result{Files: files}
}

func (e *Extractor) extractFile(f *zip.File, destDir string) (string, error) {
	target, err := safeJoin(destDir, f.Name)
	if err != nil {
		return "", err
	}

	if f.FileInfo().IsDir() {
		return "", os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", f.Name, err)
	}

	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}

	var r io.Reader = src
	if e.MaxFileSize > 0 {
		r = io.LimitReader(src, e.MaxFileSize+1)
	}
	n, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if copyErr != nil {
		return "", fmt.Errorf("write %s: %w", target, copyErr)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close %s: %w", target, closeErr)
	}
	if e.MaxFileSize > 0 && n > e.MaxFileSize {
		os.Remove(target)
		return "", fmt.Errorf("entry %s exceeds %d bytes", f.Name, e.MaxFileSize)
	}
	return target, nil
}

// safeJoin rejects entry names that would land outside destDir.
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	root := filepath.Clean(destDir) + string(os.PathSeparator)
	if !strings.HasPrefix(target+string(os.PathSeparator), root) {
		return "", fmt.Errorf("entry %q escapes destination", name)
	}
	return target, nil
}

func skipped(err error) Result {
	return Result{Skipped: true, Err: domain.NewError(domain.KindExtractionSkipped, "extract artifact", err)}
}
