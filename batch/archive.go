package batch

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const (
	// DefaultRecordExtension is the extension of record files inside an archive.
	DefaultRecordExtension = ".json"

	// DefaultMaxRecordSize caps the uncompressed size of one archive entry.
	DefaultMaxRecordSize int64 = 256 << 20
)

// extractArchive unpacks the zip file at src into dest and returns the
// paths of the extracted record files, sorted. Entries larger than
// maxSize fail the archive.
func extractArchive(src, dest, recordExt string, maxSize int64) ([]string, error) {
	r, err := zip.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	root, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	var records []string
	for _, f := range r.File {
		target, err := safeJoin(root, f.Name)
		if err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return nil, err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue
		}
		if err := extractFile(f, target, maxSize); err != nil {
			return nil, fmt.Errorf("extract %s: %w", f.Name, err)
		}
		if strings.EqualFold(filepath.Ext(target), recordExt) && !isHidden(f.Name) {
			records = append(records, target)
		}
	}
	slices.Sort(records)
	return records, nil
}

// safeJoin resolves name under root and rejects entries that would land
// outside it.
func safeJoin(root, name string) (string, error) {
	if filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchivePath, name)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeArchivePath, name)
	}
	return target, nil
}

// extractFile copies one entry to target. The declared size is checked
// first; the copy itself is capped too since the header can lie.
func extractFile(f *zip.File, target string, maxSize int64) error {
	if f.UncompressedSize64 > uint64(maxSize) {
		return fmt.Errorf("%w: %d bytes declared, limit %d", ErrRecordTooLarge, f.UncompressedSize64, maxSize)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	n, err := io.CopyN(out, rc, maxSize+1)
	if err != nil && !errors.Is(err, io.EOF) {
		out.Close()
		return err
	}
	if n > maxSize {
		out.Close()
		os.Remove(target)
		return fmt.Errorf("%w: limit %d", ErrRecordTooLarge, maxSize)
	}
	return out.Close()
}

// isHidden skips macOS resource forks and dot files.
func isHidden(name string) bool {
	for _, part := range strings.Split(filepath.ToSlash(name), "/") {
		if strings.HasPrefix(part, ".") || part == "__MACOSX" {
			return true
		}
	}
	return false
}

// archiveName is the base name of key without its extension, used for the
// per-archive error directory.
func archiveName(key string) string {
	base := filepath.Base(filepath.FromSlash(key))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
