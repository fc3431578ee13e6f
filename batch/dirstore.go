package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// DirStore is an ObjectStore over a local directory. Keys are slash
// separated paths relative to the root.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at dir.
func NewDirStore(dir string) *DirStore {
	return &DirStore{root: dir}
}

func (s *DirStore) path(key string) (string, error) {
	return safeJoin(s.root, key)
}

// List implements ObjectStore.
func (s *DirStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b ObjectInfo) int { return strings.Compare(a.Key, b.Key) })
	return out, nil
}

// Download implements ObjectStore.
func (s *DirStore) Download(ctx context.Context, key, dest string) error {
	src, err := s.path(key)
	if err != nil {
		return err
	}
	return copyFile(ctx, src, dest)
}

// Upload implements ObjectStore.
func (s *DirStore) Upload(ctx context.Context, key, src string) error {
	dest, err := s.path(key)
	if err != nil {
		return err
	}
	return copyFile(ctx, src, dest)
}

// DeleteWithSuffix implements ObjectStore.
func (s *DirStore) DeleteWithSuffix(ctx context.Context, prefix, suffix string) (int, error) {
	objects, err := s.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, obj := range objects {
		if !strings.HasSuffix(obj.Key, suffix) {
			continue
		}
		p, err := s.path(obj.Key)
		if err != nil {
			return deleted, err
		}
		if err := os.Remove(p); err != nil {
			return deleted, fmt.Errorf("delete %s: %w", obj.Key, err)
		}
		deleted++
	}
	return deleted, nil
}

func copyFile(ctx context.Context, src, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
