package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"code-analyzer/internal/shared/errkind"
	"code-analyzer/internal/shared/storage/object"
)

const metaSuffix = ".meta.json"

// Store implements ContentStore on the local filesystem. Containers are
// directories under baseDir.
type Store struct {
	baseDir  string
	maxBytes int64
}

type sidecar struct {
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// New creates a new local content store rooted at baseDir.
func New(baseDir string, maxBytes int64) *Store {
	return &Store{baseDir: baseDir, maxBytes: maxBytes}
}

// Fetch reads container/key from disk.
func (s *Store) Fetch(ctx context.Context, container, key string) (object.Content, error) {
	op := fmt.Sprintf("local fetch container=%s key=%s", container, key)
	if err := ctx.Err(); err != nil {
		return object.Content{}, object.ContextError(op, err)
	}

	fullPath, err := s.resolve(container, key)
	if err != nil {
		return object.Content{}, errkind.New(errkind.NotFound, op, err)
	}

	f, err := os.Open(fullPath)
	if err != nil {
		return object.Content{}, classifyError(op, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return object.Content{}, classifyError(op, err)
	}
	if info.IsDir() {
		return object.Content{}, errkind.Newf(errkind.NotFound, op, "key is a directory")
	}

	data, err := object.ReadLimited(f, s.maxBytes)
	if err != nil {
		return object.Content{}, classifyError(op, err)
	}

	contentType := ""
	if meta, err := readSidecar(fullPath); err == nil {
		contentType = meta.ContentType
	}
	if contentType == "" {
		contentType = object.SniffContentType(data)
	}

	return object.Content{
		Bytes:        data,
		SizeBytes:    info.Size(),
		ContentType:  contentType,
		LastModified: info.ModTime().UTC(),
	}, nil
}

// Put writes data to container/key, replacing any existing file, and records
// content type and metadata in a sidecar file.
func (s *Store) Put(ctx context.Context, container, key string, data []byte, opts object.PutOptions) (string, error) {
	op := fmt.Sprintf("local put container=%s key=%s", container, key)
	if err := ctx.Err(); err != nil {
		return "", object.ContextError(op, err)
	}

	fullPath, err := s.resolve(container, key)
	if err != nil {
		return "", errkind.New(errkind.AccessDenied, op, err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", classifyError(op, fmt.Errorf("mkdir: %w", err))
	}

	meta, err := json.Marshal(sidecar{ContentType: opts.ContentType, Metadata: opts.Metadata})
	if err != nil {
		return "", errkind.New(errkind.Transient, op, fmt.Errorf("encode metadata: %w", err))
	}
	// The sidecar lands first so a report never exists without its metadata.
	if err := writeAtomic(fullPath+metaSuffix, meta); err != nil {
		return "", classifyError(op, fmt.Errorf("write metadata: %w", err))
	}
	if err := writeAtomic(fullPath, data); err != nil {
		_ = os.Remove(fullPath + metaSuffix)
		return "", classifyError(op, fmt.Errorf("write body: %w", err))
	}
	return key, nil
}

// Metadata returns the metadata recorded by Put for container/key.
func (s *Store) Metadata(container, key string) (map[string]string, error) {
	fullPath, err := s.resolve(container, key)
	if err != nil {
		return nil, err
	}
	meta, err := readSidecar(fullPath)
	if err != nil {
		return nil, err
	}
	return meta.Metadata, nil
}

func (s *Store) resolve(container, key string) (string, error) {
	if strings.TrimSpace(container) == "" || strings.TrimSpace(key) == "" {
		return "", errors.New("empty container or key")
	}
	for _, part := range []string{container, key} {
		clean := filepath.Clean(part)
		if clean == ".." || strings.HasPrefix(clean, "../") || filepath.IsAbs(clean) {
			return "", errors.New("invalid storage key")
		}
	}
	if strings.Contains(container, "/") {
		return "", errors.New("invalid container")
	}
	return filepath.Join(s.baseDir, container, filepath.Clean(key)), nil
}

// writeAtomic writes data to a temp file in the target directory and renames
// it into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func readSidecar(fullPath string) (sidecar, error) {
	raw, err := os.ReadFile(fullPath + metaSuffix)
	if err != nil {
		return sidecar{}, err
	}
	var meta sidecar
	if err := json.Unmarshal(raw, &meta); err != nil {
		return sidecar{}, err
	}
	return meta, nil
}

func classifyError(op string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return errkind.New(errkind.NotFound, op, err)
	case errors.Is(err, fs.ErrPermission):
		return errkind.New(errkind.AccessDenied, op, err)
	default:
		return errkind.New(errkind.Transient, op, err)
	}
}

var _ object.ContentStore = (*Store)(nil)
