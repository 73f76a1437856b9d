package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const unassignedDir = "unassigned"

// Storage keeps uploads under basePath/client_{id}/{filename}. Uploads without
// a client go to basePath/unassigned.
type Storage struct {
	basePath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/documents"
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Storage{basePath: abs}, nil
}

func (s *Storage) ClientDir(clientID int64) string {
	return filepath.Join(s.basePath, fmt.Sprintf("client_%d", clientID))
}

func (s *Storage) Save(_ context.Context, clientID *int64, filename string, data io.Reader) (string, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	dir := filepath.Join(s.basePath, unassignedDir)
	if clientID != nil {
		dir = s.ClientDir(*clientID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create client dir: %w", err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, data); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

func (s *Storage) Open(_ context.Context, path string) (io.ReadCloser, error) {
	clean, err := s.within(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Remove deletes one stored file. A missing file is not an error.
func (s *Storage) Remove(_ context.Context, path string) (bool, error) {
	clean, err := s.within(path)
	if err != nil {
		return false, err
	}
	if err := os.Remove(clean); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("remove file: %w", err)
	}
	return true, nil
}

// RemoveClientDir deletes the client's directory tree and returns how many
// regular files it held.
func (s *Storage) RemoveClientDir(_ context.Context, clientID int64) (int64, error) {
	dir := s.ClientDir(clientID)
	var files int64
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("walk client dir: %w", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return 0, fmt.Errorf("remove client dir: %w", err)
	}
	return files, nil
}

func (s *Storage) within(path string) (string, error) {
	clean := filepath.Clean(path)
	if !filepath.IsAbs(clean) {
		clean = filepath.Join(s.basePath, clean)
	}
	rel, err := filepath.Rel(s.basePath, clean)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside storage root", path)
	}
	return clean, nil
}
