package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local writes objects into a directory that the HTTP server exposes under
// BaseURL.
type Local struct {
	Dir     string
	BaseURL string
}

// NewLocal creates dir if needed. baseURL defaults to "/uploads".
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if baseURL == "" {
		baseURL = "/uploads"
	}
	return &Local{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Put writes data to a temp file and renames it into place.
func (l *Local) Put(ctx context.Context, name, _ string, data []byte) (string, error) {
	if !validName(name) {
		return "", ErrInvalidName
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(l.Dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, filepath.Join(l.Dir, name)); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("store %s: %w", name, err)
	}
	return l.BaseURL + "/" + name, nil
}

// Delete removes the file behind url. URLs outside BaseURL and files that
// are already gone are ignored.
func (l *Local) Delete(_ context.Context, url string) error {
	name, ok := strings.CutPrefix(url, l.BaseURL+"/")
	if !ok || !validName(name) {
		return nil
	}
	if err := os.Remove(filepath.Join(l.Dir, name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}
