package storage

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Manager stores fetched binary resources on the local filesystem.
// Writes go through a temp file and an atomic rename so a crashed write
// never leaves a partial resource at a referenced location.
type Manager struct {
	root string
}

func NewManager(root string) (*Manager, error) {
	if root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Manager{root: root}, nil
}

// Write persists data under a name derived from the hint and a short
// fingerprint. It returns the stored location relative to the root.
func (m *Manager) Write(hint, fingerprint string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to store empty resource")
	}
	name := buildFilename(hint, fingerprint, data)
	path := filepath.Join(m.root, name)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write resource: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalize resource: %w", err)
	}
	return name, nil
}

// Read returns the bytes stored at a location previously returned by Write.
func (m *Manager) Read(location string) ([]byte, error) {
	return os.ReadFile(filepath.Join(m.root, location))
}

func (m *Manager) Exists(location string) bool {
	if location == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(m.root, location))
	return err == nil
}

func (m *Manager) Remove(location string) error {
	if location == "" {
		return nil
	}
	err := os.Remove(filepath.Join(m.root, location))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func buildFilename(hint, fingerprint string, data []byte) string {
	hint = sanitizeHint(hint)
	if hint == "" {
		hint = "resource"
	}
	short := fingerprint
	if len(short) > 12 {
		short = short[:12]
	}
	return fmt.Sprintf("%s_%s%s", hint, short, sniffExtension(data))
}

func sanitizeHint(hint string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(hint) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "._")
}

func sniffExtension(data []byte) string {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "video/mp4":
		return ".mp4"
	default:
		return ".bin"
	}
}
