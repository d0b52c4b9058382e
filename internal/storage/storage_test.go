package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Minimal valid header bytes so content sniffing sees a JPEG.
var jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0x01}, 16)...)

func TestWriteAndReadRoundTrip(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	location, err := m.Write("alice_profile", "deadbeefcafe1234", jpegBytes)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(location, "alice_profile_deadbeefcafe") {
		t.Fatalf("unexpected location %q", location)
	}
	if !strings.HasSuffix(location, ".jpg") {
		t.Fatalf("expected sniffed jpg extension, got %q", location)
	}

	got, err := m.Read(location)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !bytes.Equal(got, jpegBytes) {
		t.Fatalf("stored bytes differ")
	}
	if !m.Exists(location) {
		t.Fatalf("Exists should report stored location")
	}
}

func TestWriteLeavesNoTempFileBehind(t *testing.T) {
	root := t.TempDir()
	m, err := NewManager(root)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.Write("bob", "0123456789abcdef", jpegBytes); err != nil {
		t.Fatalf("Write: %v", err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestWriteRejectsEmptyData(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if _, err := m.Write("alice", "abc", nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
}

func TestSanitizeHint(t *testing.T) {
	if got := sanitizeHint("Alice O'Brien/../x"); strings.ContainsAny(got, "/' ") {
		t.Fatalf("hint not sanitized: %q", got)
	}
	if got := buildFilename("", "abcdef0123456789", jpegBytes); !strings.HasPrefix(got, "resource_") {
		t.Fatalf("expected fallback hint, got %q", got)
	}
}

func TestRemoveMissingIsNoop(t *testing.T) {
	m, err := NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Remove("nope.jpg"); err != nil {
		t.Fatalf("Remove of missing file should be a no-op, got %v", err)
	}
}
