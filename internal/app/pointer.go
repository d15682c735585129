package app

import (
	"os"
	"path/filepath"
	"strings"
)

// Pointer is the single durable "which session is active" value. It is
// written on every session switch and re-read when an async load resolves:
// a response whose session no longer matches the pointer is stale and gets
// discarded. That comparison is the only cancellation mechanism in the
// client — in-flight requests are never aborted, just ignored when late.
type Pointer struct {
	path string
}

// DefaultStateRoot picks where the pointer and logs live. Prefers XDG data
// dir, falls back to ~/.local/share, then the temp dir.
func DefaultStateRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "agentchat")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "agentchat")
	}
	return filepath.Join(os.TempDir(), "agentchat")
}

func NewPointer(root string) *Pointer {
	if strings.TrimSpace(root) == "" {
		root = DefaultStateRoot()
	}
	return &Pointer{path: filepath.Join(root, "current")}
}

// Read returns the persisted session ID, or "" when none was ever written.
func (p *Pointer) Read() string {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (p *Pointer) Write(sessionID string) error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(p.path, []byte(sessionID+"\n"), 0o644)
}
