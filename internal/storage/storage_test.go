package storage

import (
	"context"
	"testing"

	"github.com/novacode/novacode/internal/config"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		project, path, want string
	}{
		{"p1", "src/index.html", "p1/src/index.html"},
		{"p1", "/README.md", "p1/README.md"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.project, tt.path); got != tt.want {
			t.Errorf("ObjectKey(%q, %q) = %q, want %q", tt.project, tt.path, got, tt.want)
		}
	}
	if got := ProjectPrefix("p1"); got != "p1/" {
		t.Errorf("ProjectPrefix = %q", got)
	}
}

func TestNewBackend(t *testing.T) {
	b, err := NewBackend(context.Background(), &config.Config{
		StorageBackend:   "local",
		LocalStoragePath: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Type() != "local" {
		t.Errorf("Type() = %q", b.Type())
	}

	if _, err := NewBackend(context.Background(), &config.Config{StorageBackend: "smb"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
