package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSecret(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write secret: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     func(t *testing.T) Source
		expect  string
		wantErr string
	}{
		{
			name:   "inline value is trimmed",
			src:    func(*testing.T) Source { return Source{Name: "github token", Value: "  ghp_abc \n"} },
			expect: "ghp_abc",
		},
		{
			name: "file wins over value",
			src: func(t *testing.T) Source {
				return Source{Name: "github token", Value: "inline", File: writeSecret(t, "from-file\n")}
			},
			expect: "from-file",
		},
		{
			name:    "empty file",
			src:     func(t *testing.T) Source { return Source{Name: "gemini api key", File: writeSecret(t, "  \n")} },
			wantErr: "is empty",
		},
		{
			name:    "missing file",
			src:     func(t *testing.T) Source { return Source{File: filepath.Join(t.TempDir(), "absent")} },
			wantErr: "reading secret from file",
		},
		{
			name:    "nothing configured",
			src:     func(*testing.T) Source { return Source{Name: "gemini api key"} },
			wantErr: "gemini api key is not configured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Load(tt.src(t))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestLoadOptional(t *testing.T) {
	got, err := LoadOptional(Source{Name: "github token"})
	if err != nil || got != "" {
		t.Fatalf("expected empty secret without error, got %q, %v", got, err)
	}

	if _, err := Load(Source{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	if _, err := LoadOptional(Source{File: writeSecret(t, "")}); err == nil {
		t.Fatalf("an empty configured file must still fail")
	}
}
