package google

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestNewHTTPClient_InvalidPath(t *testing.T) {
	_, err := NewHTTPClient(context.Background(), "/nonexistent/path.json", "", ScopeCalendar)
	if err == nil {
		t.Fatal("expected error for nonexistent credentials file")
	}
}

func TestNewHTTPClient_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("not json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewHTTPClient(context.Background(), path, "family@example.com", ScopeGmail)
	if err == nil {
		t.Fatal("expected error for invalid JSON credentials")
	}
}

func TestClientOptions(t *testing.T) {
	if got := len(ClientOptions("/some/path.json")); got != 1 {
		t.Errorf("options without scopes = %d, want 1", got)
	}
	if got := len(ClientOptions("/some/path.json", ScopeDrive)); got != 2 {
		t.Errorf("options with scopes = %d, want 2", got)
	}
}
