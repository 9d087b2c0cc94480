package blacklist

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dpiproxy/internal/proxyerr"
)

func TestContainsAnyMatchesSubstring(t *testing.T) {
	bl := New([][]byte{[]byte("forbidden.test"), []byte("blocked")})

	if !bl.ContainsAny([]byte("prefix-forbidden.test-suffix")) {
		t.Error("expected match for embedded pattern")
	}
	if bl.ContainsAny([]byte("totally fine")) {
		t.Error("expected no match")
	}
}

func TestContainsAnyEmptyBlacklistNeverMatches(t *testing.T) {
	bl := New(nil)
	if bl.ContainsAny([]byte("anything at all")) {
		t.Error("empty blacklist must never match")
	}
}

func TestContainsAnyNilReceiverIsSafe(t *testing.T) {
	var bl *Blacklist
	if bl.ContainsAny([]byte("x")) {
		t.Error("nil blacklist must never match")
	}
	if bl.Len() != 0 {
		t.Error("nil blacklist Len() must be 0")
	}
}

func TestLoadSkipsBlankLinesAndTrimsTrailingWhitespace(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blacklist.txt")
	content := "forbidden.test \n\nblocked.example\r\n   \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	bl, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", bl.Len())
	}
	if !bl.ContainsAny([]byte("x forbidden.test y")) {
		t.Error("expected trimmed pattern to match")
	}
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if !errors.Is(err, proxyerr.ErrConfig) {
		t.Errorf("Load missing file = %v, want ErrConfig", err)
	}
}
