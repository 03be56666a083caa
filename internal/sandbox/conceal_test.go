package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConcealFileCreatesWhiteout(t *testing.T) {
	requireRoot(t)

	dir := t.TempDir()
	white := filepath.Join(dir, "whiteout")

	if err := concealFile(white); err != nil {
		t.Fatalf("concealFile: %v", err)
	}

	fi, err := os.Lstat(white)
	if err != nil {
		t.Fatalf("Lstat: %v", err)
	}
	if fi.Mode()&os.ModeCharDevice == 0 {
		t.Errorf("expected a character device, got mode %v", fi.Mode())
	}
}

func TestConcealNonMatchingPatternIsSkipped(t *testing.T) {
	s := &Session{
		overlays: []Overlay{{LowerDir: "/", UpperDir: t.TempDir()}},
		hidden:   make(map[string]struct{}),
	}

	result, err := Conceal(s, []string{"/definitely/does/not/exist/anywhere"})
	if err != nil {
		t.Fatalf("Conceal: %v", err)
	}
	if len(result.PartialDirs) != 0 {
		t.Errorf("expected no partial dirs for a nonexistent path, got %v", result.PartialDirs)
	}
	if len(s.hidden) != 0 {
		t.Errorf("expected nothing recorded as hidden, got %v", s.hidden)
	}
}
