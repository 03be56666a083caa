package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRemoveWithChmodRestoresParentMode(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub", "victim")
	if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(target, []byte("x"), 0o400); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(filepath.Dir(target), 0o500); err != nil {
		t.Fatal(err)
	}

	if err := RemoveWithChmod(target); err != nil {
		t.Fatalf("RemoveWithChmod: %v", err)
	}

	info, err := os.Stat(filepath.Dir(target))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o500 {
		t.Errorf("parent mode = %v, want restored 0500", info.Mode().Perm())
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Errorf("expected target removed, stat err = %v", err)
	}
}

func TestRemoveAllWithChmodHandlesReadOnlyTree(t *testing.T) {
	root := t.TempDir()
	victim := filepath.Join(root, "tree")
	nested := filepath.Join(victim, "nested")
	if err := os.MkdirAll(nested, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(nested, "f"), []byte("data"), 0o400); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(nested, 0o500); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(victim, 0o500); err != nil {
		t.Fatal(err)
	}

	if err := RemoveAllWithChmod(victim); err != nil {
		t.Fatalf("RemoveAllWithChmod: %v", err)
	}
	if _, err := os.Stat(victim); !os.IsNotExist(err) {
		t.Errorf("expected tree removed, stat err = %v", err)
	}
}

func TestRemoveAllWithChmodMissingPathIsNoop(t *testing.T) {
	dir := t.TempDir()
	if err := RemoveAllWithChmod(filepath.Join(dir, "does-not-exist")); err != nil {
		t.Errorf("expected nil error for missing path, got %v", err)
	}
}
