package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"ovlsh.local/sandboxsh/internal/fsutil"
)

// isWhiteout reports whether d is an overlayfs whiteout marker: a character
// device with device number 0 (major 0, minor 0).
func isWhiteout(d fs.DirEntry) bool {
	if d.Type()&os.ModeCharDevice == 0 {
		return false
	}
	info, err := d.Info()
	if err != nil {
		return false
	}
	sys, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return false
	}
	return sys.Rdev == 0
}

// ChangedFiles discovers every change recorded in the session's upper
// layers: deleted paths (whiteouts), modified paths (regular files that
// also exist in the lower tree), and added paths (regular files that
// don't). Directories are walked but not themselves reported as changes;
// only the leaf files/whiteouts they contain are. Must be called while the
// session is mounted.
func (s *Session) ChangedFiles() ([]ChangedFile, error) {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return nil, ErrNotMounted
	}
	overlays := append([]Overlay(nil), s.overlays...)
	s.mu.Unlock()

	var changes []ChangedFile
	for _, overlay := range overlays {
		found, err := discoverOverlayChanges(overlay)
		if err != nil {
			return nil, fmt.Errorf("sandbox: walking upper layer %s: %w", overlay.UpperDir, err)
		}
		changes = append(changes, found...)
	}
	return changes, nil
}

func discoverOverlayChanges(overlay Overlay) ([]ChangedFile, error) {
	var changes []ChangedFile

	err := filepath.WalkDir(overlay.UpperDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == overlay.UpperDir || d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(overlay.UpperDir, path)
		if err != nil {
			return err
		}
		logicalPath := filepath.Join(overlay.LowerDir, rel)
		lowerPath := logicalPath

		if isWhiteout(d) {
			changes = append(changes, ChangedFile{
				Path:      logicalPath,
				Kind:      Deleted,
				UpperPath: path,
				LowerPath: lowerPath,
			})
			return nil
		}

		kind := Added
		var lowerRecord string
		if _, err := os.Lstat(lowerPath); err == nil {
			kind = Modified
			lowerRecord = lowerPath
		}
		changes = append(changes, ChangedFile{
			Path:      logicalPath,
			Kind:      kind,
			UpperPath: path,
			LowerPath: lowerRecord,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// applyOverlayChanges materializes one overlay's upper layer onto its
// lower (real) tree: deletions first, then additions/modifications, so a
// path replaced by a different entry type doesn't collide mid-walk.
func applyOverlayChanges(overlay Overlay) error {
	// Pass 1: deletions (whiteouts).
	if err := filepath.WalkDir(overlay.UpperDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == overlay.UpperDir || d.IsDir() {
			return nil
		}
		if !isWhiteout(d) {
			return nil
		}
		rel, err := filepath.Rel(overlay.UpperDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(overlay.LowerDir, rel)
		if err := os.RemoveAll(target); err != nil {
			log.Printf("sandbox: applying deletion of %s: %v", target, err)
		}
		return nil
	}); err != nil {
		return err
	}

	// Pass 2: directories, then additions/modifications.
	return filepath.WalkDir(overlay.UpperDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == overlay.UpperDir {
			return nil
		}
		rel, err := filepath.Rel(overlay.UpperDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(overlay.LowerDir, rel)

		if d.IsDir() {
			// An opaque directory marker (trusted.overlay.opaque=y) would
			// ideally replace the whole lower subtree on commit; this only
			// covers the file-level whiteout-plus-copy path and ensures the
			// mirror directory exists, same as a non-opaque directory entry.
			return os.MkdirAll(target, 0o755)
		}
		if isWhiteout(d) {
			return nil // handled in pass 1
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := fsutil.CopyFile(path, target); err != nil {
			log.Printf("sandbox: applying change to %s: %v", target, err)
		}
		return nil
	})
}

// Close tears down the session: optionally applying each overlay's changes
// to the real filesystem, then unmounting every overlay in reverse
// discovery order, then best-effort removing scratch storage. It is
// idempotent: calling Close twice is safe, and every step runs even if an
// earlier one failed, so a partially initialized session can always be
// cleaned up.
func (s *Session) Close(keepChanges bool) error {
	s.mu.Lock()
	if !s.mounted {
		s.mu.Unlock()
		return nil
	}
	overlays := append([]Overlay(nil), s.overlays...)
	scratchRoot := s.scratchRoot
	s.mu.Unlock()

	var errs []error

	if keepChanges {
		for _, overlay := range overlays {
			if err := applyOverlayChanges(overlay); err != nil {
				errs = append(errs, fmt.Errorf("applying changes for %s: %w", overlay.MountPoint, err))
			}
		}
	}

	for i := len(overlays) - 1; i >= 0; i-- {
		if err := unmountWithRetry(overlays[i].MountPoint); err != nil {
			errs = append(errs, fmt.Errorf("unmounting %s: %w", overlays[i].MountPoint, err))
		}
	}

	if err := removeScratchBestEffort(scratchRoot); err != nil {
		errs = append(errs, err)
	}

	s.mu.Lock()
	s.mounted = false
	s.overlays = nil
	s.mu.Unlock()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func unmountWithRetry(mountPoint string) error {
	if err := unix.Unmount(mountPoint, 0); err == nil {
		return nil
	}
	// Retry with a lazy/force detach; give up (but continue cleanup)
	// if even that fails.
	for attempt := 0; attempt < 3; attempt++ {
		if err := unix.Unmount(mountPoint, unix.MNT_FORCE|unix.MNT_DETACH); err == nil {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("giving up after retries")
}

func removeScratchBestEffort(scratchRoot string) error {
	if err := fsutil.RemoveAllWithChmod(scratchRoot); err == nil {
		return nil
	}
	// One chmod-and-retry pass, then warn and leak the directory.
	_ = filepath.WalkDir(scratchRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			_ = os.Chmod(path, 0o777)
		} else {
			_ = os.Chmod(path, 0o666)
		}
		return nil
	})
	if err := os.RemoveAll(scratchRoot); err != nil {
		log.Printf("sandbox: leaking scratch dir %s: %v", scratchRoot, err)
		return fmt.Errorf("removing scratch dir %s: %w", scratchRoot, err)
	}
	return nil
}
