package sandbox

import (
	"errors"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// minimalSensitivePatterns is the default concealment set: credential and
// authentication files whose exposure inside the sandbox would be an
// unconditional problem.
var minimalSensitivePatterns = []string{
	"/etc/shadow",
	"/etc/gshadow",
	"/etc/sudoers",
	"/etc/sudoers.d",
	"/etc/security/opasswd",
	"/home/*/.ssh",
}

// broadSensitivePatterns extends minimalSensitivePatterns with ssh host
// keys, shell histories, and cloud/keyring credentials. Opted into via
// WithBroadConcealment.
var broadSensitivePatterns = []string{
	"/etc/ssh/ssh_host_*",
	"/root/.ssh",
	"/root/.bash_history",
	"/root/.zsh_history",
	"/root/.python_history",
	"/home/*/.bash_history",
	"/home/*/.zsh_history",
	"/home/*/.python_history",
	"/root/.gnupg",
	"/home/*/.gnupg",
	"/root/.aws",
	"/root/.azure",
	"/root/.config/gcloud",
	"/home/*/.aws",
	"/home/*/.azure",
	"/home/*/.config/gcloud",
	"/etc/environment",
	"/root/.kube",
	"/home/*/.kube",
	"/root/.docker/config.json",
	"/home/*/.docker/config.json",
	"/root/.local/share/keyrings",
	"/home/*/.local/share/keyrings",
	"/root/.git-credentials",
	"/home/*/.git-credentials",
	"/root/.netrc",
	"/home/*/.netrc",
}

func defaultSensitivePatterns(broad bool) []string {
	patterns := append([]string(nil), minimalSensitivePatterns...)
	if broad {
		patterns = append(patterns, broadSensitivePatterns...)
	}
	return patterns
}

// ConcealResult reports concealment outcomes that a caller may want to act
// on beyond the Session.hidden set.
type ConcealResult struct {
	// PartialDirs lists directories that fell back to the recursive
	// file-level whiteout pass (no trusted.overlay.opaque support). The
	// fallback never emits nested opaque markers, so empty subdirectory
	// names under these paths may still be visible to a sandboxed command.
	PartialDirs []string
}

// Conceal materializes whiteout device nodes (for files) and opaque
// directory markers (for directories, falling back to a recursive
// file-level whiteout walk when the xattr can't be set) in every overlay's
// upper layer, for each host path matched by patterns. Patterns may be
// absolute paths or glob expressions; a pattern with no glob matches is
// retried as a literal path (it may name a file whose parent is accessible
// but which glob itself skipped). Each path is assigned to exactly one
// overlay: the innermost whose lowerDir contains it.
//
// Per-path failures are logged and skipped; Conceal never fails the whole
// session over one bad pattern.
func Conceal(s *Session, patterns []string) (ConcealResult, error) {
	var result ConcealResult
	var errs []error

	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			matches = []string{pattern}
		}

		for _, abs := range matches {
			overlay, ok := ownerOverlay(s.overlays, abs)
			if !ok {
				continue
			}
			if _, err := os.Lstat(abs); err != nil {
				continue
			}

			if err := concealOne(s, overlay, abs, &result); err != nil {
				errs = append(errs, err)
				log.Printf("sandbox: concealing %s: %v", abs, err)
				continue
			}
			s.mu.Lock()
			s.hidden[abs] = struct{}{}
			s.mu.Unlock()
		}
	}

	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}
	return result, nil
}

// ownerOverlay returns the overlay whose lowerDir is p or a strict parent
// of p, preferring the innermost (longest LowerDir) match.
func ownerOverlay(overlays []Overlay, p string) (Overlay, bool) {
	var best Overlay
	found := false
	for _, o := range overlays {
		if p != o.LowerDir && !isStrictlyUnder(p, o.LowerDir) {
			continue
		}
		if !found || len(o.LowerDir) > len(best.LowerDir) {
			best = o
			found = true
		}
	}
	return best, found
}

func isStrictlyUnder(p, dir string) bool {
	if dir == "/" {
		return p != "/"
	}
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && len(rel) > 0 &&
		!(len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator))
}

func concealOne(s *Session, overlay Overlay, abs string, result *ConcealResult) error {
	rel, err := filepath.Rel(overlay.LowerDir, abs)
	if err != nil {
		return err
	}
	white := filepath.Join(overlay.UpperDir, rel)
	if err := os.MkdirAll(filepath.Dir(white), 0o755); err != nil {
		return err
	}

	fi, err := os.Lstat(abs)
	if err != nil {
		return err
	}

	if fi.IsDir() {
		return concealDir(white, abs, overlay, result)
	}
	return concealFile(white)
}

// concealFile creates a character-device whiteout (major 0, minor 0, mode
// 0000): the overlayfs convention for "the lower-layer entry is deleted".
func concealFile(white string) error {
	_ = os.Remove(white)
	if err := unix.Mknod(white, unix.S_IFCHR, 0); err != nil {
		return err
	}
	return os.Chmod(white, 0o000)
}

// concealDir creates an opaque directory (trusted.overlay.opaque=y), which
// tells overlayfs to hide all lower-layer entries beneath it. If the xattr
// can't be set (unsupported filesystem, missing capability), falls back to
// a recursive file-level whiteout pass; that fallback never produces inner
// opaque directories, so it can leak the names of empty subdirectories.
func concealDir(white, abs string, overlay Overlay, result *ConcealResult) error {
	if err := os.MkdirAll(white, 0o755); err != nil {
		return err
	}

	if err := unix.Setxattr(white, "trusted.overlay.opaque", []byte("y"), 0); err != nil {
		result.PartialDirs = append(result.PartialDirs, abs)
		return concealWhiteoutsRecursive(abs, overlay)
	}
	return nil
}

func concealWhiteoutsRecursive(dir string, overlay Overlay) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var firstErr error
	for _, entry := range entries {
		entryAbs := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			if err := concealWhiteoutsRecursive(entryAbs, overlay); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}

		rel, err := filepath.Rel(overlay.LowerDir, entryAbs)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		white := filepath.Join(overlay.UpperDir, rel)
		if err := os.MkdirAll(filepath.Dir(white), 0o755); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := concealFile(white); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
