package sandbox

import "path/filepath"

// normalizePath cleans an absolute p (removing "..", "." and trailing
// slashes) without touching the filesystem; the chrooted process already
// reported an absolute path via `pwd`. A relative p is returned unchanged.
func normalizePath(p string) string {
	if !filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(p)
}
