package sandbox

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// Option configures a session at Open time.
type Option func(*openConfig)

type openConfig struct {
	extraSensitive  []string
	broadConceal    bool
}

// WithExtraSensitivePatterns adds caller-supplied glob patterns or literal
// paths to the default concealment set (spec.md S4.1's "extra_sensitive").
func WithExtraSensitivePatterns(patterns ...string) Option {
	return func(c *openConfig) {
		c.extraSensitive = append(c.extraSensitive, patterns...)
	}
}

// WithBroadConcealment switches on the full sensitive-pattern list (ssh
// host keys, shell histories, cloud credentials, keyrings, ...) instead of
// the minimal default set, which only covers unconditional credential
// files. Broad concealment is opt-in rather than default since some of
// these paths are plausible targets for a legitimate session.
func WithBroadConcealment() Option {
	return func(c *openConfig) { c.broadConceal = true }
}

// Open builds a fresh overlay sandbox rooted at baseDir: it validates
// baseDir, creates scratch storage, mounts a root overlay over "/" (so
// chrooted commands find a full toolchain), re-overlays every host submount
// it can, and conceals the default (or broad, see WithBroadConcealment)
// sensitive-path set plus any caller-supplied patterns.
//
// The root overlay's lowerdir is deliberately the real root, not baseDir:
// this means sandboxed commands are not filesystem-confined to baseDir.
// Session.currentDir clamping in Run is the only containment boundary.
func Open(baseDir string, opts ...Option) (*Session, error) {
	cfg := openConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolving base dir: %w", err)
	}
	absBase, err = filepath.EvalSymlinks(absBase)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrBaseMissing
		}
		return nil, fmt.Errorf("sandbox: canonicalizing base dir: %w", err)
	}
	if fi, err := os.Stat(absBase); err != nil || !fi.IsDir() {
		return nil, ErrBaseMissing
	}

	scratchRoot, err := os.MkdirTemp("", "overlay_")
	if err != nil {
		return nil, fmt.Errorf("sandbox: creating scratch dir: %w", err)
	}

	s := &Session{
		BaseDir:     absBase,
		currentDir:  absBase,
		scratchRoot: scratchRoot,
		hidden:      make(map[string]struct{}),
	}
	if exe, err := os.Executable(); err == nil {
		s.execPath = exe
	}

	if err := s.mountRootOverlay(); err != nil {
		_ = os.RemoveAll(scratchRoot)
		return nil, err
	}
	s.mounted = true

	s.discoverAndMountSubmounts()

	patterns := defaultSensitivePatterns(cfg.broadConceal)
	patterns = append(patterns, cfg.extraSensitive...)
	if _, err := Conceal(s, patterns); err != nil {
		log.Printf("sandbox: concealment encountered errors: %v", err)
	}

	return s, nil
}

func (s *Session) upperDir() string  { return filepath.Join(s.scratchRoot, "upper") }
func (s *Session) workDir() string   { return filepath.Join(s.scratchRoot, "work") }
func (s *Session) mergedDir() string { return filepath.Join(s.scratchRoot, "merged") }

func (s *Session) mountRootOverlay() error {
	for _, dir := range []string{s.upperDir(), s.workDir(), s.mergedDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("sandbox: creating scratch layout: %w", err)
		}
	}

	opts := fmt.Sprintf("lowerdir=/,upperdir=%s,workdir=%s", s.upperDir(), s.workDir())
	if err := unix.Mount("overlay", s.mergedDir(), "overlay", 0, opts); err != nil {
		if errors.Is(err, unix.EPERM) {
			return ErrPermissionDenied
		}
		return fmt.Errorf("%w: %v", ErrMountFailed, err)
	}

	s.overlays = append(s.overlays, Overlay{
		UpperDir:   s.upperDir(),
		WorkDir:    s.workDir(),
		LowerDir:   "/",
		MountPoint: s.mergedDir(),
	})
	return nil
}

// discoverAndMountSubmounts enumerates the host's mount table and, for
// every target that exists both on the host and inside the merged view,
// mounts a nested overlay so its contents (invisible to the root overlay,
// since overlayfs only sees the filesystem of its lowerdir) become visible
// and writable-into-upper. Failures for an individual submount are logged
// and skipped, never fatal to Open; a submount that can't be overlaid is
// left exposed with its live host contents instead.
func (s *Session) discoverAndMountSubmounts() {
	targets, err := hostMountTargets()
	if err != nil {
		log.Printf("sandbox: enumerating host mounts: %v", err)
		return
	}

	for _, target := range targets {
		if target == "/" || target == "" {
			continue
		}
		mergedTarget := filepath.Join(s.mergedDir(), target)

		hostFi, err := os.Stat(target)
		if err != nil || !hostFi.IsDir() {
			continue
		}
		mergedFi, err := os.Stat(mergedTarget)
		if err != nil || !mergedFi.IsDir() {
			continue
		}

		if err := s.mountSubmountOverlay(target, mergedTarget); err != nil {
			log.Printf("sandbox: skipping submount %s: %v", target, err)
		}
	}
}

func slugFor(mountTarget string) string {
	return strings.ReplaceAll(strings.Trim(mountTarget, "/"), "/", "_")
}

func (s *Session) mountSubmountOverlay(hostTarget, mergedTarget string) error {
	slug := slugFor(hostTarget)
	upper := filepath.Join(s.scratchRoot, "sub_upper_"+slug)
	work := filepath.Join(s.scratchRoot, "sub_work_"+slug)
	for _, dir := range []string{upper, work} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	opts := fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", hostTarget, upper, work)
	if err := unix.Mount("overlay", mergedTarget, "overlay", 0, opts); err != nil {
		return err
	}

	s.overlays = append(s.overlays, Overlay{
		UpperDir:   upper,
		WorkDir:    work,
		LowerDir:   hostTarget,
		MountPoint: mergedTarget,
	})
	return nil
}
