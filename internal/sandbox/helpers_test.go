package sandbox

import "testing"

func TestChangeKindString(t *testing.T) {
	cases := map[ChangeKind]string{
		Added:         "added",
		Modified:      "modified",
		Deleted:       "deleted",
		ChangeKind(99): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("ChangeKind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/a/b/../c": "/a/c",
		"/a/b/":     "/a/b",
		"relative":  "relative",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsStrictlyUnder(t *testing.T) {
	cases := []struct {
		p, dir string
		want   bool
	}{
		{"/a/b", "/a", true},
		{"/a", "/a", false},
		{"/ab", "/a", false},
		{"/etc", "/", true},
		{"/", "/", false},
	}
	for _, c := range cases {
		if got := isStrictlyUnder(c.p, c.dir); got != c.want {
			t.Errorf("isStrictlyUnder(%q, %q) = %v, want %v", c.p, c.dir, got, c.want)
		}
	}
}

func TestOwnerOverlayPrefersInnermost(t *testing.T) {
	overlays := []Overlay{
		{LowerDir: "/"},
		{LowerDir: "/home"},
		{LowerDir: "/home/alice"},
	}

	got, ok := ownerOverlay(overlays, "/home/alice/.ssh/id_rsa")
	if !ok {
		t.Fatal("expected an owning overlay")
	}
	if got.LowerDir != "/home/alice" {
		t.Errorf("owner = %q, want /home/alice", got.LowerDir)
	}

	got, ok = ownerOverlay(overlays, "/home/bob/file")
	if !ok || got.LowerDir != "/home" {
		t.Errorf("owner = %q (ok=%v), want /home", got.LowerDir, ok)
	}

	got, ok = ownerOverlay(overlays, "/var/log/syslog")
	if !ok || got.LowerDir != "/" {
		t.Errorf("owner = %q (ok=%v), want /", got.LowerDir, ok)
	}
}

func TestSlugFor(t *testing.T) {
	cases := map[string]string{
		"/home/alice": "home_alice",
		"/tmp/":       "tmp",
		"/":           "",
	}
	for in, want := range cases {
		if got := slugFor(in); got != want {
			t.Errorf("slugFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultSensitivePatternsMinimalVsBroad(t *testing.T) {
	minimal := defaultSensitivePatterns(false)
	broad := defaultSensitivePatterns(true)

	if len(broad) <= len(minimal) {
		t.Errorf("broad set (%d) should be a strict superset of minimal (%d)", len(broad), len(minimal))
	}

	found := false
	for _, p := range minimal {
		if p == "/etc/shadow" {
			found = true
		}
	}
	if !found {
		t.Error("minimal set should always include /etc/shadow")
	}
}
