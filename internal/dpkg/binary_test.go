package dpkg_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pop-os/popci/internal/config"
	"github.com/pop-os/popci/internal/dpkg"
	"github.com/pop-os/popci/internal/fetcher"
)

func writeDsc(t *testing.T, dir, source string) string {
	t.Helper()
	path := filepath.Join(dir, source+"_2.3-1.dsc")
	content := fmtDsc(source)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write dsc: %v", err)
	}
	return path
}

func fmtDsc(source string) string {
	return "Source: " + source + "\n" +
		"Version: 1:2.3-1\n" +
		"Package-List:\n" +
		" " + source + "-pkg deb utils optional arch=any\n" +
		" " + source + "-pkg-dbgsym deb debug extra arch=any\n" +
		" " + source + "-pkg-udeb udeb debian-installer optional arch=any\n" +
		" linux-udebs-extra deb debug extra arch=any\n" +
		" " + source + "-data deb libs optional arch=all\n"
}

// TestBinaryLinuxFiltersDbgsymAndUdebs covers the "linux" source
// repository's special case: *-dbgsym and linux-udebs-* entries are
// skipped in addition to the universal udeb-kind skip.
func TestBinaryLinuxFiltersDbgsymAndUdebs(t *testing.T) {
	binDir := t.TempDir()
	srcDir := t.TempDir()
	dscPath := writeDsc(t, srcDir, "linux")

	artifact := dpkg.SourceArtifact{DscPath: dscPath, PathVersion: "2.3-1"}
	b := &dpkg.Builder{
		Config: &config.Config{Archs: map[string]bool{"amd64": true}, Dirs: config.Dirs{Binary: binDir}},
		Repo:   fetcher.Repository{Name: "linux"},
	}

	// Pre-create the only two expected .deb files (linux-pkg, linux-data)
	// so the presence cache short-circuits and no subprocess is spawned.
	for _, name := range []string{"linux-pkg_2.3-1_amd64.deb", "linux-data_2.3-1_all.deb"} {
		if err := os.WriteFile(filepath.Join(binDir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}

	debs, err := b.Binary(context.Background(), artifact, "amd64", true)
	if err != nil {
		t.Fatalf("Binary: %v", err)
	}
	if len(debs) != 2 {
		t.Fatalf("debs = %v, want 2 (pkg + data, dbgsym/udeb/udebs filtered)", debs)
	}
}

// TestBinarySystemdFiltersUdebSuffix covers the systemd-specific *-udeb
// skip (distinct from the universal kind=udeb skip, which also applies).
func TestBinarySystemdFiltersUdebSuffix(t *testing.T) {
	binDir := t.TempDir()
	srcDir := t.TempDir()
	path := filepath.Join(srcDir, "systemd_247-1.dsc")
	content := "Source: systemd\nVersion: 247-1\nPackage-List:\n" +
		" systemd deb admin optional arch=any\n" +
		" systemd-udeb deb admin optional arch=any\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	artifact := dpkg.SourceArtifact{DscPath: path, PathVersion: "247-1"}
	b := &dpkg.Builder{
		Config: &config.Config{Dirs: config.Dirs{Binary: binDir}},
		Repo:   fetcher.Repository{Name: "systemd"},
	}
	if err := os.WriteFile(filepath.Join(binDir, "systemd_247-1_amd64.deb"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	debs, err := b.Binary(context.Background(), artifact, "amd64", false)
	if err != nil {
		t.Fatalf("Binary: %v", err)
	}
	if len(debs) != 1 {
		t.Fatalf("debs = %v, want 1 (systemd-udeb skipped for systemd)", debs)
	}
}

// TestBinaryEmptyPackageListReturnsEmpty covers the boundary case where an
// (after-filtering) empty expected set returns nil, a no-op for the
// publisher, without spawning a build.
func TestBinaryEmptyPackageListReturnsEmpty(t *testing.T) {
	binDir := t.TempDir()
	srcDir := t.TempDir()
	path := filepath.Join(srcDir, "foo_1.dsc")
	content := "Source: foo\nVersion: 1\nPackage-List:\n foo-udeb udeb debian-installer optional arch=any\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	artifact := dpkg.SourceArtifact{DscPath: path, PathVersion: "1"}
	b := &dpkg.Builder{
		Config: &config.Config{Dirs: config.Dirs{Binary: binDir}},
		Repo:   fetcher.Repository{Name: "foo"},
	}

	debs, err := b.Binary(context.Background(), artifact, "amd64", false)
	if err != nil {
		t.Fatalf("Binary: %v", err)
	}
	if debs != nil {
		t.Errorf("debs = %v, want nil", debs)
	}
}
