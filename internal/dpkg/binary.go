package dpkg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/pop-os/popci/internal/errs"
	"github.com/pop-os/popci/internal/proc"
)

// Binary builds the .deb set for arch from the given source artifact. The
// returned slice preserves Package-List declaration order; an empty slice
// (nil) signals "do not publish" — either no expected binaries or a build
// that left files missing.
func (b *Builder) Binary(ctx context.Context, source SourceArtifact, arch string, buildAll bool) ([]string, error) {
	dscBytes, err := os.ReadFile(source.DscPath)
	if err != nil {
		return nil, &errs.Filesystem{Op: "read", Path: source.DscPath, Cause: err}
	}

	fields, err := parseDsc(string(dscBytes))
	if err != nil {
		return nil, err
	}

	var debs []string
	allPresent := true

	for _, entry := range parsePackageList(fields.packageList) {
		if entry.kind == "udeb" {
			continue
		}
		if b.Repo.Name == "linux" && (strings.HasSuffix(entry.binary, "-dbgsym") || strings.HasPrefix(entry.binary, "linux-udebs-")) {
			continue
		}
		if b.Repo.Name == "systemd" && strings.HasSuffix(entry.binary, "-udeb") {
			continue
		}

		for _, a := range entry.archs {
			var effective string
			switch {
			case a == "any" || a == "linux-any" || a == arch:
				effective = arch
			case buildAll && a == "all":
				effective = "all"
			default:
				continue
			}

			debPath := filepath.Join(b.Config.Dirs.Binary, entry.binary+"_"+source.PathVersion+"_"+effective+".deb")
			if !fileExists(debPath) {
				allPresent = false
			}
			debs = append(debs, debPath)
		}
	}

	if len(debs) == 0 {
		return nil, nil
	}

	buildLog := filepath.Join(b.Config.Dirs.Binary, fields.source+"_"+source.PathVersion+"_"+arch+".build")

	switch {
	case allPresent:
		log.WithField("repo", b.Repo.Name).WithField("arch", arch).Info("binaries already built")
	case fileExists(buildLog):
		log.WithField("repo", b.Repo.Name).WithField("arch", arch).Info("binaries previously failed to build, not retrying")
	default:
		if err := b.sbuild(ctx, source, arch, buildAll); err != nil {
			return nil, b.binaryFailure(buildLog, err)
		}
	}

	for _, debPath := range debs {
		if !fileExists(debPath) {
			log.WithField("path", debPath).Info("missing binary after build, skipping publish")
			return nil, nil
		}
	}

	return debs, nil
}

// sbuild invokes the chroot-building tool. Unlike the source-build tool,
// sbuild is not serialized by a process-wide mutex:
// binary builds for different architectures (and different series) may run
// concurrently, only the presence/log cache above prevents duplicate work
// for the same (source, path-version, arch).
func (b *Builder) sbuild(ctx context.Context, source SourceArtifact, arch string, buildAll bool) error {
	ppaKey, ppaRelease, ppaProposed := ".ppa.asc", "system76/pop", "system76/proposed"
	if b.Config.Dev {
		ppaKey, ppaRelease, ppaProposed = ".ppa-dev.asc", "system76-dev/stable", "system76-dev/pre-stable"
	}
	keyPath := filepath.Join(b.Config.Dirs.Base, ppaKey)

	args := []string{
		"--arch=" + arch,
		"--dist=" + b.Codename,
		"--extra-repository=deb http://us.archive.ubuntu.com/ubuntu/ " + b.Codename + "-updates main restricted universe multiverse",
		"--extra-repository=deb-src http://us.archive.ubuntu.com/ubuntu/ " + b.Codename + "-updates main restricted universe multiverse",
		"--extra-repository=deb http://us.archive.ubuntu.com/ubuntu/ " + b.Codename + "-security main restricted universe multiverse",
		"--extra-repository=deb-src http://us.archive.ubuntu.com/ubuntu/ " + b.Codename + "-security main restricted universe multiverse",
		"--extra-repository=deb http://ppa.launchpad.net/" + ppaRelease + "/ubuntu " + b.Codename + " main",
		"--extra-repository=deb-src http://ppa.launchpad.net/" + ppaRelease + "/ubuntu " + b.Codename + " main",
		"--extra-repository=deb http://ppa.launchpad.net/" + ppaProposed + "/ubuntu " + b.Codename + " main",
		"--extra-repository=deb-src http://ppa.launchpad.net/" + ppaProposed + "/ubuntu " + b.Codename + " main",
		"--extra-repository-key=" + keyPath,
	}
	if buildAll {
		args = append(args, "--arch-all")
	}
	args = append(args, source.DscPath)

	return proc.Run(ctx, b.Config.Dirs.Binary, "sbuild", args...)
}

func (b *Builder) binaryFailure(buildLog string, cause error) error {
	logBytes, err := os.ReadFile(buildLog)
	if err != nil {
		return errs.Wrap("failed to build binaries (log read failed)", cause)
	}
	return errs.Wrap(fmt.Sprintf("failed to build binaries:\n%s", logBytes), cause)
}
