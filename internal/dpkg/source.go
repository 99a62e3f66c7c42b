// Package dpkg drives the external Debian packaging tools: extracting a
// commit's tree, stamping its changelog, building a source package, and
// building per-architecture binary packages inside a chroot.
package dpkg

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/pop-os/popci/internal/config"
	"github.com/pop-os/popci/internal/errs"
	"github.com/pop-os/popci/internal/fetcher"
	"github.com/pop-os/popci/internal/gitrepo"
	"github.com/pop-os/popci/internal/proc"
)

// Builder drives the source and binary build stages for one (repository,
// series, commit) cell.
type Builder struct {
	Config   *config.Config
	Repo     fetcher.Repository
	Codename string
	Release  config.Series
	Git      gitrepo.GitTar
}

// SourceArtifact is the output of Source: a built .dsc + source tarball and
// the filename-safe path version used to name every derived artifact.
type SourceArtifact struct {
	DscPath     string
	TarPath     string
	PathVersion string
}

// buildMu serializes all concurrent invocations of the source-build tool
// process-wide: the tool writes to process-wide temporary paths and uses
// non-reentrant locking internally.
var buildMu sync.Mutex

// Source extracts, patches, stamps, and builds the source package for b's
// commit on b's series.
func (b *Builder) Source(ctx context.Context) (SourceArtifact, error) {
	sourceDir := b.Config.Dirs.Source
	extractDir := filepath.Join(sourceDir, b.Git.ID+"_"+b.Codename)
	debianPath := filepath.Join(extractDir, "debian")
	patchesDir := filepath.Join(debianPath, "patches")
	isLinux := b.Repo.Name == "linux"

	if _, err := os.Stat(extractDir); err == nil {
		if err := os.RemoveAll(extractDir); err != nil {
			return SourceArtifact{}, &errs.Filesystem{Op: "remove", Path: extractDir, Cause: err}
		}
	}
	if err := os.MkdirAll(extractDir, 0755); err != nil {
		return SourceArtifact{}, &errs.Filesystem{Op: "create", Path: extractDir, Cause: err}
	}

	if err := proc.Run(ctx, extractDir, "tar", "xf", b.Git.Archive); err != nil {
		return SourceArtifact{}, &errs.Process{Cmd: "tar", Stdout: err.Error()}
	}

	if info, err := os.Stat(debianPath); err != nil || !info.IsDir() {
		return SourceArtifact{}, &errs.Parse{What: "control", Cause: fmt.Errorf("no debian dir in %s", extractDir)}
	}

	control, err := os.ReadFile(filepath.Join(debianPath, "control"))
	if err != nil {
		return SourceArtifact{}, &errs.Filesystem{Op: "read", Path: filepath.Join(debianPath, "control"), Cause: err}
	}

	sourceName, err := parseSourceFromControl(string(control))
	if err != nil {
		return SourceArtifact{}, err
	}

	changelogVersion, err := proc.Capture(ctx, extractDir, "dpkg-parsechangelog", "--show-field", "Version")
	if err != nil {
		return SourceArtifact{}, &errs.Process{Cmd: "dpkg-parsechangelog", Stdout: err.Error()}
	}
	changelogVersion = strings.TrimRight(changelogVersion, " \t\r\n")

	version, pathVersion := composeVersion(changelogVersion, b.Git.Timestamp, b.Release.Release, b.Git.ID)

	dscPath := filepath.Join(sourceDir, sourceName+"_"+pathVersion+".dsc")
	tarPath := filepath.Join(sourceDir, sourceName+"_"+pathVersion+".tar.xz")

	logVersionOrdering(sourceDir, sourceName, pathVersion)

	if fileExists(dscPath) && fileExists(tarPath) {
		log.WithField("repo", b.Repo.Name).WithField("commit", b.Git.ID).WithField("series", b.Codename).
			Info("source already built")
	} else {
		log.WithField("repo", b.Repo.Name).WithField("commit", b.Git.ID).WithField("series", b.Codename).
			Info("building source")

		changelogPath := filepath.Join(debianPath, "changelog")
		if isLinux {
			changelogPath = filepath.Join(extractDir, "debian.master", "changelog")
		}

		date, err := time.Parse(time.RFC1123Z, b.Git.Datetime)
		if err != nil {
			// Commit dates from `git log --pretty=format:%cD` are RFC-2822
			// with an unpadded day of month ("Mon, 2 Jan 2006 ..."), which
			// RFC1123Z's two-digit day rejects; fall back to a layout that
			// accepts one- or two-digit days.
			date, err = time.Parse("Mon, _2 Jan 2006 15:04:05 -0700", b.Git.Datetime)
			if err != nil {
				return SourceArtifact{}, &errs.Parse{What: "commit date", Cause: err}
			}
		}

		if err := prependChangelogEntry(changelogPath, changelogEntry{
			package_:     sourceName,
			version:      version,
			distribution: b.Codename,
			urgency:      "medium",
			changes:      []string{"* Auto Build"},
			author:       b.Config.Fullname,
			email:        b.Config.Email,
			date:         date,
		}); err != nil {
			return SourceArtifact{}, err
		}

		if _, err := os.Stat(patchesDir); err == nil {
			if err := proc.RunEnv(ctx, extractDir, []string{"QUILT_PATCHES=debian/patches"}, "quilt", "push", "-a"); err != nil {
				return SourceArtifact{}, &errs.Process{Cmd: "quilt", Stdout: err.Error()}
			}
		}

		if isLinux {
			if err := proc.Run(ctx, extractDir, "fakeroot", "debian/rules", "clean"); err != nil {
				return SourceArtifact{}, &errs.Process{Cmd: "fakeroot", Stdout: err.Error()}
			}
		}

		if err := b.debuild(ctx, extractDir); err != nil {
			return SourceArtifact{}, b.sourceFailure(sourceName, pathVersion, err)
		}
	}

	if !fileExists(dscPath) {
		return SourceArtifact{}, &errs.Filesystem{Op: "verify", Path: dscPath, Cause: fmt.Errorf("missing dsc")}
	}
	if !fileExists(tarPath) {
		return SourceArtifact{}, &errs.Filesystem{Op: "verify", Path: tarPath, Cause: fmt.Errorf("missing source tarball")}
	}

	return SourceArtifact{DscPath: dscPath, TarPath: tarPath, PathVersion: pathVersion}, nil
}

// debuild invokes the Debian source-build tool, serialized process-wide.
func (b *Builder) debuild(ctx context.Context, extractDir string) error {
	buildMu.Lock()
	defer buildMu.Unlock()

	sourceDateEpoch := "SOURCE_DATE_EPOCH=" + b.Git.Timestamp
	return proc.Run(ctx, extractDir, "debuild",
		"--preserve-envvar", "PATH",
		"--set-envvar", sourceDateEpoch,
		"--no-tgz-check",
		"-d", "-S",
		"--source-option=--tar-ignore=.git",
	)
}

// sourceFailure reads the source-build log for error context.
func (b *Builder) sourceFailure(sourceName, pathVersion string, cause error) error {
	logName := sourceName + "_" + pathVersion + "_source.build"
	logPath := filepath.Join(b.Config.Dirs.Source, logName)
	logBytes, readErr := os.ReadFile(logPath)
	if readErr != nil {
		return errs.Wrap("failed to build source (log read failed)", cause)
	}
	return errs.Wrap(fmt.Sprintf("failed to build source:\n%s", logBytes), cause)
}

// composeVersion builds the full Debian version and its filename-safe
// suffix: path_version is always the suffix of version after its last
// ':', and version always carries "~<timestamp>~<release>~<sha7>" as a
// proper suffix.
func composeVersion(changelogVersion, timestamp, release, sha string) (version, pathVersion string) {
	version = strings.Join([]string{changelogVersion, timestamp, release, sha[:7]}, "~")
	pathVersion = version
	if idx := strings.LastIndexByte(version, ':'); idx >= 0 {
		pathVersion = version[idx+1:]
	}
	return version, pathVersion
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
