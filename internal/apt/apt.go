// Package apt assembles and signs the per-pocket APT repository tree
// consumed by `apt`.
package apt

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"
	"github.com/pop-os/popci/internal/config"
	"github.com/pop-os/popci/internal/errs"
	"github.com/pop-os/popci/internal/proc"
)

// Publish regenerates dists/<codename>/ under pocket's directory and signs
// the resulting Release file. It is run once per pocket, single-threaded,
// after every builder has finished.
func Publish(ctx context.Context, cfg *config.Config, pocket, codename, version string) error {
	pocketDir := filepath.Join(cfg.Dirs.Repo, pocket)
	distDir := filepath.Join(pocketDir, "dists", codename)
	compDir := filepath.Join(distDir, "main")
	sourceDir := filepath.Join(compDir, "source")
	pool := filepath.Join("pool", codename)
	context := strings.ReplaceAll(cfg.Context, "/", "-")

	if err := os.MkdirAll(sourceDir, 0755); err != nil {
		return &errs.Filesystem{Op: "create", Path: sourceDir, Cause: err}
	}

	sources, err := proc.Capture(ctx, pocketDir, "apt-ftparchive", "-qq", "sources", pool)
	if err != nil {
		return &errs.Process{Cmd: "apt-ftparchive", Stdout: err.Error()}
	}
	sourcesFile := filepath.Join(sourceDir, "Sources")
	if err := writeFile(sourcesFile, sources); err != nil {
		return err
	}
	if err := proc.Run(ctx, "", "gzip", "--keep", "--force", sourcesFile); err != nil {
		return &errs.Process{Cmd: "gzip", Stdout: err.Error()}
	}
	if err := generateRelease(filepath.Join(sourceDir, "Release"), releaseFields{
		Arch: "source", Context: context, Description: cfg.Description,
		Codename: codename, Version: version, Pocket: pocket,
	}); err != nil {
		return err
	}

	archs := sortedArchs(cfg.Archs)
	for _, arch := range archs {
		binaryDir := filepath.Join(compDir, "binary-"+arch)
		if err := os.MkdirAll(binaryDir, 0755); err != nil {
			return &errs.Filesystem{Op: "create", Path: binaryDir, Cause: err}
		}

		packages, err := proc.Capture(ctx, pocketDir, "apt-ftparchive", "--arch", arch, "packages", pool)
		if err != nil {
			return &errs.Process{Cmd: "apt-ftparchive", Stdout: err.Error()}
		}
		packagesFile := filepath.Join(binaryDir, "Packages")
		if err := writeFile(packagesFile, packages); err != nil {
			return err
		}
		if err := proc.Run(ctx, "", "gzip", "--keep", "--force", packagesFile); err != nil {
			return &errs.Process{Cmd: "gzip", Stdout: err.Error()}
		}
		if err := generateRelease(filepath.Join(binaryDir, "Release"), releaseFields{
			Arch: arch, Context: context, Description: cfg.Description,
			Codename: codename, Version: version, Pocket: pocket,
		}); err != nil {
			return err
		}
	}

	distRelease, err := proc.Capture(ctx, distDir, "apt-ftparchive",
		"-o", "APT::FTPArchive::Release::Origin="+context+"-"+pocket,
		"-o", "APT::FTPArchive::Release::Label="+cfg.Description+" "+pocket,
		"-o", "APT::FTPArchive::Release::Suite="+codename,
		"-o", "APT::FTPArchive::Release::Version="+version,
		"-o", "APT::FTPArchive::Release::Codename="+codename,
		"-o", "APT::FTPArchive::Release::Architectures="+strings.Join(archs, " "),
		"-o", "APT::FTPArchive::Release::Components=main",
		"-o", "APT::FTPArchive::Release::Description="+cfg.Description+" "+codename+" "+version+" "+pocket,
		"release", ".",
	)
	if err != nil {
		return &errs.Process{Cmd: "apt-ftparchive", Stdout: err.Error()}
	}
	distReleasePath := filepath.Join(distDir, "Release")
	if err := writeFile(distReleasePath, distRelease); err != nil {
		return err
	}

	if err := gpgClearsign(ctx, distDir, cfg.Email); err != nil {
		return err
	}
	if err := gpgDetach(ctx, distDir, cfg.Email); err != nil {
		return err
	}

	return nil
}

func generateRelease(path string, fields releaseFields) error {
	var buf bytes.Buffer
	if err := releaseTmpl.Execute(&buf, fields); err != nil {
		return &errs.Filesystem{Op: "render", Path: path, Cause: err}
	}
	return writeFile(path, buf.String())
}

func gpgClearsign(ctx context.Context, distDir, email string) error {
	out := filepath.Join(distDir, "InRelease")
	in := filepath.Join(distDir, "Release")
	if err := proc.Run(ctx, "", "gpg", "--clearsign", "--local-user", email,
		"--batch", "--yes", "--digest-algo", "sha512", "-o", out, in); err != nil {
		return &errs.Process{Cmd: "gpg", Stdout: err.Error()}
	}
	return nil
}

func gpgDetach(ctx context.Context, distDir, email string) error {
	out := filepath.Join(distDir, "Release.gpg")
	in := filepath.Join(distDir, "Release")
	if err := proc.Run(ctx, "", "gpg", "-abs", "--local-user", email,
		"--batch", "--yes", "--digest-algo", "sha512", "-o", out, in); err != nil {
		return &errs.Process{Cmd: "gpg", Stdout: err.Error()}
	}
	return nil
}

// writeFile writes contents to path via an atomic rename-into-place, so a
// reader of the repository tree (e.g. apt itself, polling dists/) never
// observes a partially written Release/Packages/Sources file.
func writeFile(path, contents string) error {
	if err := renameio.WriteFile(path, []byte(contents), 0644); err != nil {
		return &errs.Filesystem{Op: "write", Path: path, Cause: err}
	}
	return nil
}

func sortedArchs(archs map[string]bool) []string {
	out := make([]string, 0, len(archs))
	for a := range archs {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
