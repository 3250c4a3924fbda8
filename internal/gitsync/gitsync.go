// Package gitsync keeps the PBR cache in a remote Git repository by driving
// the git command line.
package gitsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dyike/twpbr/config"
)

// ErrNotFound is returned when a file to commit or delete cannot be located.
var ErrNotFound = errors.New("file not found")

// Runner runs git serially in a tracked working directory. Init and Download
// may move the working directory into the clone.
type Runner struct {
	dir       string
	repoDir   string
	remoteURL string
	redacted  string
	branch    string
	userName  string
	userEmail string
}

func New(cfg *config.Config) *Runner {
	dir := cfg.ProjectDir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	return &Runner{
		dir:       dir,
		repoDir:   cfg.RepoDir,
		remoteURL: cfg.RemoteURL(),
		redacted:  cfg.RedactedRemoteURL(),
		branch:    cfg.GitBranch,
		userName:  cfg.GitUserName,
		userEmail: cfg.GitUserEmail,
	}
}

// Dir is the current working directory of the runner.
func (r *Runner) Dir() string {
	return r.dir
}

// Run executes git with args in Dir and returns its stdout.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	return r.runIn(ctx, r.dir, args...)
}

func (r *Runner) runIn(ctx context.Context, dir string, args ...string) (string, error) {
	log := logrus.WithFields(logrus.Fields{"module": "gitsync", "cmd": r.redact(strings.Join(args, " "))})

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Debug("running git")
	if err := cmd.Run(); err != nil {
		msg := r.redact(strings.TrimSpace(stderr.String()))
		return stdout.String(), fmt.Errorf("git %s: %w: %s", args[0], err, msg)
	}
	return stdout.String(), nil
}

func (r *Runner) redact(s string) string {
	if r.remoteURL == "" || r.remoteURL == r.redacted {
		return s
	}
	return strings.ReplaceAll(s, r.remoteURL, r.redacted)
}

// Init prepares the local clone: sets the global identity, clones the remote
// into the repo directory when no repository is present, otherwise points
// origin at the configured remote, and finally pulls the branch.
func (r *Runner) Init(ctx context.Context) error {
	log := logrus.WithFields(logrus.Fields{"module": "gitsync", "method": "Init"})

	if r.userName != "" {
		if _, err := r.Run(ctx, "config", "--global", "user.name", r.userName); err != nil {
			log.WithError(err).Warn("set user.name")
		}
	}
	if r.userEmail != "" {
		if _, err := r.Run(ctx, "config", "--global", "user.email", r.userEmail); err != nil {
			log.WithError(err).Warn("set user.email")
		}
	}

	r.Attach()
	if !isRepo(r.dir) {
		log.WithField("remote", r.redacted).Info("cloning cache repository")
		if _, err := r.Run(ctx, "clone", r.remoteURL, r.repoDir); err != nil {
			return err
		}
		r.dir = filepath.Join(r.dir, r.repoDir)
	} else {
		if _, err := r.Run(ctx, "remote", "remove", "origin"); err != nil {
			log.WithError(err).Debug("no origin to remove")
		}
		if _, err := r.Run(ctx, "remote", "add", "origin", r.remoteURL); err != nil {
			return err
		}
	}

	if _, err := r.Run(ctx, "pull", "origin", r.branch); err != nil {
		log.WithError(err).Warn("pull failed")
	}
	log.WithField("dir", r.dir).Info("cache repository ready")
	return nil
}

// Attach moves into the repo directory when Dir is not a repository but the
// repo directory is. It never touches the network.
func (r *Runner) Attach() {
	if isRepo(r.dir) {
		return
	}
	if sub := filepath.Join(r.dir, r.repoDir); isRepo(sub) {
		r.dir = sub
	}
}

// Download pulls the branch; when that fails and the repo directory exists it
// moves into it and tries once more.
func (r *Runner) Download(ctx context.Context) error {
	_, err := r.Run(ctx, "pull", "origin", r.branch)
	if err == nil {
		return nil
	}

	sub := filepath.Join(r.dir, r.repoDir)
	if info, statErr := os.Stat(sub); statErr != nil || !info.IsDir() {
		return err
	}
	logrus.WithFields(logrus.Fields{"module": "gitsync", "method": "Download"}).
		WithError(err).Info("retrying pull inside repo directory")
	r.dir = sub
	_, err = r.Run(ctx, "pull", "origin", r.branch)
	return err
}

// CommitAndPush commits file and pushes the branch. Nothing is committed when
// the staged file has no changes.
func (r *Runner) CommitAndPush(ctx context.Context, file, message string) error {
	log := logrus.WithFields(logrus.Fields{"module": "gitsync", "method": "CommitAndPush", "file": file})

	path, err := r.resolve(file)
	if err != nil {
		return err
	}
	dir, name := filepath.Dir(path), filepath.Base(path)

	if _, err := r.runIn(ctx, dir, "add", name); err != nil {
		return err
	}

	_, err = r.runIn(ctx, dir, "diff", "--cached", "--quiet", "--", name)
	if err == nil {
		log.Info("no changes to commit")
		return nil
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 1 {
		return err
	}

	if _, err := r.runIn(ctx, dir, "commit", "-m", message); err != nil {
		return err
	}
	if _, err := r.runIn(ctx, dir, "push", "origin", r.branch); err != nil {
		return err
	}
	log.Info("pushed to remote")
	return nil
}

// Delete removes file from the repository and pushes the removal. When git
// fails the local copy is deleted instead.
func (r *Runner) Delete(ctx context.Context, file, message string) error {
	log := logrus.WithFields(logrus.Fields{"module": "gitsync", "method": "Delete", "file": file})

	path, err := r.resolve(file)
	if err != nil {
		return err
	}
	dir, name := filepath.Dir(path), filepath.Base(path)

	gitErr := func() error {
		if _, err := r.runIn(ctx, dir, "rm", name); err != nil {
			return err
		}
		if _, err := r.runIn(ctx, dir, "commit", "-m", message); err != nil {
			return err
		}
		_, err := r.runIn(ctx, dir, "push", "origin", r.branch)
		return err
	}()
	if gitErr == nil {
		log.Info("removed from remote")
		return nil
	}

	log.WithError(gitErr).Warn("git removal failed, deleting local file")
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// resolve finds file relative to Dir, falling back to the repo directory.
func (r *Runner) resolve(file string) (string, error) {
	candidates := []string{file}
	if !filepath.IsAbs(file) {
		candidates = []string{
			filepath.Join(r.dir, file),
			filepath.Join(r.dir, r.repoDir, file),
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%s: %w", file, ErrNotFound)
}

func isRepo(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git"))
	return err == nil
}
