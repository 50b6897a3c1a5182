// Package sync keeps the markdown export under version control.
package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// GitManager commits the export directory and optionally pushes it.
type GitManager struct {
	RepoPath   string
	Push       bool
	SSHKeyPath string
	AuthorName string
	AuthorMail string
	logger     *slog.Logger
	now        func() time.Time
}

// NewGitManager creates a GitManager for repoPath. The repository is
// initialised on first use when it does not exist.
func NewGitManager(repoPath string, push bool, logger *slog.Logger) *GitManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitManager{
		RepoPath:   repoPath,
		Push:       push,
		AuthorName: "Family Planner",
		AuthorMail: "capture@family-planner.local",
		logger:     logger,
		now:        time.Now,
	}
}

func (g *GitManager) open() (*git.Repository, error) {
	r, err := git.PlainOpen(g.RepoPath)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		if err := os.MkdirAll(g.RepoPath, 0755); err != nil {
			return nil, err
		}
		return git.PlainInit(g.RepoPath, false)
	}
	return r, err
}

// Sync commits all changes with message and pushes when enabled. A clean
// worktree is not an error.
func (g *GitManager) Sync(message string) error {
	r, err := g.open()
	if err != nil {
		return fmt.Errorf("failed to open repo: %w", err)
	}

	w, err := r.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if err := w.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("failed to add changes: %w", err)
	}
	status, err := w.Status()
	if err != nil {
		return fmt.Errorf("failed to read status: %w", err)
	}
	if status.IsClean() {
		return nil
	}

	if message == "" {
		message = fmt.Sprintf("Auto-sync: %s", g.now().Format(time.RFC3339))
	}
	_, err = w.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  g.AuthorName,
			Email: g.AuthorMail,
			When:  g.now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	if !g.Push {
		return nil
	}
	err = r.Push(&git.PushOptions{Auth: g.auth()})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}

// auth loads the SSH key, falling back to no explicit auth.
func (g *GitManager) auth() transport.AuthMethod {
	keyPath := g.SSHKeyPath
	if keyPath == "" {
		home, _ := os.UserHomeDir()
		keyPath = filepath.Join(home, ".ssh", "id_rsa")
	}
	keys, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
	if err != nil {
		g.logger.Warn("could not load ssh key, pushing without explicit auth", "path", keyPath, "error", err)
		return nil
	}
	return keys
}
