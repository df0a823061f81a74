// Package fetch downloads a task's source tree into its working directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Downloader fetches url (optionally at branch) into dir.
type Downloader interface {
	Download(ctx context.Context, repoURL, branch, dir string) error
}

// GitDownloader clones repositories with go-git.
type GitDownloader struct {
	// Depth limits history; 0 clones everything.
	Depth  int
	logger *slog.Logger
}

// NewGitDownloader creates a shallow (depth 1) git downloader.
func NewGitDownloader(logger *slog.Logger) *GitDownloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &GitDownloader{Depth: 1, logger: logger}
}

// Download clones repoURL into dir. If dir already holds a clone of the
// same origin it is left untouched.
func (g *GitDownloader) Download(ctx context.Context, repoURL, branch, dir string) error {
	if repoURL == "" {
		return errors.New("empty repository url")
	}
	safeURL := redactURL(repoURL)

	if same, err := hasOrigin(dir, repoURL); err != nil {
		return err
	} else if same {
		g.logger.Info("repository already present", "url", safeURL, "dir", dir)
		return nil
	}

	opts := &git.CloneOptions{
		URL:   repoURL,
		Depth: g.Depth,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		opts.SingleBranch = true
	}

	g.logger.Info("cloning repository", "url", safeURL, "branch", branch, "dir", dir)
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return fmt.Errorf("git clone %s: %s", safeURL, scrub(err.Error(), repoURL))
	}
	return nil
}

// hasOrigin reports whether dir is a repository whose origin is repoURL.
func hasOrigin(dir, repoURL string) (bool, error) {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return false, nil
		}
		return false, fmt.Errorf("open %s: %w", dir, err)
	}
	remote, err := repo.Remote(git.DefaultRemoteName)
	if err != nil {
		return false, fmt.Errorf("%s is a repository without origin: %w", dir, err)
	}
	urls := remote.Config().URLs
	for _, u := range urls {
		if u == repoURL {
			return true, nil
		}
	}
	if len(urls) == 0 {
		return false, fmt.Errorf("%s has an origin without urls", dir)
	}
	return false, fmt.Errorf("%s already holds a clone of %s", dir, redactURL(urls[0]))
}

// redactURL hides credentials embedded in an https url.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("REDACTED")
	return u.String()
}

// scrub removes any credentials of repoURL that leaked into msg.
func scrub(msg, repoURL string) string {
	u, err := url.Parse(repoURL)
	if err != nil || u.User == nil {
		return msg
	}
	msg = strings.ReplaceAll(msg, repoURL, redactURL(repoURL))
	if name := u.User.Username(); name != "" {
		msg = strings.ReplaceAll(msg, name, "***")
	}
	if pw, ok := u.User.Password(); ok && pw != "" {
		msg = strings.ReplaceAll(msg, pw, "***")
	}
	return msg
}
