// Package git reads the repository context recorded on focus sessions.
package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/xvierd/focus-cli/internal/ports"
)

// ErrNotRepository is returned when no repository encloses the directory.
var ErrNotRepository = errors.New("not inside a git repository")

// Detector implements ports.GitDetector using go-git.
type Detector struct{}

// NewDetector creates a new git detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Ensure Detector implements ports.GitDetector.
var _ ports.GitDetector = (*Detector)(nil)

// Detect returns the branch, HEAD commit and remote name of the repository
// enclosing workingDir. An empty workingDir means the process cwd.
func (d *Detector) Detect(ctx context.Context, workingDir string) (*ports.GitInfo, error) {
	if workingDir == "" {
		var err error
		if workingDir, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	repo, err := git.PlainOpenWithOptions(workingDir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, ErrNotRepository
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	info := &ports.GitInfo{}
	head, err := repo.Head()
	switch {
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Fresh repository with no commits: HEAD names an unborn branch.
		ref, refErr := repo.Reference(plumbing.HEAD, false)
		if refErr == nil {
			info.Branch = ref.Target().Short()
		}
	case err != nil:
		return nil, fmt.Errorf("failed to get HEAD: %w", err)
	default:
		info.Commit = head.Hash().String()
		info.Branch = head.Name().Short()
		if !head.Name().IsBranch() {
			info.Branch = "detached@" + ShortCommit(info.Commit)
		}
	}

	if remotes, err := repo.Remotes(); err == nil && len(remotes) > 0 {
		if urls := remotes[0].Config().URLs; len(urls) > 0 {
			info.Repository = repoName(urls[0])
		}
	}
	return info, nil
}

// repoName turns a remote URL into owner/name.
func repoName(url string) string {
	url = strings.TrimSuffix(url, ".git")
	if rest, ok := strings.CutPrefix(url, "git@"); ok {
		if _, path, found := strings.Cut(rest, ":"); found {
			return path
		}
	}
	if strings.HasPrefix(url, "http") {
		parts := strings.Split(url, "/")
		if len(parts) >= 2 {
			return parts[len(parts)-2] + "/" + parts[len(parts)-1]
		}
	}
	return url
}

// ShortCommit returns the first seven characters of a commit hash.
func ShortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
