// Package adapters implements the export ports against GitHub and Redis.
package adapters

import (
	"context"
	"fmt"

	gogithub "github.com/google/go-github/v75/github"

	"github.com/globalbibletools/exporter/apps/exporter/internal/export"
)

// Compile-time check: *GitHubRepo implements export.Repository.
var _ export.Repository = (*GitHubRepo)(nil)

// ClientFunc returns the shared GitHub client, creating it on first use.
type ClientFunc func() (*gogithub.Client, error)

// GitHubRepo implements export.Repository with the GitHub Git Data API,
// scoped to a single owner/repository.
type GitHubRepo struct {
	client ClientFunc
	owner  string
	repo   string
}

// NewGitHubRepo creates a GitHubRepo for owner/repo.
func NewGitHubRepo(client ClientFunc, owner, repo string) *GitHubRepo {
	return &GitHubRepo{client: client, owner: owner, repo: repo}
}

func (r *GitHubRepo) git() (*gogithub.GitService, error) {
	gh, err := r.client()
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	return gh.Git, nil
}

// CreateBlob stores content as a utf-8 blob and returns its sha.
func (r *GitHubRepo) CreateBlob(ctx context.Context, content string) (string, error) {
	git, err := r.git()
	if err != nil {
		return "", err
	}
	blob, _, err := git.CreateBlob(ctx, r.owner, r.repo, gogithub.Blob{
		Content:  gogithub.Ptr(content),
		Encoding: gogithub.Ptr("utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("create blob in %s/%s: %w", r.owner, r.repo, err)
	}
	return blob.GetSHA(), nil
}

// GetTreeSHA resolves a tree-ish (e.g. a branch name) to its tree sha.
func (r *GitHubRepo) GetTreeSHA(ctx context.Context, treeish string) (string, error) {
	git, err := r.git()
	if err != nil {
		return "", err
	}
	tree, _, err := git.GetTree(ctx, r.owner, r.repo, treeish, false)
	if err != nil {
		return "", fmt.Errorf("get tree %s: %w", treeish, err)
	}
	return tree.GetSHA(), nil
}

// CreateTree creates a tree that overlays items on baseTree.
func (r *GitHubRepo) CreateTree(ctx context.Context, baseTree string, items []export.TreeItem) (string, error) {
	git, err := r.git()
	if err != nil {
		return "", err
	}
	entries := make([]*gogithub.TreeEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, &gogithub.TreeEntry{
			Path:    gogithub.Ptr(it.Path),
			Mode:    gogithub.Ptr(it.Mode),
			Type:    gogithub.Ptr(it.Type),
			SHA:     it.SHA,
			Content: it.Content,
		})
	}
	tree, _, err := git.CreateTree(ctx, r.owner, r.repo, baseTree, entries)
	if err != nil {
		return "", fmt.Errorf("create tree on %s: %w", baseTree, err)
	}
	return tree.GetSHA(), nil
}

// GetRefSHA returns the commit sha a ref such as "heads/main" points to.
func (r *GitHubRepo) GetRefSHA(ctx context.Context, ref string) (string, error) {
	git, err := r.git()
	if err != nil {
		return "", err
	}
	reference, _, err := git.GetRef(ctx, r.owner, r.repo, ref)
	if err != nil {
		return "", fmt.Errorf("get ref %s: %w", ref, err)
	}
	return reference.GetObject().GetSHA(), nil
}

// CreateCommit creates a commit of treeSHA with the given parents.
func (r *GitHubRepo) CreateCommit(ctx context.Context, treeSHA, message string, parents []string) (string, error) {
	git, err := r.git()
	if err != nil {
		return "", err
	}
	parentCommits := make([]*gogithub.Commit, 0, len(parents))
	for _, p := range parents {
		parentCommits = append(parentCommits, &gogithub.Commit{SHA: gogithub.Ptr(p)})
	}
	commit, _, err := git.CreateCommit(ctx, r.owner, r.repo, gogithub.Commit{
		Message: gogithub.Ptr(message),
		Tree:    &gogithub.Tree{SHA: gogithub.Ptr(treeSHA)},
		Parents: parentCommits,
	}, nil)
	if err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}
	return commit.GetSHA(), nil
}

// UpdateRef moves ref to sha without forcing.
func (r *GitHubRepo) UpdateRef(ctx context.Context, ref, sha string) error {
	git, err := r.git()
	if err != nil {
		return err
	}
	_, _, err = git.UpdateRef(ctx, r.owner, r.repo, ref, gogithub.UpdateRef{
		SHA:   sha,
		Force: gogithub.Ptr(false),
	})
	if err != nil {
		return fmt.Errorf("update ref %s to %s: %w", ref, sha, err)
	}
	return nil
}
