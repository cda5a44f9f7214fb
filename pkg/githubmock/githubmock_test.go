package githubmock_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	gogithub "github.com/google/go-github/v75/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalbibletools/exporter/pkg/githubmock"
)

func setup(t *testing.T) (*gogithub.Client, *githubmock.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mock := githubmock.New(nil)
	mock.Seed("acme", "data", "main")
	r := gin.New()
	mock.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	gh := gogithub.NewClient(nil)
	u, err := url.Parse(srv.URL + "/")
	require.NoError(t, err)
	gh.BaseURL = u
	return gh, mock
}

// commitFile writes one file on top of main and returns the new commit sha
// without moving the branch.
func commitFile(t *testing.T, gh *gogithub.Client, parent, path, content string) string {
	t.Helper()
	ctx := context.Background()

	blob, _, err := gh.Git.CreateBlob(ctx, "acme", "data", gogithub.Blob{
		Content:  gogithub.Ptr(content),
		Encoding: gogithub.Ptr("utf-8"),
	})
	require.NoError(t, err)

	// Trees resolve from a commit sha as well as a tree sha.
	baseTree, _, err := gh.Git.GetTree(ctx, "acme", "data", parent, false)
	require.NoError(t, err)

	tree, _, err := gh.Git.CreateTree(ctx, "acme", "data", baseTree.GetSHA(), []*gogithub.TreeEntry{{
		Path: gogithub.Ptr(path),
		Mode: gogithub.Ptr("100644"),
		Type: gogithub.Ptr("blob"),
		SHA:  blob.SHA,
	}})
	require.NoError(t, err)

	commit, _, err := gh.Git.CreateCommit(ctx, "acme", "data", gogithub.Commit{
		Message: gogithub.Ptr("add " + path),
		Tree:    &gogithub.Tree{SHA: tree.SHA},
		Parents: []*gogithub.Commit{{SHA: gogithub.Ptr(parent)}},
	}, nil)
	require.NoError(t, err)
	return commit.GetSHA()
}

func TestSeed_IsIdempotent(t *testing.T) {
	mock := githubmock.New(nil)

	first := mock.Seed("acme", "data", "main")
	second := mock.Seed("acme", "data", "main")

	assert.Equal(t, first, second)
	assert.Len(t, mock.History("acme", "data", "main"), 1)
}

func TestBlob_ShaMatchesGit(t *testing.T) {
	gh, _ := setup(t)

	blob, _, err := gh.Git.CreateBlob(context.Background(), "acme", "data", gogithub.Blob{
		Content:  gogithub.Ptr("hello\n"),
		Encoding: gogithub.Ptr("utf-8"),
	})

	require.NoError(t, err)
	// git hash-object of "hello\n"
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", blob.GetSHA())
}

func TestCommitAndFastForward(t *testing.T) {
	gh, mock := setup(t)
	ctx := context.Background()

	ref, _, err := gh.Git.GetRef(ctx, "acme", "data", "heads/main")
	require.NoError(t, err)
	tip := ref.GetObject().GetSHA()

	next := commitFile(t, gh, tip, "eng/01-Genesis.json", `{"id":1}`)
	updated, _, err := gh.Git.UpdateRef(ctx, "acme", "data", "heads/main", gogithub.UpdateRef{
		SHA:   next,
		Force: gogithub.Ptr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, next, updated.GetObject().GetSHA())

	content, ok := mock.File("acme", "data", "main", "eng/01-Genesis.json")
	require.True(t, ok)
	assert.Equal(t, `{"id":1}`, content)
}

func TestUpdateRef_RejectsNonFastForward(t *testing.T) {
	gh, _ := setup(t)
	ctx := context.Background()

	ref, _, err := gh.Git.GetRef(ctx, "acme", "data", "heads/main")
	require.NoError(t, err)
	tip := ref.GetObject().GetSHA()

	// Two writers build on the same tip; only the first may move the branch.
	a := commitFile(t, gh, tip, "eng/01-Genesis.json", `{"id":1}`)
	b := commitFile(t, gh, tip, "fra/01-Genesis.json", `{"id":1}`)

	_, _, err = gh.Git.UpdateRef(ctx, "acme", "data", "heads/main", gogithub.UpdateRef{SHA: a, Force: gogithub.Ptr(false)})
	require.NoError(t, err)

	_, resp, err := gh.Git.UpdateRef(ctx, "acme", "data", "heads/main", gogithub.UpdateRef{SHA: b, Force: gogithub.Ptr(false)})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGetRef_UnknownBranch(t *testing.T) {
	gh, _ := setup(t)

	_, resp, err := gh.Git.GetRef(context.Background(), "acme", "data", "heads/missing")

	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateTree_NullShaDeletesPath(t *testing.T) {
	gh, _ := setup(t)
	ctx := context.Background()

	ref, _, err := gh.Git.GetRef(ctx, "acme", "data", "heads/main")
	require.NoError(t, err)
	withFile := commitFile(t, gh, ref.GetObject().GetSHA(), "eng/01-Genesis.json", `{}`)

	base, _, err := gh.Git.GetTree(ctx, "acme", "data", withFile, false)
	require.NoError(t, err)
	require.Len(t, base.Entries, 1)

	tree, _, err := gh.Git.CreateTree(ctx, "acme", "data", base.GetSHA(), []*gogithub.TreeEntry{{
		Path: gogithub.Ptr("eng/01-Genesis.json"),
		Mode: gogithub.Ptr("100644"),
		Type: gogithub.Ptr("blob"),
	}})
	require.NoError(t, err)
	assert.Empty(t, tree.Entries)
}
