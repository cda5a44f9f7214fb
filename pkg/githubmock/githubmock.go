// Package githubmock is an in-memory stand-in for the GitHub Git Data API:
// blobs, trees, commits and refs, plus the contents endpoint for reading files
// back. It backs the mock-github app for local runs and the exporter's
// end-to-end tests.
//
// Trees are flat (full path → entry) and objects are content addressed, so two
// trees with the same entries share a sha.
package githubmock

import (
	"crypto/sha1" //nolint:gosec // git object ids are sha1
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

// Entry is one path in a tree.
type Entry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}

// Commit is a stored commit object.
type Commit struct {
	SHA     string   `json:"sha"`
	Message string   `json:"message"`
	Tree    string   `json:"tree"`
	Parents []string `json:"parents"`
}

// Server holds every repository's objects and refs.
type Server struct {
	mu      sync.RWMutex
	blobs   map[string]string           // sha → content
	trees   map[string]map[string]Entry // sha → path → entry
	commits map[string]Commit           // sha → commit
	refs    map[string]string           // "owner/repo:heads/main" → commit sha
	log     *slog.Logger
}

// New creates an empty Server.
func New(log *slog.Logger) *Server {
	return &Server{
		blobs:   make(map[string]string),
		trees:   make(map[string]map[string]Entry),
		commits: make(map[string]Commit),
		refs:    make(map[string]string),
		log:     log,
	}
}

// Seed creates owner/repo with an empty root commit on branch, unless the
// branch already exists. It returns the branch's tip.
func (s *Server) Seed(owner, repo, branch string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := refKey(owner, repo, "heads/"+branch)
	if tip, ok := s.refs[key]; ok {
		return tip
	}
	tree := s.putTree(map[string]Entry{})
	commit := s.putCommit("Initial commit", tree, nil)
	s.refs[key] = commit
	return commit
}

// File returns the content of path at the tip of branch.
func (s *Server) File(owner, repo, branch, path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tree, ok := s.resolveTree(owner, repo, branch)
	if !ok {
		return "", false
	}
	e, ok := s.trees[tree][path]
	if !ok {
		return "", false
	}
	return s.blobs[e.SHA], true
}

// History returns commits reachable from branch by first parent, newest first.
func (s *Server) History(owner, repo, branch string) []Commit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Commit
	sha := s.refs[refKey(owner, repo, "heads/"+branch)]
	for sha != "" {
		c, ok := s.commits[sha]
		if !ok {
			break
		}
		out = append(out, c)
		if len(c.Parents) == 0 {
			break
		}
		sha = c.Parents[0]
	}
	return out
}

// Register mounts the Git Data API routes.
func (s *Server) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	git := r.Group("/repos/:owner/:repo/git")
	git.POST("/blobs", s.createBlob)
	git.GET("/blobs/:sha", s.getBlob)
	git.POST("/trees", s.createTree)
	git.GET("/trees/:sha", s.getTree)
	git.POST("/commits", s.createCommit)
	git.GET("/ref/*ref", s.getRef)
	git.PATCH("/refs/*ref", s.updateRef)

	r.GET("/repos/:owner/:repo/commits", s.listCommits)
	r.GET("/repos/:owner/:repo/contents/*path", s.getContents)
}

// ─── handlers ────────────────────────────────────────────────────────────────

func (s *Server) createBlob(c *gin.Context) {
	var req struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}
	content := req.Content
	if req.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(req.Content)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "invalid base64 content"})
			return
		}
		content = string(decoded)
	}

	s.mu.Lock()
	sha := gitSHA("blob", []byte(content))
	s.blobs[sha] = content
	s.mu.Unlock()

	c.JSON(http.StatusCreated, gin.H{"sha": sha, "url": blobURL(c, sha)})
}

func (s *Server) getBlob(c *gin.Context) {
	s.mu.RLock()
	content, ok := s.blobs[c.Param("sha")]
	s.mu.RUnlock()
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"sha":      c.Param("sha"),
		"size":     len(content),
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
	})
}

func (s *Server) createTree(c *gin.Context) {
	var req struct {
		BaseTree string `json:"base_tree"`
		Tree     []struct {
			Path    string  `json:"path"`
			Mode    string  `json:"mode"`
			Type    string  `json:"type"`
			SHA     *string `json:"sha"`
			Content *string `json:"content"`
		} `json:"tree"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(map[string]Entry)
	if req.BaseTree != "" {
		base, ok := s.trees[req.BaseTree]
		if !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "base_tree is not a valid tree"})
			return
		}
		for p, e := range base {
			entries[p] = e
		}
	}

	for _, item := range req.Tree {
		switch {
		case item.Content != nil:
			sha := gitSHA("blob", []byte(*item.Content))
			s.blobs[sha] = *item.Content
			entries[item.Path] = Entry{Path: item.Path, Mode: item.Mode, Type: item.Type, SHA: sha}
		case item.SHA != nil:
			if _, ok := s.blobs[*item.SHA]; !ok {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "tree.sha " + *item.SHA + " is not a valid blob"})
				return
			}
			entries[item.Path] = Entry{Path: item.Path, Mode: item.Mode, Type: item.Type, SHA: *item.SHA}
		default:
			delete(entries, item.Path)
		}
	}

	sha := s.putTree(entries)
	c.JSON(http.StatusCreated, s.treeJSON(sha))
}

func (s *Server) getTree(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sha, ok := s.resolveTree(c.Param("owner"), c.Param("repo"), c.Param("sha"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, s.treeJSON(sha))
}

func (s *Server) createCommit(c *gin.Context) {
	var req struct {
		Message string   `json:"message"`
		Tree    string   `json:"tree"`
		Parents []string `json:"parents"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.trees[req.Tree]; !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "tree is not a valid tree"})
		return
	}
	for _, p := range req.Parents {
		if _, ok := s.commits[p]; !ok {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "parent " + p + " is not a valid commit"})
			return
		}
	}

	sha := s.putCommit(req.Message, req.Tree, req.Parents)
	c.JSON(http.StatusCreated, commitJSON(s.commits[sha]))
}

func (s *Server) getRef(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")

	s.mu.RLock()
	sha, ok := s.refs[refKey(c.Param("owner"), c.Param("repo"), ref)]
	s.mu.RUnlock()
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, refJSON(ref, sha))
}

func (s *Server) updateRef(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")
	var req struct {
		SHA   string `json:"sha"`
		Force bool   `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := refKey(c.Param("owner"), c.Param("repo"), ref)
	current, ok := s.refs[key]
	if !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Reference does not exist"})
		return
	}
	if _, ok := s.commits[req.SHA]; !ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Object does not exist"})
		return
	}
	if !req.Force && !s.descendsFrom(req.SHA, current) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Update is not a fast forward"})
		return
	}

	s.refs[key] = req.SHA
	if s.log != nil {
		s.log.Info("ref updated", "repo", c.Param("owner")+"/"+c.Param("repo"), "ref", ref, "sha", req.SHA)
	}
	c.JSON(http.StatusOK, refJSON(ref, req.SHA))
}

func (s *Server) listCommits(c *gin.Context) {
	branch := c.DefaultQuery("sha", "main")
	history := s.History(c.Param("owner"), c.Param("repo"), branch)
	out := make([]gin.H, 0, len(history))
	for _, commit := range history {
		out = append(out, gin.H{"sha": commit.SHA, "commit": gin.H{"message": commit.Message}})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getContents(c *gin.Context) {
	path := strings.TrimPrefix(c.Param("path"), "/")
	content, ok := s.File(c.Param("owner"), c.Param("repo"), c.DefaultQuery("ref", "main"), path)
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"type":     "file",
		"path":     path,
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(content)),
	})
}

// ─── object storage (callers hold s.mu) ──────────────────────────────────────

func (s *Server) putTree(entries map[string]Entry) string {
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var buf strings.Builder
	for _, p := range paths {
		e := entries[p]
		fmt.Fprintf(&buf, "%s %s %s %s\n", e.Mode, e.Type, e.SHA, p)
	}
	sha := gitSHA("tree", []byte(buf.String()))
	s.trees[sha] = entries
	return sha
}

func (s *Server) putCommit(message, tree string, parents []string) string {
	body, _ := json.Marshal(Commit{Message: message, Tree: tree, Parents: parents}) //nolint:errcheck // plain struct
	sha := gitSHA("commit", body)
	if parents == nil {
		parents = []string{}
	}
	s.commits[sha] = Commit{SHA: sha, Message: message, Tree: tree, Parents: parents}
	return sha
}

// resolveTree accepts a branch name, a commit sha or a tree sha.
func (s *Server) resolveTree(owner, repo, treeish string) (string, bool) {
	if _, ok := s.trees[treeish]; ok {
		return treeish, true
	}
	commitSHA := treeish
	if tip, ok := s.refs[refKey(owner, repo, "heads/"+treeish)]; ok {
		commitSHA = tip
	}
	commit, ok := s.commits[commitSHA]
	if !ok {
		return "", false
	}
	return commit.Tree, true
}

func (s *Server) descendsFrom(sha, ancestor string) bool {
	seen := map[string]bool{}
	queue := []string{sha}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == ancestor {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		queue = append(queue, s.commits[cur].Parents...)
	}
	return false
}

func (s *Server) treeJSON(sha string) gin.H {
	entries := s.trees[sha]
	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	list := make([]Entry, 0, len(paths))
	for _, p := range paths {
		list = append(list, entries[p])
	}
	return gin.H{"sha": sha, "tree": list, "truncated": false}
}

func commitJSON(c Commit) gin.H {
	parents := make([]gin.H, 0, len(c.Parents))
	for _, p := range c.Parents {
		parents = append(parents, gin.H{"sha": p})
	}
	return gin.H{"sha": c.SHA, "message": c.Message, "tree": gin.H{"sha": c.Tree}, "parents": parents}
}

func refJSON(ref, sha string) gin.H {
	return gin.H{"ref": "refs/" + ref, "object": gin.H{"sha": sha, "type": "commit"}}
}

func refKey(owner, repo, ref string) string {
	return owner + "/" + repo + ":" + strings.TrimPrefix(ref, "refs/")
}

func blobURL(c *gin.Context, sha string) string {
	return fmt.Sprintf("/repos/%s/%s/git/blobs/%s", c.Param("owner"), c.Param("repo"), sha)
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"message": "Not Found"})
}

func gitSHA(kind string, body []byte) string {
	h := sha1.New() //nolint:gosec // git object ids are sha1
	fmt.Fprintf(h, "%s %d\x00", kind, len(body))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
