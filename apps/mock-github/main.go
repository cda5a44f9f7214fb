package main

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/globalbibletools/exporter/pkg/githubmock"
	"github.com/globalbibletools/exporter/pkg/logging"
)

// repo is one seeded repository.
type repo struct {
	Owner  string
	Name   string
	Branch string
}

func main() {
	log := logging.New("mock-github")
	mock := githubmock.New(log)

	repos, err := parseRepos(getenv("MOCK_REPOS", "globalbibletools/data"), getenv("MOCK_BRANCH", "main"))
	if err != nil {
		log.Error("invalid MOCK_REPOS", "error", err)
		os.Exit(1)
	}
	for _, r := range repos {
		tip := mock.Seed(r.Owner, r.Name, r.Branch)
		log.Info("seeded repo", "repo", r.Owner+"/"+r.Name, "branch", r.Branch, "sha", tip)
	}

	router := gin.Default()
	mock.Register(router)
	router.GET("/", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, renderDashboard(mock, repos))
	})

	port := getenv("PORT", "9090")
	log.Info("mock-github starting", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// parseRepos reads a comma-separated list of owner/repo names.
func parseRepos(raw, branch string) ([]repo, error) {
	var out []repo
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		owner, name, ok := strings.Cut(item, "/")
		if !ok || owner == "" || name == "" {
			return nil, fmt.Errorf("%q is not owner/repo", item)
		}
		out = append(out, repo{Owner: owner, Name: name, Branch: branch})
	}
	return out, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func renderDashboard(mock *githubmock.Server, repos []repo) string {
	var sections strings.Builder
	for _, r := range repos {
		var rows strings.Builder
		for _, c := range mock.History(r.Owner, r.Name, r.Branch) {
			fmt.Fprintf(&rows, `
        <tr>
          <td style="padding:8px 16px;"><code style="color:#79c0ff;">%s</code></td>
          <td style="padding:8px 16px;">%s</td>
        </tr>`, c.SHA[:7], html.EscapeString(c.Message))
		}
		fmt.Fprintf(&sections, `
    <h2 style="font-size:18px;font-weight:500;margin:24px 0 12px;">%s/%s <span style="color:#8b949e;">@ %s</span></h2>
    <table style="width:100%%;border-collapse:collapse;background:#161b22;border:1px solid #30363d;">
      <tbody>%s</tbody>
    </table>`, html.EscapeString(r.Owner), html.EscapeString(r.Name), html.EscapeString(r.Branch), rows.String())
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
  <title>Mock GitHub</title>
  <style>
    * { margin:0; padding:0; box-sizing:border-box; }
    body { background:#0d1117; color:#c9d1d9; font-family:-apple-system,BlinkMacSystemFont,"Segoe UI",Helvetica,Arial,sans-serif; font-size:14px; }
  </style>
</head>
<body>
  <div style="max-width:860px;margin:0 auto;padding:32px 16px;">
    <h1 style="font-size:24px;font-weight:400;">Mock GitHub</h1>%s
  </div>
</body>
</html>`, sections.String())
}
