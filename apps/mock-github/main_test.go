package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/globalbibletools/exporter/pkg/githubmock"
)

func TestParseRepos(t *testing.T) {
	repos, err := parseRepos(" globalbibletools/data, acme/site ,", "main")

	require.NoError(t, err)
	assert.Equal(t, []repo{
		{Owner: "globalbibletools", Name: "data", Branch: "main"},
		{Owner: "acme", Name: "site", Branch: "main"},
	}, repos)
}

func TestParseRepos_Invalid(t *testing.T) {
	_, err := parseRepos("data", "main")

	assert.Error(t, err)
}

func TestRenderDashboard_ListsSeedCommit(t *testing.T) {
	mock := githubmock.New(nil)
	repos := []repo{{Owner: "gbt", Name: "data", Branch: "main"}}
	mock.Seed("gbt", "data", "main")

	page := renderDashboard(mock, repos)

	assert.Contains(t, page, "gbt/data")
	assert.Contains(t, page, "Initial commit")
}
