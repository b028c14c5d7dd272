package tasks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"asana", "linear"}, c.AppNames())

	linear, err := c.All("Linear")
	require.NoError(t, err)
	require.Len(t, linear, 4)
	assert.Equal(t, 1, linear[0].Index)
	assert.Equal(t, "https://linear.app", linear[0].StartURL)
	assert.Equal(t, "create_a_new_project_in", linear[0].Name)

	asana, err := c.All("asana")
	require.NoError(t, err)
	require.Len(t, asana, 4)
	assert.Equal(t, "https://app.asana.com", asana[3].StartURL)
}

func TestCatalog_Select(t *testing.T) {
	c := Default()

	tests := []struct {
		name        string
		indices     []int
		wantIndices []int
		wantInvalid []int
	}{
		{name: "all when empty", indices: nil, wantIndices: []int{1, 2, 3, 4}},
		{name: "subset in given order", indices: []int{3, 1}, wantIndices: []int{3, 1}},
		{name: "invalid skipped", indices: []int{0, 2, 9, -1}, wantIndices: []int{2}, wantInvalid: []int{0, 9, -1}},
		{name: "only invalid", indices: []int{5}, wantIndices: nil, wantInvalid: []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, invalid, err := c.Select("linear", tt.indices)
			require.NoError(t, err)

			var idx []int
			for _, e := range got {
				idx = append(idx, e.Index)
			}
			assert.Equal(t, tt.wantIndices, idx)
			assert.Equal(t, tt.wantInvalid, invalid)
		})
	}
}

func TestCatalog_UnknownApp(t *testing.T) {
	_, _, err := Default().Select("notion", []int{1})
	assert.ErrorIs(t, err, ErrUnknownApp)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name: "valid",
			yaml: "apps:\n  Jira:\n    url: https://example.atlassian.net\n    tasks:\n      - Create an issue titled 'Login bug'\n",
		},
		{name: "no apps", yaml: "apps: {}\n", wantErr: ErrInvalidCatalog},
		{name: "missing url", yaml: "apps:\n  jira:\n    tasks: [a]\n", wantErr: ErrInvalidCatalog},
		{name: "no tasks", yaml: "apps:\n  jira:\n    url: https://x\n", wantErr: ErrInvalidCatalog},
		{name: "blank task", yaml: "apps:\n  jira:\n    url: https://x\n    tasks: ['  ']\n", wantErr: ErrInvalidCatalog},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.yaml))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			entries, err := c.All("jira")
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "create_an_issue_titled_login", entries[0].Name)
		})
	}
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte("apps: [unclosed"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Len(t, c.Apps, 2)

	path := filepath.Join(t.TempDir(), "tasks.yaml")
	require.NoError(t, os.WriteFile(path, []byte("apps:\n  notion:\n    url: https://www.notion.so\n    tasks:\n      - Create a page\n"), 0644))

	c, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"notion"}, c.AppNames())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "navigate_to_linear_issues_page", Slug("Navigate to Linear issues page and filter"))
	assert.Equal(t, "", Slug("!!!"))
}
