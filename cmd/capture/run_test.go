package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hairizuan-noorazman/workflow-capture/tasks"
)

func resetRunFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		runApp, runTask, runName, runURL = "", "", "", ""
		runIndices = nil
		runAll = false
	})
}

func TestSelectTasks(t *testing.T) {
	catalog := tasks.Default()

	t.Run("ad-hoc task uses catalogue url", func(t *testing.T) {
		resetRunFlags(t)
		runApp, runTask = "Linear", "Archive the oldest issue"

		keys, selected, err := selectTasks(catalog, func(string, int) {})
		require.NoError(t, err)
		require.Equal(t, []string{"linear#0"}, keys)
		assert.Equal(t, "https://linear.app", selected["linear#0"].StartURL)
		assert.Equal(t, "linear", selected["linear#0"].App)
	})

	t.Run("ad-hoc task outside catalogue needs url", func(t *testing.T) {
		resetRunFlags(t)
		runApp, runTask = "notion", "Create a page"

		_, _, err := selectTasks(catalog, func(string, int) {})
		assert.Error(t, err)
	})

	t.Run("indices skip invalid entries", func(t *testing.T) {
		resetRunFlags(t)
		runApp = "asana"
		runIndices = []int{2, 99}

		var warned []int
		keys, selected, err := selectTasks(catalog, func(_ string, idx int) { warned = append(warned, idx) })
		require.NoError(t, err)
		assert.Equal(t, []string{"asana#2"}, keys)
		assert.Len(t, selected, 1)
		assert.Equal(t, []int{99}, warned)
	})

	t.Run("only invalid indices", func(t *testing.T) {
		resetRunFlags(t)
		runApp = "asana"
		runIndices = []int{0}

		_, _, err := selectTasks(catalog, func(string, int) {})
		assert.Error(t, err)
	})

	t.Run("all apps", func(t *testing.T) {
		resetRunFlags(t)
		runAll = true

		keys, _, err := selectTasks(catalog, func(string, int) {})
		require.NoError(t, err)
		assert.Len(t, keys, 8)
	})

	t.Run("nothing selected", func(t *testing.T) {
		resetRunFlags(t)
		_, _, err := selectTasks(catalog, func(string, int) {})
		assert.Error(t, err)
	})
}

func TestSortTaskKeys(t *testing.T) {
	keys := []string{"linear#10", "asana#2", "linear#2", "linear#1", "asana#11", "asana#0"}
	sortTaskKeys(keys)
	assert.Equal(t, []string{"asana#0", "asana#2", "asana#11", "linear#1", "linear#2", "linear#10"}, keys)
}

func TestSplitTaskKey(t *testing.T) {
	app, idx := splitTaskKey(taskKey("my#app", 7))
	assert.Equal(t, "my#app", app)
	assert.Equal(t, 7, idx)

	app, idx = splitTaskKey("plain")
	assert.Equal(t, "plain", app)
	assert.Equal(t, 0, idx)
}
