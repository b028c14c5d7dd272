// Package tasks holds the catalogue of workflow tasks that can be captured,
// grouped by app.
package tasks

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hairizuan-noorazman/workflow-capture/internal/slug"
)

var (
	// ErrUnknownApp is returned when the catalogue has no tasks for an app.
	ErrUnknownApp = errors.New("unknown app")

	// ErrInvalidCatalog is returned when a catalogue file fails validation.
	ErrInvalidCatalog = errors.New("invalid task catalog")
)

// SlugWords is the number of description words kept in a derived task name.
const SlugWords = 5

// App is one app's entry in the catalogue.
type App struct {
	URL   string   `yaml:"url"`
	Tasks []string `yaml:"tasks"`
}

// Catalog maps a lowercase app name to its tasks.
type Catalog struct {
	Apps map[string]App `yaml:"apps"`
}

// Entry is a task picked from the catalogue. Index is 1-based.
type Entry struct {
	App         string
	Index       int
	Name        string
	Description string
	StartURL    string
}

// Default returns the built-in catalogue.
func Default() *Catalog {
	return &Catalog{Apps: map[string]App{
		"linear": {
			URL: "https://linear.app",
			Tasks: []string{
				"Create a new project in Linear with name 'Galactus', priority 'High', set start date to today, and target date to 2 weeks from now. Add summary 'Project management system for cosmic scale applications'",
				"Create a new issue in Linear with title 'Implement authentication system', add description 'Need to add OAuth2 support', set priority to 'Urgent', assign project as 'Galactus' and status as 'In Progress'",
				"Create a new issue in Linear with title 'Fix data synchronization bug', add description 'Investigate and resolve data sync issues between services', set priority to 'High', assign project as 'Galactus' and status as 'TODO'",
				"Navigate to Linear issues page and filter issues by status 'In Progress'",
			},
		},
		"asana": {
			URL: "https://app.asana.com",
			Tasks: []string{
				"Create a new project in Asana named 'Website Redesign' with layout 'List', add description 'Complete redesign of company website with modern UI/UX', and add 3 tasks: 'Design mockups', 'Frontend implementation', and 'QA testing'",
				"Create a new task in Asana with title 'Implement dark mode feature', add description 'Add dark mode toggle to user settings with persistent preference storage', and add it to the 'Website Redesign' project",
				"Find the task 'Frontend implementation' under project 'Website Redesign' in Asana and add 3 subtasks: 'Setup React components', 'Implement responsive layouts', and 'Add animations and transitions'",
				"In the 'Website Redesign' project in Asana, move the task 'Design mockups' from 'To Do' section to 'In Progress' section, then add a comment 'Started working on initial wireframes'",
			},
		},
	}}
}

// Parse decodes a YAML catalogue.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing task catalog: %w", err)
	}
	if len(c.Apps) == 0 {
		return nil, fmt.Errorf("%w: no apps defined", ErrInvalidCatalog)
	}

	apps := make(map[string]App, len(c.Apps))
	for name, app := range c.Apps {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			return nil, fmt.Errorf("%w: empty app name", ErrInvalidCatalog)
		}
		if app.URL == "" {
			return nil, fmt.Errorf("%w: app %q missing required 'url' field", ErrInvalidCatalog, name)
		}
		if len(app.Tasks) == 0 {
			return nil, fmt.Errorf("%w: app %q has no tasks", ErrInvalidCatalog, name)
		}
		for i, t := range app.Tasks {
			if strings.TrimSpace(t) == "" {
				return nil, fmt.Errorf("%w: app %q task %d is empty", ErrInvalidCatalog, name, i+1)
			}
		}
		apps[key] = app
	}
	c.Apps = apps
	return &c, nil
}

// Load returns the built-in catalogue, or the catalogue at path when path is
// not empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading task catalog: %w", err)
	}
	return Parse(data)
}

// AppNames returns the catalogue's apps in sorted order.
func (c *Catalog) AppNames() []string {
	names := make([]string, 0, len(c.Apps))
	for name := range c.Apps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every task of app.
func (c *Catalog) All(app string) ([]Entry, error) {
	key := strings.ToLower(app)
	a, ok := c.Apps[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownApp, app)
	}
	entries := make([]Entry, len(a.Tasks))
	for i, desc := range a.Tasks {
		entries[i] = newEntry(key, a.URL, i+1, desc)
	}
	return entries, nil
}

// Select returns the tasks of app at the given 1-based indices, in the order
// given. Out-of-range indices are returned separately so the caller can warn
// and carry on with the rest. An empty indices slice selects every task.
func (c *Catalog) Select(app string, indices []int) ([]Entry, []int, error) {
	all, err := c.All(app)
	if err != nil {
		return nil, nil, err
	}
	if len(indices) == 0 {
		return all, nil, nil
	}

	var selected []Entry
	var invalid []int
	for _, idx := range indices {
		if idx < 1 || idx > len(all) {
			invalid = append(invalid, idx)
			continue
		}
		selected = append(selected, all[idx-1])
	}
	return selected, invalid, nil
}

// Slug derives a task name from its description.
func Slug(description string) string {
	return slug.Words(description, SlugWords)
}

func newEntry(app, url string, index int, desc string) Entry {
	desc = strings.TrimSpace(desc)
	return Entry{
		App:         app,
		Index:       index,
		Name:        Slug(desc),
		Description: desc,
		StartURL:    url,
	}
}
