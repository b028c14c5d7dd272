package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		maxLen int
		want   string
	}{
		{name: "plain", in: "Linear", want: "linear"},
		{name: "punctuation runs", in: "Clicked 'New Issue'!!", want: "clicked_new_issue"},
		{name: "leading and trailing junk", in: "  --Filter by: status--  ", want: "filter_by_status"},
		{name: "non ascii dropped", in: "café déjà", want: "caf_d_j"},
		{name: "truncated", in: "open the project settings page", maxLen: 9, want: "open_the"},
		{name: "empty", in: "!!!", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Make(tt.in, tt.maxLen))
		})
	}
}

func TestWords(t *testing.T) {
	assert.Equal(t, "create_a_new_project_in", Words("Create a new project in Linear named Q4", 5))
	assert.Equal(t, "filter_issues", Words("Filter issues", 5))
	assert.Equal(t, "", Words("", 5))
	assert.Equal(t, "a_b_c_d_e_f", Words("a b c d e f", 0))
}
