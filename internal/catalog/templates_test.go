package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Happy Birthday!", "happy-birthday"},
		{"Congrats on the New Job", "congrats-on-the-new-job"},
		{"  Merry   Christmas  ", "merry-christmas"},
		{"100% Awesome!!!", "100-awesome"},
		{"Été & Soleil", "t-soleil"},
		{"---", "design"},
		{"", "design"},
		{"!!!", "design"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, MakeSlug(tt.title), "title %q", tt.title)
	}
}

func TestMakeSlugTruncates(t *testing.T) {
	long := strings.Repeat("birthday ", 20)
	slug := MakeSlug(long)

	assert.LessOrEqual(t, len(slug), 64)
	assert.False(t, strings.HasPrefix(slug, "-"))
	assert.False(t, strings.HasSuffix(slug, "-"), "truncation must not leave a trailing dash")
}
