package discover

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextPage_RelNext(t *testing.T) {
	html := `<html><head><link rel="next" href="/practices/page/2/"></head>
<body><a href="/practices/page/9/">Next</a></body></html>`

	next := NextPage(docFrom(t, html), "https://example.com/practices/")
	assert.Equal(t, "https://example.com/practices/page/2/", next)
}

func TestNextPage_AnchorText(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"next word", "Next"},
		{"older word", "Older posts"},
		{"raquo glyph", "»"},
		{"rsaquo glyph", "›"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := `<html><body><a href="/practices/page/2/">` + tt.text + `</a></body></html>`
			next := NextPage(docFrom(t, html), "https://example.com/practices/")
			assert.Equal(t, "https://example.com/practices/page/2/", next)
		})
	}
}

func TestNextPage_None(t *testing.T) {
	html := `<html><body>
<a href="/practices/page/1/">1</a>
<a href="/practices/sunrise-care/">Sunrise Nexus Care</a>
</body></html>`
	assert.Empty(t, NextPage(docFrom(t, html), "https://example.com/practices/"))
}
