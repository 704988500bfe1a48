package store

import (
	stdhtml "html"
	"strings"

	"golang.org/x/net/html"

	"github.com/nhle/taskboard/internal/model"
)

// Sanitize strips markup tags from s and escapes the HTML-special
// characters that remain. The transformation is lossy and is applied once,
// on the way into the database.
//
// Character references in the input are decoded before escaping, so
// "&copy;" is stored as "©" and a typed "&amp;" stays "&amp;" rather than
// becoming "&amp;amp;". This keeps Sanitize idempotent: re-saving a stored
// value leaves it unchanged.
func Sanitize(s string) string {
	if s == "" {
		return s
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF is the only error a strings.Reader can produce.
			return stdhtml.EscapeString(b.String())
		case html.TextToken:
			b.Write(z.Text())
		}
	}
}

func sanitizeTask(t *model.Task) {
	t.Title = Sanitize(t.Title)
	t.Description = Sanitize(t.Description)
	t.Status = model.Status(Sanitize(string(t.Status)))
}
