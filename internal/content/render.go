// Package content renders user-written Markdown into sanitized HTML.
package content

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer turns comment Markdown into HTML safe to embed in a page.
// A Renderer is safe for concurrent use.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
}

// NewRenderer builds a renderer with GitHub-flavoured Markdown and a UGC sanitizer.
// Raw HTML in the source is dropped before sanitizing.
func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
		),
	)

	policy := bluemonday.UGCPolicy()
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)

	return &Renderer{md: md, policy: policy}
}

// Render converts source to sanitized HTML. If Markdown conversion fails the
// escaped source is returned as a single paragraph.
func (r *Renderer) Render(source string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "<p>" + html.EscapeString(source) + "</p>"
	}
	return strings.TrimSpace(string(r.policy.SanitizeBytes(buf.Bytes())))
}

var mentionPattern = regexp.MustCompile(`(?:^|[^\w@])@([a-z0-9_]{3,24})\b`)

// Mentions returns the distinct usernames referenced as @username, in order of appearance.
func Mentions(source string) []string {
	matches := mentionPattern.FindAllStringSubmatch(strings.ToLower(source), -1)
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m[1]]; ok {
			continue
		}
		seen[m[1]] = struct{}{}
		out = append(out, m[1])
	}
	return out
}
