// Package content normalizes comment bodies at write time. Bodies arrive in
// one of two shapes: legacy markdown-like text carrying ![alt](url) images
// and [LORDICON](url) icon tokens, or HTML markup (possibly containing
// <lord-icon> elements). The kind is detected once on write and stored with
// the comment, so reads never sniff the format.
package content

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"templora_comments/internal/model"
)

var (
	md = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	policy = bluemonday.UGCPolicy()

	lordiconToken = regexp.MustCompile(`\[LORDICON\]\(([^)\s]+)\)`)
	htmlTag       = regexp.MustCompile(`<[a-zA-Z][^>]*>`)
	markdownImage = regexp.MustCompile(`!\[[^\]]*\]\([^)\s]+\)`)
	stripTags     = regexp.MustCompile(`<[^>]*>`)
)

func init() {
	policy.AllowImages()
	// Inline animated icons used by the marketplace frontend.
	policy.AllowElements("lord-icon")
	policy.AllowAttrs("src", "trigger", "colors", "style").OnElements("lord-icon")
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)
}

// DetectKind classifies a raw body. Anything with real markup is html;
// everything else is legacy token text.
func DetectKind(body string) model.ContentKind {
	if htmlTag.MatchString(body) {
		return model.ContentKindHTML
	}
	return model.ContentKindLegacy
}

// Render converts a raw body of the given kind into sanitized HTML.
// Legacy bodies get their icon tokens expanded and are run through the
// markdown renderer first; html bodies are sanitized as-is.
func Render(body string, kind model.ContentKind) (string, error) {
	if kind == model.ContentKindHTML {
		return policy.Sanitize(body), nil
	}

	expanded := lordiconToken.ReplaceAllString(body, `<lord-icon src="$1" trigger="hover"></lord-icon>`)

	var buf bytes.Buffer
	if err := md.Convert([]byte(expanded), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}

	return string(policy.SanitizeBytes(buf.Bytes())), nil
}

// Empty reports whether a body carries nothing worth storing: no text after
// tag stripping and no embedded media token or element.
func Empty(body string) bool {
	if markdownImage.MatchString(body) || lordiconToken.MatchString(body) {
		return false
	}
	if strings.Contains(body, "<img") || strings.Contains(body, "<lord-icon") {
		return false
	}
	return strings.TrimSpace(stripTags.ReplaceAllString(body, "")) == ""
}
