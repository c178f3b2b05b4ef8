// Package markdown parses source documents: it extracts the title from YAML
// frontmatter (falling back to the file stem), the raw body, and a summary,
// and renders full documents to HTML for the document view endpoint.
package markdown

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	pkgerrors "mdsearch/pkg/errors"
)

// summaryRunes is the summary length in Unicode code points.
const summaryRunes = 200

// Document is the parsed form of a markdown source file.
type Document struct {
	Title   string
	Body    string
	Summary string
}

var renderer = goldmark.New(
	goldmark.WithExtensions(extension.Table, extension.Strikethrough),
)

// Parse extracts title, body, and summary from raw markdown bytes. The name
// argument supplies the title fallback (its base name without extension).
// Malformed frontmatter is tolerated: the whole file is treated as body.
// Content that is not valid UTF-8 is a parse failure.
func Parse(name string, raw []byte) (*Document, error) {
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", pkgerrors.ErrParseFailure, name)
	}

	title, body := splitFrontmatter(raw)
	if title == "" {
		title = stem(name)
	}
	body = strings.TrimSpace(body)

	return &Document{
		Title:   title,
		Body:    body,
		Summary: summarize(body),
	}, nil
}

// RenderHTML converts markdown source to HTML, skipping any frontmatter
// block. Tables and fenced code blocks are supported.
func RenderHTML(raw []byte) (string, error) {
	_, body := splitFrontmatter(raw)
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.String(), nil
}

// splitFrontmatter separates a leading YAML frontmatter block from the body
// and returns the frontmatter title (empty when absent or unparseable).
func splitFrontmatter(raw []byte) (title string, body string) {
	content := string(raw)
	const delim = "---"

	if !strings.HasPrefix(content, delim+"\n") && !strings.HasPrefix(content, delim+"\r\n") {
		return "", content
	}
	rest := content[len(delim):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n"+delim)
	if end < 0 {
		return "", content
	}
	block := rest[:end]
	after := rest[end+1+len(delim):]
	// The closing delimiter must sit on its own line.
	if nl := strings.IndexByte(after, '\n'); nl >= 0 {
		if strings.TrimSpace(after[:nl]) != "" {
			return "", content
		}
		after = after[nl+1:]
	} else if strings.TrimSpace(after) != "" {
		return "", content
	} else {
		after = ""
	}

	meta := make(map[string]any)
	if err := yaml.Unmarshal([]byte(block), &meta); err != nil {
		return "", content
	}
	if v, ok := meta["title"]; ok && v != nil {
		// YAML may parse a bare title like 0 or true as non-string.
		title = fmt.Sprintf("%v", v)
	}
	return title, after
}

// summarize returns the first summaryRunes code points of body, truncated
// exactly and not token-aware.
func summarize(body string) string {
	runes := []rune(body)
	if len(runes) <= summaryRunes {
		return body
	}
	return string(runes[:summaryRunes])
}

func stem(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
