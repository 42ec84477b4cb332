package resource

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// maxTitleBytes bounds how much of a file is parsed for its title.
const maxTitleBytes = 64 << 10

var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})

	return markdownParserInstance
}

// MarkdownTitle returns the text of the first heading in source, or "".
func MarkdownTitle(source []byte) string {
	doc := getMarkdownParser().Parser().Parse(text.NewReader(source))

	title := ""

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}

		title = inlineText(h, source)

		return ast.WalkStop, nil
	})

	return title
}

// MarkdownTitleFile reads the first heading from the markdown file at path.
func MarkdownTitleFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // Read-only.

	source, err := io.ReadAll(io.LimitReader(f, maxTitleBytes))
	if err != nil {
		return "", fmt.Errorf("read %q: %w", path, err)
	}

	return MarkdownTitle(source), nil
}

func inlineText(n ast.Node, source []byte) string {
	var b strings.Builder

	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(source))

			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}

		case *ast.String:
			b.Write(t.Value)
		}

		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}
