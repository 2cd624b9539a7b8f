package e2ekit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/net/html"
)

// SanitizeHTML strips script, style and noscript subtrees from an HTML
// document so DOM snapshots stay readable and inert.
func SanitizeHTML(source string) (string, error) {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	stripNodes(doc)

	var b strings.Builder
	if err := html.Render(&b, doc); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return b.String(), nil
}

func stripNodes(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type == html.ElementNode {
			switch c.Data {
			case "script", "style", "noscript":
				n.RemoveChild(c)
				continue
			}
		}
		stripNodes(c)
	}
}

// CaptureDOMSnapshot writes a sanitized copy of the current document into
// the artifacts directory, for inspecting what the page looked like when a
// test failed.
func CaptureDOMSnapshot(ctx context.Context, cfg *Config, testName string) (string, error) {
	var source string
	if err := chromedp.Run(ctx, chromedp.OuterHTML("html", &source, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	sanitized, err := SanitizeHTML(source)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifacts directory: %w", err)
	}
	timestamp := time.Now().Format("20060102-150405")
	path := filepath.Join(cfg.OutputDir, fmt.Sprintf("dom-%s-%s.html", slugify(testName), timestamp))
	if err := os.WriteFile(path, []byte(sanitized), 0o644); err != nil {
		return "", fmt.Errorf("failed to write DOM snapshot: %w", err)
	}
	return path, nil
}
