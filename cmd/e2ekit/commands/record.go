package commands

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/fatih/color"

	"github.com/uilab/e2ekit"
)

// clickRecord is what the in-page listener captures for each click.
type clickRecord struct {
	TestID    string `json:"testid"`
	Role      string `json:"role"`
	Tag       string `json:"tag"`
	Text      string `json:"text"`
	AriaLabel string `json:"ariaLabel"`
	LabelText string `json:"labelText"`
	ID        string `json:"id"`
	CSS       string `json:"css"`
}

// recorderScript instruments the page: every click (capture phase) pushes
// the element's locator-relevant attributes into a buffer the Go side
// drains by polling.
const recorderScript = `(() => {
	if (window.__e2ekitClicks) return;
	window.__e2ekitClicks = [];
	const implicitRole = el => {
		const tag = el.tagName.toLowerCase();
		if (tag === 'button') return 'button';
		if (tag === 'a' && el.hasAttribute('href')) return 'link';
		if (/^h[1-6]$/.test(tag)) return 'heading';
		if (tag === 'input' && el.type === 'checkbox') return 'checkbox';
		if (tag === 'input' || tag === 'textarea') return 'textbox';
		if (tag === 'nav') return 'navigation';
		return '';
	};
	const cssPath = el => {
		const parts = [];
		while (el && el.nodeType === Node.ELEMENT_NODE && parts.length < 4) {
			let part = el.tagName.toLowerCase();
			if (el.id) { parts.unshift('#' + el.id); break; }
			const cls = Array.from(el.classList).slice(0, 2).join('.');
			if (cls) part += '.' + cls;
			parts.unshift(part);
			el = el.parentElement;
		}
		return parts.join(' > ');
	};
	const labelFor = el => {
		if (el.id) {
			const lbl = document.querySelector('label[for="' + el.id + '"]');
			if (lbl) return lbl.textContent.trim();
		}
		const parent = el.closest('label');
		return parent ? parent.textContent.trim() : '';
	};
	document.addEventListener('click', ev => {
		const el = ev.target;
		if (!(el instanceof Element)) return;
		window.__e2ekitClicks.push({
			testid: el.getAttribute('data-testid') || '',
			role: el.getAttribute('role') || implicitRole(el),
			tag: el.tagName.toLowerCase(),
			text: (el.textContent || '').trim().slice(0, 80),
			ariaLabel: el.getAttribute('aria-label') || '',
			labelText: labelFor(el),
			id: el.id || '',
			css: cssPath(el)
		});
	}, true);
})()`

// Record drives a headed browser against the given URL and prints a
// suggested locator for every element the user clicks.
func Record(args []string) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: e2ekit record <url>")
	}
	target := fs.Arg(0)

	cfg, err := e2ekit.LoadConfig()
	if err != nil {
		return err
	}
	cfg.Headless = false
	// The recording session stays open until interrupted.
	cfg.TestTimeout = 24 * time.Hour

	launcher := e2ekit.NewLauncher(cfg)
	defer launcher.Close()

	sess, err := launcher.NewSession()
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	defer sess.Close()

	ctx := sess.Context()
	if err := chromedp.Run(ctx,
		chromedp.Navigate(target),
		chromedp.Evaluate(recorderScript, nil),
	); err != nil {
		return fmt.Errorf("failed to open %s: %w", target, err)
	}

	fmt.Printf("Recording locators for %s. Click elements in the browser, Ctrl+C to stop.\n\n", target)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sig:
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var clicks []clickRecord
			// Navigation wipes the listener; reinstall and drain in one go.
			err := chromedp.Run(ctx,
				chromedp.Evaluate(recorderScript, nil),
				chromedp.Evaluate(`window.__e2ekitClicks.splice(0)`, &clicks),
			)
			if err != nil {
				continue
			}
			for _, c := range clicks {
				printSuggestion(c)
			}
		}
	}
}

// printSuggestion picks the strongest locator for a clicked element:
// testid, then role+name, then label, then exact text, then a CSS path.
func printSuggestion(c clickRecord) {
	var suggestion string
	switch {
	case c.TestID != "":
		suggestion = fmt.Sprintf("page.ByTestID(%q)", c.TestID)
	case c.Role != "" && accessibleName(c) != "":
		suggestion = fmt.Sprintf("page.ByRole(%q, %q)", c.Role, accessibleName(c))
	case c.LabelText != "":
		suggestion = fmt.Sprintf("page.ByLabel(%q)", c.LabelText)
	case c.Text != "" && len(c.Text) <= 40 && !strings.Contains(c.Text, "\n"):
		suggestion = fmt.Sprintf("page.ByText(%q)", c.Text)
	default:
		suggestion = fmt.Sprintf("page.Locator(%q)", c.CSS)
	}

	color.New(color.Faint).Printf("<%s> ", c.Tag)
	color.New(color.FgGreen).Println(suggestion)
}

func accessibleName(c clickRecord) string {
	if c.AriaLabel != "" {
		return c.AriaLabel
	}
	if len(c.Text) <= 40 && !strings.Contains(c.Text, "\n") {
		return c.Text
	}
	return ""
}
