package e2ekit

import (
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
)

// locatorStrategy is how a Locator turns into a selector at interaction
// time. Semantic strategies (role, label, text, testid) are preferred over
// structural CSS, as a convention rather than an enforced rule.
type locatorStrategy int

const (
	byCSS locatorStrategy = iota
	byText
	byRole
	byLabel
	byTestID
)

// Locator is a deferred reference to a DOM element. It holds no element
// handle and caches no DOM state: the selector is re-resolved by the
// automation engine on every interaction. Construction is pure.
type Locator struct {
	page      *Page
	strategy  locatorStrategy
	value     string
	qualifier string // accessible name for byRole
}

// String describes the locator for error messages and traces.
func (l *Locator) String() string {
	switch l.strategy {
	case byText:
		return fmt.Sprintf("text=%q", l.value)
	case byRole:
		if l.qualifier != "" {
			return fmt.Sprintf("role=%s[name=%q]", l.value, l.qualifier)
		}
		return fmt.Sprintf("role=%s", l.value)
	case byLabel:
		return fmt.Sprintf("label=%q", l.value)
	case byTestID:
		return fmt.Sprintf("testid=%q", l.value)
	default:
		return fmt.Sprintf("css=%q", l.value)
	}
}

// selector resolves the strategy into a chromedp selector plus the matching
// query option. CSS-expressible strategies stay CSS; the rest become XPath.
func (l *Locator) selector() (string, chromedp.QueryOption) {
	switch l.strategy {
	case byText:
		return fmt.Sprintf(`//*[normalize-space(text())=%s]`, xpathLiteral(l.value)), chromedp.BySearch
	case byRole:
		return roleXPath(l.value, l.qualifier), chromedp.BySearch
	case byLabel:
		lbl := xpathLiteral(l.value)
		return fmt.Sprintf(
			`(//input|//textarea|//select)[@id=//label[normalize-space(text())=%s]/@for or @aria-label=%s]`+
				` | //label[normalize-space(text())=%s]//input`, lbl, lbl, lbl), chromedp.BySearch
	case byTestID:
		return fmt.Sprintf(`[data-testid=%q]`, l.value), chromedp.ByQuery
	default:
		return l.value, chromedp.ByQuery
	}
}

// implicitRoleTags maps ARIA roles to the native tags that carry them
// implicitly.
var implicitRoleTags = map[string][]string{
	"button":     {"button"},
	"link":       {"a"},
	"heading":    {"h1", "h2", "h3", "h4", "h5", "h6"},
	"textbox":    {"textarea", "input"},
	"searchbox":  {"input"},
	"checkbox":   {"input"},
	"navigation": {"nav"},
	"banner":     {"header"},
	"main":       {"main"},
	"list":       {"ul", "ol"},
	"listitem":   {"li"},
	"table":      {"table"},
	"form":       {"form"},
}

// roleXPath builds an XPath matching elements with the given ARIA role,
// explicit or implicit, optionally filtered by accessible name (element
// text or aria-label).
func roleXPath(role, name string) string {
	conds := []string{fmt.Sprintf("@role=%s", xpathLiteral(role))}
	for _, tag := range implicitRoleTags[role] {
		conds = append(conds, "self::"+tag)
	}
	expr := fmt.Sprintf(`//*[%s]`, strings.Join(conds, " or "))
	if name != "" {
		lit := xpathLiteral(name)
		expr += fmt.Sprintf(`[normalize-space(.)=%s or @aria-label=%s or @value=%s]`, lit, lit, lit)
	}
	return expr
}

// xpathLiteral quotes a string for use inside an XPath expression. XPath
// 1.0 has no escape sequences, so strings containing both quote kinds fall
// back to concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, `'`) {
		return `'` + s + `'`
	}
	var parts []string
	for i, chunk := range strings.Split(s, `"`) {
		if i > 0 {
			parts = append(parts, `'"'`)
		}
		if chunk != "" {
			parts = append(parts, `"`+chunk+`"`)
		}
	}
	return "concat(" + strings.Join(parts, ", ") + ")"
}

// isCSS reports whether the strategy resolves to a CSS selector (as
// opposed to XPath).
func (l *Locator) isCSS() bool {
	return l.strategy == byCSS || l.strategy == byTestID
}

// jsElements builds a javascript expression evaluating to the array of
// elements this locator currently matches. Used for instantaneous checks
// that must not auto-wait.
func (l *Locator) jsElements() string {
	sel, _ := l.selector()
	if l.isCSS() {
		return fmt.Sprintf(`Array.from(document.querySelectorAll(%q))`, sel)
	}
	return fmt.Sprintf(`(() => {
		const out = [];
		const it = document.evaluate(%q, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
		for (let i = 0; i < it.snapshotLength; i++) out.push(it.snapshotItem(i));
		return out;
	})()`, sel)
}

// Click waits for the element to be visible, then clicks it. Engine errors
// (not found, timeout) propagate unchanged; no retry happens here.
func (l *Locator) Click() error {
	sel, opt := l.selector()
	return l.page.run("click "+l.String(),
		chromedp.WaitVisible(sel, opt),
		chromedp.Click(sel, opt),
	)
}

// Fill clears the element and types the given value into it.
func (l *Locator) Fill(value string) error {
	sel, opt := l.selector()
	return l.page.run(fmt.Sprintf("fill %s = %q", l.String(), value),
		chromedp.WaitVisible(sel, opt),
		chromedp.Clear(sel, opt),
		chromedp.SendKeys(sel, value, opt),
	)
}

// Press sends a key chord (e.g. kb.Enter) to the element.
func (l *Locator) Press(key string) error {
	sel, opt := l.selector()
	return l.page.run("press "+l.String(),
		chromedp.WaitVisible(sel, opt),
		chromedp.SendKeys(sel, key, opt),
	)
}

// Clear empties the element's value.
func (l *Locator) Clear() error {
	sel, opt := l.selector()
	return l.page.run("clear "+l.String(),
		chromedp.WaitVisible(sel, opt),
		chromedp.Clear(sel, opt),
	)
}

// SelectOption selects the option with the given value in a <select>.
func (l *Locator) SelectOption(value string) error {
	sel, opt := l.selector()
	return l.page.run("select "+l.String(),
		chromedp.WaitVisible(sel, opt),
		chromedp.SetValue(sel, value, opt),
	)
}

// Text returns the element's visible text, waiting for the element first.
func (l *Locator) Text() (string, error) {
	sel, opt := l.selector()
	var out string
	err := l.page.run("text "+l.String(), chromedp.Text(sel, &out, opt))
	return out, err
}

// Value returns the element's form value.
func (l *Locator) Value() (string, error) {
	sel, opt := l.selector()
	var out string
	err := l.page.run("value "+l.String(), chromedp.Value(sel, &out, opt))
	return out, err
}

// Attribute returns the value of the named attribute, and whether it was
// present.
func (l *Locator) Attribute(name string) (string, bool, error) {
	sel, opt := l.selector()
	var out string
	var ok bool
	err := l.page.run("attribute "+l.String(), chromedp.AttributeValue(sel, name, &out, &ok, opt))
	return out, ok, err
}

// WaitVisible blocks until the element is visible or the action timeout
// elapses.
func (l *Locator) WaitVisible() error {
	sel, opt := l.selector()
	return l.page.run("wait visible "+l.String(), chromedp.WaitVisible(sel, opt))
}

// IsVisible reports the element's visibility right now, without waiting.
// A missing element is simply not visible, not an error.
func (l *Locator) IsVisible() (bool, error) {
	expr := fmt.Sprintf(`(() => {
		const els = %s;
		return els.some(el => !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length));
	})()`, l.jsElements())
	var visible bool
	if err := l.page.run("visible? "+l.String(), chromedp.Evaluate(expr, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

// Count returns how many elements currently match, without waiting.
func (l *Locator) Count() (int, error) {
	expr := fmt.Sprintf(`(%s).length`, l.jsElements())
	var n int
	if err := l.page.run("count "+l.String(), chromedp.Evaluate(expr, &n)); err != nil {
		return 0, err
	}
	return n, nil
}
