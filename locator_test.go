package e2ekit

import (
	"strings"
	"testing"
)

func TestLocatorConstructionIsPure(t *testing.T) {
	// No browsing context at all: constructing locators must not touch one.
	p := &Page{baseURL: "http://localhost:8080"}

	locators := []*Locator{
		p.Locator(".hero"),
		p.ByText("Sign in"),
		p.ByRole("button", "Submit"),
		p.ByLabel("Email"),
		p.ByTestID("cart"),
	}
	for _, l := range locators {
		if l.page != p {
			t.Errorf("locator %s not bound to its page", l)
		}
	}
}

func TestLocatorSelector(t *testing.T) {
	p := &Page{}

	t.Run("css passes through", func(t *testing.T) {
		sel, _ := p.Locator("nav > a.active").selector()
		if sel != "nav > a.active" {
			t.Errorf("unexpected selector: %s", sel)
		}
	})

	t.Run("testid becomes attribute css", func(t *testing.T) {
		sel, _ := p.ByTestID("hero-heading").selector()
		if sel != `[data-testid="hero-heading"]` {
			t.Errorf("unexpected selector: %s", sel)
		}
	})

	t.Run("text becomes xpath", func(t *testing.T) {
		sel, _ := p.ByText("Add to cart").selector()
		if !strings.Contains(sel, `normalize-space(text())="Add to cart"`) {
			t.Errorf("unexpected selector: %s", sel)
		}
	})

	t.Run("label targets the control", func(t *testing.T) {
		sel, _ := p.ByLabel("Email").selector()
		if !strings.Contains(sel, `//label[normalize-space(text())="Email"]/@for`) {
			t.Errorf("unexpected selector: %s", sel)
		}
	})

	t.Run("label matches aria-label controls", func(t *testing.T) {
		// Inputs like a header search box often carry an aria-label and
		// no <label> element at all.
		sel, _ := p.ByLabel("Search products").selector()
		if !strings.Contains(sel, `@aria-label="Search products"`) {
			t.Errorf("unexpected selector: %s", sel)
		}
	})
}

func TestRoleXPath(t *testing.T) {
	t.Run("implicit tags included", func(t *testing.T) {
		xp := roleXPath("heading", "")
		for _, tag := range []string{"h1", "h6"} {
			if !strings.Contains(xp, "self::"+tag) {
				t.Errorf("expected implicit tag %s in %s", tag, xp)
			}
		}
		if !strings.Contains(xp, `@role="heading"`) {
			t.Errorf("expected explicit role match in %s", xp)
		}
	})

	t.Run("accessible name filters", func(t *testing.T) {
		xp := roleXPath("button", "Sign in")
		if !strings.Contains(xp, `normalize-space(.)="Sign in"`) {
			t.Errorf("expected text name filter in %s", xp)
		}
		if !strings.Contains(xp, `@aria-label="Sign in"`) {
			t.Errorf("expected aria-label filter in %s", xp)
		}
	})

	t.Run("unknown role still matches explicit attribute", func(t *testing.T) {
		xp := roleXPath("tooltip", "")
		if !strings.Contains(xp, `@role="tooltip"`) {
			t.Errorf("unexpected xpath: %s", xp)
		}
	})
}

func TestXpathLiteral(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`plain`, `"plain"`},
		{`it's`, `"it's"`},
		{`say "hi"`, `'say "hi"'`},
		{`both "and" it's`, `concat("both ", '"', "and", '"', " it's")`},
	}
	for _, tc := range cases {
		if got := xpathLiteral(tc.in); got != tc.want {
			t.Errorf("xpathLiteral(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestLocatorString(t *testing.T) {
	p := &Page{}
	cases := []struct {
		loc  *Locator
		want string
	}{
		{p.Locator(".hero"), `css=".hero"`},
		{p.ByText("Sign in"), `text="Sign in"`},
		{p.ByRole("button", "Submit"), `role=button[name="Submit"]`},
		{p.ByRole("navigation", ""), `role=navigation`},
		{p.ByLabel("Email"), `label="Email"`},
		{p.ByTestID("cart"), `testid="cart"`},
	}
	for _, tc := range cases {
		if got := tc.loc.String(); got != tc.want {
			t.Errorf("String() = %s, want %s", got, tc.want)
		}
	}
}
