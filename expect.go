package e2ekit

import (
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"
)

// pollInterval is how often web-first assertions re-check their condition.
const pollInterval = 10 * time.Millisecond

// LocatorExpectation is a web-first assertion against a locator: it polls
// until the condition holds or the action timeout elapses, then fails the
// test with the last observed state. Assertions live here, in tests;
// page objects expose only locators and actions. Inside Suite.Run, pass
// the scope's T handle so a failed assertion reaches the retry and
// reporting layers instead of ending the test on the spot.
type LocatorExpectation struct {
	t   testing.TB
	loc *Locator
}

// Expect starts a web-first assertion on a locator.
func Expect(t testing.TB, loc *Locator) *LocatorExpectation {
	t.Helper()
	return &LocatorExpectation{t: t, loc: loc}
}

// poll re-checks cond until it returns true or the locator's page-level
// action timeout elapses. last carries a description of the most recent
// observation for the failure message.
func (e *LocatorExpectation) poll(desc string, cond func() (bool, string, error)) {
	e.t.Helper()
	timeout := e.loc.page.timeout
	deadline := time.Now().Add(timeout)
	var last string
	for {
		ok, observed, err := cond()
		if err == nil && ok {
			return
		}
		if err != nil {
			last = err.Error()
		} else {
			last = observed
		}
		if time.Now().After(deadline) {
			e.t.Fatalf("expect %s: %s: condition not met within %v (last: %s)",
				e.loc, desc, timeout, last)
			return
		}
		time.Sleep(pollInterval)
	}
}

// Visible asserts the element becomes visible.
func (e *LocatorExpectation) Visible() {
	e.t.Helper()
	e.poll("visible", func() (bool, string, error) {
		ok, err := e.loc.IsVisible()
		return ok, fmt.Sprintf("visible=%t", ok), err
	})
}

// Hidden asserts the element is absent or invisible.
func (e *LocatorExpectation) Hidden() {
	e.t.Helper()
	e.poll("hidden", func() (bool, string, error) {
		ok, err := e.loc.IsVisible()
		return !ok, fmt.Sprintf("visible=%t", ok), err
	})
}

// HasText asserts the element's normalized text equals want.
func (e *LocatorExpectation) HasText(want string) {
	e.t.Helper()
	e.poll(fmt.Sprintf("text == %q", want), func() (bool, string, error) {
		got, err := e.loc.Text()
		return strings.TrimSpace(got) == want, fmt.Sprintf("text=%q", got), err
	})
}

// ContainsText asserts the element's text contains want.
func (e *LocatorExpectation) ContainsText(want string) {
	e.t.Helper()
	e.poll(fmt.Sprintf("text contains %q", want), func() (bool, string, error) {
		got, err := e.loc.Text()
		return strings.Contains(got, want), fmt.Sprintf("text=%q", got), err
	})
}

// HasValue asserts the element's form value equals want.
func (e *LocatorExpectation) HasValue(want string) {
	e.t.Helper()
	e.poll(fmt.Sprintf("value == %q", want), func() (bool, string, error) {
		got, err := e.loc.Value()
		return got == want, fmt.Sprintf("value=%q", got), err
	})
}

// CountIs asserts the number of matching elements equals want.
func (e *LocatorExpectation) CountIs(want int) {
	e.t.Helper()
	e.poll(fmt.Sprintf("count == %d", want), func() (bool, string, error) {
		got, err := e.loc.Count()
		return got == want, fmt.Sprintf("count=%d", got), err
	})
}

// PageExpectation is a web-first assertion against page-level state.
type PageExpectation struct {
	t    testing.TB
	page *Page
}

// ExpectPage starts a web-first assertion on a page.
func ExpectPage(t testing.TB, page *Page) *PageExpectation {
	t.Helper()
	return &PageExpectation{t: t, page: page}
}

func (e *PageExpectation) poll(desc string, cond func() (bool, string, error)) {
	e.t.Helper()
	timeout := e.page.timeout
	deadline := time.Now().Add(timeout)
	var last string
	for {
		ok, observed, err := cond()
		if err == nil && ok {
			return
		}
		if err != nil {
			last = err.Error()
		} else {
			last = observed
		}
		if time.Now().After(deadline) {
			e.t.Fatalf("expect page %s: condition not met within %v (last: %s)", desc, timeout, last)
			return
		}
		time.Sleep(pollInterval)
	}
}

// URLMatches asserts the current location matches the regular expression.
func (e *PageExpectation) URLMatches(pattern string) {
	e.t.Helper()
	re, err := regexp.Compile(pattern)
	if err != nil {
		e.t.Fatalf("expect page url: invalid pattern %q: %v", pattern, err)
		return
	}
	e.poll(fmt.Sprintf("url matches %q", pattern), func() (bool, string, error) {
		got, err := e.page.URL()
		return re.MatchString(got), fmt.Sprintf("url=%q", got), err
	})
}

// TitleContains asserts the document title contains want.
func (e *PageExpectation) TitleContains(want string) {
	e.t.Helper()
	e.poll(fmt.Sprintf("title contains %q", want), func() (bool, string, error) {
		got, err := e.page.Title()
		return strings.Contains(got, want), fmt.Sprintf("title=%q", got), err
	})
}
