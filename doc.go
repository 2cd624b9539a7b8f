// Package e2ekit is a starter kit for browser end-to-end tests built on
// chromedp and go test.
//
// The kit has three layers. Page objects wrap a browsing context behind
// lazy locators (see Page and Locator): construction is pure, selectors
// resolve on every interaction, and assertions poll via Expect until the
// condition holds or the action timeout elapses. Fixtures (see Registry
// and Suite) are named, lazily constructed, memoized dependencies with
// per-test or per-worker lifetime and reverse-order teardown. The config
// layer (see Config) reads e2ekit.yaml plus .env/.env.local files and
// E2E_* variables, with project profiles for cross-browser runs.
//
// Test execution stays with go test; the e2ekit command wraps it with
// headed runs, filtering, reports, a picker UI, a debugger bridge, and a
// locator recorder.
package e2ekit
