package e2ekit

import (
	"strings"
	"testing"
)

func TestSanitizeHTML(t *testing.T) {
	source := `<!DOCTYPE html>
<html>
<head>
<title>Checkout</title>
<style>body { color: red; }</style>
<script src="/app.js"></script>
</head>
<body>
<h1>Your order</h1>
<script>trackPageView()</script>
<noscript>Please enable javascript</noscript>
<p>3 items</p>
</body>
</html>`

	got, err := SanitizeHTML(source)
	if err != nil {
		t.Fatal(err)
	}

	for _, stripped := range []string{"<script", "trackPageView", "<style", "<noscript"} {
		if strings.Contains(got, stripped) {
			t.Errorf("sanitized output still contains %q:\n%s", stripped, got)
		}
	}
	for _, kept := range []string{"<title>Checkout</title>", "<h1>Your order</h1>", "<p>3 items</p>"} {
		if !strings.Contains(got, kept) {
			t.Errorf("sanitized output lost %q:\n%s", kept, got)
		}
	}
}

func TestSanitizeHTMLToleratesFragments(t *testing.T) {
	got, err := SanitizeHTML(`<div class="hero">Welcome</div>`)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "Welcome") {
		t.Errorf("fragment content lost: %s", got)
	}
}
