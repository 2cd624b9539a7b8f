package e2ekit

import (
	"testing"
	"time"
)

func TestResolveURL(t *testing.T) {
	p := &Page{baseURL: "http://localhost:8080"}

	cases := []struct {
		in   string
		want string
	}{
		{"/", "http://localhost:8080/"},
		{"/login", "http://localhost:8080/login"},
		{"dashboard", "http://localhost:8080/dashboard"},
		{"/search?q=lamp", "http://localhost:8080/search?q=lamp"},
		{"https://other.example.com/health", "https://other.example.com/health"},
	}
	for _, tc := range cases {
		if got := p.resolveURL(tc.in); got != tc.want {
			t.Errorf("resolveURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWithBaseURL(t *testing.T) {
	p := &Page{baseURL: "http://localhost:8080", timeout: 5 * time.Second}

	copied := p.WithBaseURL("http://localhost:39041")
	if copied == p {
		t.Error("WithBaseURL must return a copy")
	}
	if got := copied.resolveURL("/login"); got != "http://localhost:39041/login" {
		t.Errorf("resolveURL = %q, want the rebased URL", got)
	}
	if p.baseURL != "http://localhost:8080" {
		t.Error("original page must be untouched")
	}
	if copied.timeout != p.timeout {
		t.Error("binding fields must be unchanged")
	}
}

func TestWithRecorderKeepsBinding(t *testing.T) {
	p := &Page{baseURL: "http://localhost:8080", timeout: 5 * time.Second}
	rec := &Recorder{}

	copied := p.WithRecorder(rec)
	if copied == p {
		t.Error("WithRecorder must return a copy")
	}
	if copied.recorder != rec {
		t.Error("recorder not attached")
	}
	if copied.baseURL != p.baseURL || copied.timeout != p.timeout {
		t.Error("binding fields must be unchanged")
	}
	if p.recorder != nil {
		t.Error("original page must be untouched")
	}
}
