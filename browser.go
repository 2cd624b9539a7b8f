package e2ekit

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Launcher owns the browser allocator for one worker process. Sessions are
// created from it per test (or per worker, for intentionally shared setup).
type Launcher struct {
	cfg         *Config
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewLauncher prepares a browser allocator from the config. When
// RemoteChromeURL is set (e.g. a chromedp/headless-shell container) the
// launcher attaches to that browser instead of executing a local one.
func NewLauncher(cfg *Config) *Launcher {
	if cfg.RemoteChromeURL != "" {
		allocCtx, cancel := chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteChromeURL)
		return &Launcher{cfg: cfg, allocCtx: allocCtx, allocCancel: cancel}
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for CI environments
		chromedp.WindowSize(1920, 1080),
	}
	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}

	// CI-specific flags that keep background throttling from making
	// auto-waits flaky.
	opts = append(opts,
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-background-networking", true),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &Launcher{cfg: cfg, allocCtx: allocCtx, allocCancel: cancel}
}

// Close releases the allocator and every browser it started.
func (l *Launcher) Close() {
	l.allocCancel()
}

// Session is one browsing context: an isolated browser tab bound to a
// project profile and a per-test deadline. The session owns the context
// lifetime; Pages reference it but never outlive it.
type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *Config
	project Project
}

// NewSession creates a browsing context for the project selected in the
// config (the zero profile when none is selected).
func (l *Launcher) NewSession() (*Session, error) {
	var project Project
	if l.cfg.Project != "" {
		p, ok := l.cfg.ProjectByName(l.cfg.Project)
		if !ok {
			return nil, fmt.Errorf("unknown project %q", l.cfg.Project)
		}
		project = p
	}
	// Base URL and timeout overrides from the profile apply to everything
	// built on this session.
	cfg, err := l.cfg.ForProject(l.cfg.Project)
	if err != nil {
		return nil, err
	}

	ctx, cancel := chromedp.NewContext(l.allocCtx)
	ctx, timeoutCancel := context.WithTimeout(ctx, cfg.TestTimeout)
	combinedCancel := func() {
		timeoutCancel()
		cancel()
	}

	var setup []chromedp.Action
	if project.ViewportWidth > 0 && project.ViewportHeight > 0 {
		setup = append(setup, chromedp.EmulateViewport(
			int64(project.ViewportWidth), int64(project.ViewportHeight)))
	}
	if project.UserAgent != "" {
		setup = append(setup, emulation.SetUserAgentOverride(project.UserAgent))
	}
	if len(setup) > 0 {
		if err := chromedp.Run(ctx, setup...); err != nil {
			combinedCancel()
			return nil, fmt.Errorf("failed to apply project %q profile: %w", project.Name, err)
		}
	}

	// Accept any javascript dialog so a stray confirm() can't hang an
	// auto-waiting action.
	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev.(type) {
		case *page.EventJavascriptDialogOpening:
			go func() {
				_ = chromedp.Run(ctx, page.HandleJavaScriptDialog(true))
			}()
		}
	})

	return &Session{ctx: ctx, cancel: combinedCancel, cfg: cfg, project: project}, nil
}

// Context exposes the underlying chromedp context. Most callers should go
// through Page instead.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Project returns the profile this session was created under.
func (s *Session) Project() Project {
	return s.project
}

// Close tears down the browsing context.
func (s *Session) Close() {
	s.cancel()
}
