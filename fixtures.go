package e2ekit

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// Scope is the lifetime granularity of a fixture instance.
type Scope int

const (
	// ScopeTest builds a fresh instance for every test and tears it down
	// when the test ends. This is the default; test N's instances are
	// never visible to test N+1.
	ScopeTest Scope = iota

	// ScopeWorker builds one instance per worker process, shared by the
	// tests that process runs sequentially, and torn down only after the
	// worker's last test (Registry.Shutdown, typically from TestMain).
	// Reserve it for expensive, read-only, or intentionally shared setup.
	ScopeWorker
)

func (s Scope) String() string {
	if s == ScopeWorker {
		return "worker"
	}
	return "test"
}

// BuildFunc constructs one fixture value. It may request upstream fixtures
// through the context and register cleanup work with OnCleanup.
type BuildFunc func(fc *FixtureContext) (any, error)

// Definition declares one named fixture: its scope, the fixtures it depends
// on, and its factory. Declared deps are constructed first, in order, so
// teardown (reverse construction order) releases dependents before their
// dependencies.
type Definition struct {
	Name  string
	Scope Scope
	Deps  []string
	Build BuildFunc
}

// Registry maps fixture names to factories. One registry serves a whole
// worker process: per-test state lives in TestScope, per-worker state in
// the registry itself.
type Registry struct {
	cfg *Config

	mu     sync.Mutex
	defs   map[string]*Definition
	worker *scopeState
}

// NewRegistry creates an empty registry bound to a config.
func NewRegistry(cfg *Config) *Registry {
	return &Registry{
		cfg:    cfg,
		defs:   make(map[string]*Definition),
		worker: newScopeState(),
	}
}

// Register adds a fixture definition. Redefining a name is an error.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return errors.New("fixture name cannot be empty")
	}
	if def.Build == nil {
		return fmt.Errorf("fixture %q has no build function", def.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("fixture %q is already registered", def.Name)
	}
	copied := def
	r.defs[def.Name] = &copied
	return nil
}

// MustRegister is Register that panics on error, for package-level wiring.
func (r *Registry) MustRegister(def Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Config returns the config the registry was built with.
func (r *Registry) Config() *Config {
	return r.cfg
}

// Shutdown tears down all worker-scoped fixtures in reverse construction
// order. Call it after m.Run in TestMain; Main does this for you.
func (r *Registry) Shutdown() error {
	r.mu.Lock()
	state := r.worker
	r.worker = newScopeState()
	r.mu.Unlock()
	return state.teardown()
}

// Main wraps m.Run with registry shutdown, returning the exit code for
// os.Exit. A cleanup failure turns a passing run into a failing one.
func (r *Registry) Main(m *testing.M) int {
	code := m.Run()
	if err := r.Shutdown(); err != nil {
		fmt.Printf("fixture shutdown failed: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// NewTestScope opens the per-test fixture scope. Teardown is registered on
// t.Cleanup, so instances live exactly as long as the test.
func (r *Registry) NewTestScope(t *testing.T) *TestScope {
	ts := &TestScope{t: t, reg: r, state: newScopeState()}
	t.Cleanup(func() {
		if err := ts.state.teardown(); err != nil {
			t.Errorf("fixture teardown failed: %v", err)
		}
	})
	return ts
}

// TestScope resolves fixtures for one test.
type TestScope struct {
	t     *testing.T
	reg   *Registry
	state *scopeState
	tb    testing.TB // set by Suite.Run while the body executes
}

// T returns the testing handle assertion helpers should use. Inside
// Suite.Run a failure raised through it reaches the retry and reporting
// layers instead of exiting the test; outside a suite it is the test's
// own *testing.T.
func (ts *TestScope) T() testing.TB {
	if ts.tb != nil {
		return ts.tb
	}
	return ts.t
}

// Get returns the named fixture, constructing it (and its dependencies)
// on first use. Requesting the same name twice in one test returns the
// identical instance.
func (ts *TestScope) Get(name string) (any, error) {
	return ts.reg.resolve(name, ts.state)
}

// MustGet is Get that fails the test on error.
func (ts *TestScope) MustGet(name string) any {
	ts.t.Helper()
	v, err := ts.Get(name)
	if err != nil {
		ts.t.Fatalf("fixture %q: %v", name, err)
	}
	return v
}

// Fixture returns the named fixture with its concrete type, failing the
// test on a resolution or type error.
func Fixture[T any](ts *TestScope, name string) T {
	ts.t.Helper()
	v := ts.MustGet(name)
	typed, ok := v.(T)
	if !ok {
		ts.t.Fatalf("fixture %q has type %T, not %T", name, v, *new(T))
	}
	return typed
}

// FixtureContext is what a BuildFunc sees: the config, upstream fixtures,
// and cleanup registration for the owning scope.
type FixtureContext struct {
	reg   *Registry
	def   *Definition
	state *scopeState // state the fixture under construction belongs to
	test  *scopeState // nil while building a worker fixture
}

// Config returns the suite configuration.
func (fc *FixtureContext) Config() *Config {
	return fc.reg.cfg
}

// Get resolves an upstream fixture by name. A worker-scoped fixture may
// only depend on other worker-scoped fixtures; the reverse is fine.
func (fc *FixtureContext) Get(name string) (any, error) {
	return fc.reg.resolveFrom(name, fc.def, fc.test)
}

// OnCleanup registers cleanup work for the fixture under construction. It
// runs when the owning scope ends, after the cleanups of every fixture
// constructed later.
func (fc *FixtureContext) OnCleanup(fn func()) {
	fc.state.addCleanup(fc.def.Name, fn)
}

// resolve builds or returns the memoized instance of name within the given
// per-test state (worker fixtures are routed to the worker state).
func (r *Registry) resolve(name string, test *scopeState) (any, error) {
	return r.resolveFrom(name, nil, test)
}

func (r *Registry) resolveFrom(name string, from *Definition, test *scopeState) (any, error) {
	r.mu.Lock()
	def, ok := r.defs[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("fixture %q is not registered", name)
	}
	if from != nil && from.Scope == ScopeWorker && def.Scope == ScopeTest {
		return nil, fmt.Errorf("worker fixture %q cannot depend on test fixture %q", from.Name, name)
	}

	state := test
	if def.Scope == ScopeWorker {
		state = r.worker
	}
	if state == nil {
		return nil, fmt.Errorf("fixture %q requires a test scope", name)
	}

	state.mu.Lock()
	if v, done := state.values[name]; done {
		state.mu.Unlock()
		return v, nil
	}
	if state.building[name] {
		state.mu.Unlock()
		return nil, fmt.Errorf("fixture dependency cycle involving %q", name)
	}
	state.building[name] = true
	state.mu.Unlock()

	defer func() {
		state.mu.Lock()
		delete(state.building, name)
		state.mu.Unlock()
	}()

	fc := &FixtureContext{reg: r, def: def, state: state, test: test}

	// Declared dependencies are constructed eagerly and in order, so
	// their cleanups are guaranteed to run after this fixture's.
	for _, dep := range def.Deps {
		if _, err := fc.Get(dep); err != nil {
			return nil, fmt.Errorf("fixture %q: dependency %q: %w", name, dep, err)
		}
	}

	v, err := def.Build(fc)
	if err != nil {
		return nil, fmt.Errorf("fixture %q: %w", name, err)
	}

	state.mu.Lock()
	state.values[name] = v
	state.mu.Unlock()
	return v, nil
}

// scopeState holds the memoized instances and cleanup stack for one scope.
type scopeState struct {
	mu       sync.Mutex
	values   map[string]any
	building map[string]bool
	cleanups []namedCleanup
}

type namedCleanup struct {
	fixture string
	fn      func()
}

func newScopeState() *scopeState {
	return &scopeState{
		values:   make(map[string]any),
		building: make(map[string]bool),
	}
}

// peek returns a memoized value without triggering construction.
func (s *scopeState) peek(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[name]
	return v, ok
}

func (s *scopeState) addCleanup(fixture string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanups = append(s.cleanups, namedCleanup{fixture: fixture, fn: fn})
}

// teardown runs cleanups in reverse construction order. Each cleanup is
// isolated: a panic in one never prevents the siblings from running, and
// all failures are reported together.
func (s *scopeState) teardown() error {
	s.mu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.values = make(map[string]any)
	s.mu.Unlock()

	var errs []error
	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		func() {
			defer func() {
				if r := recover(); r != nil {
					errs = append(errs, fmt.Errorf("fixture %q cleanup panicked: %v", c.fixture, r))
				}
			}()
			c.fn()
		}()
	}
	return errors.Join(errs...)
}
