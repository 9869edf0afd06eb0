// SPDX-License-Identifier: MPL-2.0

package taskgraph

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/charmbracelet/log"
)

type (
	// Option configures a Graph.
	Option func(*Graph)

	// Graph is a registry of targets plus the memo of targets completed in
	// the current run. It is built once per invocation and is not safe for
	// concurrent use.
	Graph struct {
		targets    map[string]*Target
		order      []string
		executed   map[string]bool
		ranOrder   []string
		inProgress []string
		logger     *log.Logger
	}
)

// WithLogger sets the logger that reports executed and skipped targets.
func WithLogger(l *log.Logger) Option {
	return func(g *Graph) {
		g.logger = l
	}
}

// New creates an empty Graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		targets:  make(map[string]*Target),
		executed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = log.New(io.Discard)
	}
	return g
}

// Register adds t to the graph. It fails if the name is taken or if t's
// dependencies lead back to t; a rejected target is not kept.
func (g *Graph) Register(t *Target) error {
	if t == nil || t.Name == "" {
		return errors.New("register target: empty name")
	}
	if _, ok := g.targets[t.Name]; ok {
		return &DuplicateTargetError{Name: t.Name}
	}
	g.targets[t.Name] = t
	if cycle := g.cycleThrough(t.Name); cycle != nil {
		delete(g.targets, t.Name)
		return &CycleError{Cycle: cycle}
	}
	g.order = append(g.order, t.Name)
	return nil
}

// Extend appends dependencies and actions to a registered target. The
// extension is rolled back if it closes a cycle.
func (g *Graph) Extend(name string, deps []string, actions ...Action) error {
	t, ok := g.targets[name]
	if !ok {
		return &UnknownTargetError{Name: name}
	}
	prevDeps, prevActions := t.Deps, t.Actions
	t.Deps = append(slices.Clone(t.Deps), deps...)
	for _, a := range actions {
		if a != nil {
			t.Actions = append(t.Actions, a)
		}
	}
	if cycle := g.cycleThrough(name); cycle != nil {
		t.Deps, t.Actions = prevDeps, prevActions
		return &CycleError{Cycle: cycle}
	}
	return nil
}

// Lookup returns the named target.
func (g *Graph) Lookup(name string) (*Target, bool) {
	t, ok := g.targets[name]
	return t, ok
}

// Targets returns the registered targets in registration order.
func (g *Graph) Targets() []*Target {
	out := make([]*Target, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.targets[name])
	}
	return out
}

// Executed returns the targets completed so far, in completion order.
func (g *Graph) Executed() []string {
	return slices.Clone(g.ranOrder)
}

// RunAll runs each named target in order, stopping at the first failure.
func (g *Graph) RunAll(ctx context.Context, names ...string) error {
	for _, name := range names {
		if err := g.Run(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// Run brings the named target up to date, running its dependencies first.
// Targets that already completed are skipped. On failure the memo keeps
// every target that completed before it.
func (g *Graph) Run(ctx context.Context, name string) error {
	return g.run(ctx, name, "")
}

func (g *Graph) run(ctx context.Context, name, neededBy string) error {
	if g.executed[name] {
		return nil
	}
	if i := slices.Index(g.inProgress, name); i >= 0 {
		cycle := append(slices.Clone(g.inProgress[i:]), name)
		return &CycleError{Cycle: cycle}
	}

	t, ok := g.targets[name]
	if !ok {
		if _, err := os.Stat(name); err == nil {
			g.markExecuted(name)
			return nil
		}
		return &UnknownTargetError{Name: name, NeededBy: neededBy}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	g.inProgress = append(g.inProgress, name)
	defer func() { g.inProgress = g.inProgress[:len(g.inProgress)-1] }()

	for _, dep := range t.Deps {
		if err := g.run(ctx, dep, name); err != nil {
			return err
		}
	}

	if t.Kind == KindFile {
		stale, err := g.stale(t)
		if err != nil {
			return &ActionError{Target: name, Err: err}
		}
		if !stale {
			g.logger.Debug("up to date", "target", name)
			g.markExecuted(name)
			return nil
		}
	}

	if len(t.Actions) > 0 {
		g.logger.Info("running", "target", name)
	}
	for _, action := range t.Actions {
		if err := action(ctx); err != nil {
			return &ActionError{Target: name, Err: err}
		}
	}
	if t.Kind == KindFile {
		if _, err := os.Stat(name); err != nil {
			return &ActionError{Target: name, Err: fmt.Errorf("%w: %s", ErrOutputMissing, name)}
		}
	}
	g.markExecuted(name)
	return nil
}

func (g *Graph) markExecuted(name string) {
	g.executed[name] = true
	g.ranOrder = append(g.ranOrder, name)
}

// stale reports whether a file target must be rebuilt: its path is missing,
// or a file dependency was modified after it. Task dependencies do not
// affect staleness.
func (g *Graph) stale(t *Target) (bool, error) {
	info, err := os.Stat(t.Name)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	built := info.ModTime()

	for _, dep := range t.Deps {
		if d, ok := g.targets[dep]; ok && d.Kind != KindFile {
			continue
		}
		mtime, ok := modTime(dep)
		if ok && mtime.After(built) {
			return true, nil
		}
	}
	return false, nil
}

func modTime(path string) (time.Time, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, false
	}
	return info.ModTime(), true
}

// Validate checks the whole graph for cycles.
func (g *Graph) Validate() error {
	tg := newTopoGraph()
	for _, name := range g.order {
		tg.addNode(name)
		for _, dep := range g.targets[name].Deps {
			if _, ok := g.targets[dep]; ok {
				tg.addEdge(dep, name)
			}
		}
	}
	if _, blocked := tg.sort(); blocked != nil {
		for _, name := range blocked {
			if cycle := g.cycleThrough(name); cycle != nil {
				return &CycleError{Cycle: cycle}
			}
		}
		return &CycleError{Cycle: blocked}
	}
	return nil
}

// Plan returns the targets Run(name) would visit, dependencies first,
// without running anything. Targets already completed are omitted; file
// targets are listed whether or not they are stale.
func (g *Graph) Plan(name string) ([]string, error) {
	var (
		plan    []string
		visited = make(map[string]bool)
		visit   func(name, neededBy string) error
	)
	visit = func(name, neededBy string) error {
		if visited[name] || g.executed[name] {
			return nil
		}
		visited[name] = true
		t, ok := g.targets[name]
		if !ok {
			if _, err := os.Stat(name); err == nil {
				return nil
			}
			return &UnknownTargetError{Name: name, NeededBy: neededBy}
		}
		for _, dep := range t.Deps {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		plan = append(plan, name)
		return nil
	}
	if err := visit(name, ""); err != nil {
		return nil, err
	}
	return plan, nil
}

// cycleThrough returns a dependency path from start back to start, or nil.
// The search follows dependencies in declaration order, so the reported
// cycle is deterministic.
func (g *Graph) cycleThrough(start string) []string {
	visited := make(map[string]bool)
	path := []string{start}

	var dfs func(name string) bool
	dfs = func(name string) bool {
		t, ok := g.targets[name]
		if !ok {
			return false
		}
		for _, dep := range t.Deps {
			if dep == start {
				path = append(path, start)
				return true
			}
			if visited[dep] {
				continue
			}
			visited[dep] = true
			path = append(path, dep)
			if dfs(dep) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}

	if dfs(start) {
		return path
	}
	return nil
}
