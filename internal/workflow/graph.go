// Package workflow runs a small directed graph of named stages over a shared
// state value. Stages mutate the state in place; routers read it to pick the
// next stage.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// End is the terminal node name. Routing to End finishes the run.
const End = "__end__"

var (
	ErrUnknownNode = errors.New("workflow: unknown node")
	ErrStagePanic  = errors.New("workflow: stage panicked")
	ErrCycle       = errors.New("workflow: graph contains a cycle")
)

// Stage is one unit of work. It records its own failures on the state; the
// graph only stops for panics and routing errors.
type Stage[S any] func(ctx context.Context, s *S)

// Router picks a branch label from the state.
type Router[S any] func(s *S) string

type branch[S any] struct {
	route   Router[S]
	targets map[string]string
}

// Builder collects nodes and edges. It is not safe for concurrent use.
type Builder[S any] struct {
	entry    string
	order    []string
	nodes    map[string]Stage[S]
	edges    map[string]string
	branches map[string]branch[S]
	err      error
}

func NewBuilder[S any]() *Builder[S] {
	return &Builder[S]{
		nodes:    make(map[string]Stage[S]),
		edges:    make(map[string]string),
		branches: make(map[string]branch[S]),
	}
}

func (b *Builder[S]) AddNode(name string, stage Stage[S]) *Builder[S] {
	if name == "" || name == End {
		b.fail(fmt.Errorf("workflow: invalid node name %q", name))
		return b
	}
	if _, dup := b.nodes[name]; dup {
		b.fail(fmt.Errorf("workflow: duplicate node %q", name))
		return b
	}
	b.nodes[name] = stage
	b.order = append(b.order, name)
	return b
}

// SetEntry marks the first node. Without it the first added node is used.
func (b *Builder[S]) SetEntry(name string) *Builder[S] {
	b.entry = name
	return b
}

func (b *Builder[S]) AddEdge(from, to string) *Builder[S] {
	if b.hasOutgoing(from) {
		b.fail(fmt.Errorf("workflow: node %q already has an outgoing edge", from))
		return b
	}
	b.edges[from] = to
	return b
}

// AddConditionalEdges routes from a node by label. The router's result is
// looked up in targets; a label with no target fails the run with
// ErrUnknownNode.
func (b *Builder[S]) AddConditionalEdges(from string, route Router[S], targets map[string]string) *Builder[S] {
	if b.hasOutgoing(from) {
		b.fail(fmt.Errorf("workflow: node %q already has an outgoing edge", from))
		return b
	}
	if route == nil || len(targets) == 0 {
		b.fail(fmt.Errorf("workflow: conditional edges from %q need a router and targets", from))
		return b
	}
	cp := make(map[string]string, len(targets))
	for k, v := range targets {
		cp[k] = v
	}
	b.branches[from] = branch[S]{route: route, targets: cp}
	return b
}

func (b *Builder[S]) hasOutgoing(name string) bool {
	_, e := b.edges[name]
	_, c := b.branches[name]
	return e || c
}

func (b *Builder[S]) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// Compile checks that every edge names a known node, that every node can
// leave, and that the graph has no cycles.
func (b *Builder[S]) Compile() (*Graph[S], error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.nodes) == 0 {
		return nil, errors.New("workflow: graph has no nodes")
	}
	entry := b.entry
	if entry == "" {
		entry = b.order[0]
	}
	if _, ok := b.nodes[entry]; !ok {
		return nil, fmt.Errorf("%w: entry %q", ErrUnknownNode, entry)
	}

	known := func(n string) bool {
		_, ok := b.nodes[n]
		return ok || n == End
	}
	for _, name := range b.order {
		if !b.hasOutgoing(name) {
			return nil, fmt.Errorf("workflow: node %q has no outgoing edge", name)
		}
	}
	for from, to := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: edge source %q", ErrUnknownNode, from)
		}
		if !known(to) {
			return nil, fmt.Errorf("%w: edge %q -> %q", ErrUnknownNode, from, to)
		}
	}
	for from, br := range b.branches {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("%w: branch source %q", ErrUnknownNode, from)
		}
		for label, to := range br.targets {
			if !known(to) {
				return nil, fmt.Errorf("%w: branch %q[%s] -> %q", ErrUnknownNode, from, label, to)
			}
		}
	}

	g := &Graph[S]{
		entry:    entry,
		nodes:    b.nodes,
		edges:    b.edges,
		branches: b.branches,
	}
	if err := g.checkAcyclic(); err != nil {
		return nil, err
	}
	return g, nil
}

// Graph is an immutable compiled workflow. A Graph is safe for concurrent
// Run calls as long as each call has its own state.
type Graph[S any] struct {
	entry    string
	nodes    map[string]Stage[S]
	edges    map[string]string
	branches map[string]branch[S]
}

func (g *Graph[S]) successors(name string) []string {
	if to, ok := g.edges[name]; ok {
		return []string{to}
	}
	br := g.branches[name]
	out := make([]string, 0, len(br.targets))
	for _, to := range br.targets {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

func (g *Graph[S]) checkAcyclic() error {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.nodes))
	var visit func(n string) error
	visit = func(n string) error {
		if n == End {
			return nil
		}
		switch color[n] {
		case grey:
			return fmt.Errorf("%w at %q", ErrCycle, n)
		case black:
			return nil
		}
		color[n] = grey
		for _, next := range g.successors(n) {
			if err := visit(next); err != nil {
				return err
			}
		}
		color[n] = black
		return nil
	}
	return visit(g.entry)
}

// Run executes the graph from its entry until End and returns the visited
// node names in order. A panicking stage stops the run with ErrStagePanic.
// Context cancellation is checked between stages.
func (g *Graph[S]) Run(ctx context.Context, s *S) ([]string, error) {
	var path []string
	current := g.entry
	for current != End {
		if err := ctx.Err(); err != nil {
			return path, err
		}
		stage, ok := g.nodes[current]
		if !ok {
			return path, fmt.Errorf("%w: %q", ErrUnknownNode, current)
		}
		path = append(path, current)
		if err := runStage(ctx, current, stage, s); err != nil {
			return path, err
		}

		next, err := g.next(current, s)
		if err != nil {
			return path, err
		}
		current = next
	}
	return path, nil
}

func (g *Graph[S]) next(current string, s *S) (string, error) {
	if to, ok := g.edges[current]; ok {
		return to, nil
	}
	br := g.branches[current]
	label := br.route(s)
	to, ok := br.targets[label]
	if !ok {
		return "", fmt.Errorf("%w: branch %q from %q", ErrUnknownNode, label, current)
	}
	return to, nil
}

func runStage[S any](ctx context.Context, name string, stage Stage[S], s *S) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s: %v", ErrStagePanic, name, r)
		}
	}()
	stage(ctx, s)
	return nil
}

// NamedStage pairs a node name with its stage for Chain.
type NamedStage[S any] struct {
	Name  string
	Stage Stage[S]
}

// Chain compiles a linear graph that runs stages in order.
func Chain[S any](stages ...NamedStage[S]) (*Graph[S], error) {
	b := NewBuilder[S]()
	for i, st := range stages {
		b.AddNode(st.Name, st.Stage)
		next := End
		if i+1 < len(stages) {
			next = stages[i+1].Name
		}
		b.AddEdge(st.Name, next)
	}
	return b.Compile()
}

// MustChain is Chain for graphs fixed at compile time.
func MustChain[S any](stages ...NamedStage[S]) *Graph[S] {
	g, err := Chain(stages...)
	if err != nil {
		panic(err)
	}
	return g
}
