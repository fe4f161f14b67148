// Package graph builds the working dependency graph a run of the
// scheduler executes over: it injects the synthetic type-group items
// described in spec.md §3/§4.D and validates that every declared
// dependency resolves to something in the final graph.
package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hashmap-kz/metanode/internal/item"
)

var idPattern = regexp.MustCompile(`^[a-z]+:[^:]*$`)

// UnknownDependencyError is returned by Build when a working dependency
// references an id that resolves to nothing in the final graph.
type UnknownDependencyError struct {
	Item string
	Dep  string
}

func (e *UnknownDependencyError) Error() string {
	return fmt.Sprintf("graph: item %q depends on unknown id %q", e.Item, e.Dep)
}

// InvalidItemIDError is returned when an item's id does not match the
// "type:name" grammar from spec.md §6.
type InvalidItemIDError struct {
	ID string
}

func (e *InvalidItemIDError) Error() string {
	return fmt.Sprintf("graph: invalid item id %q, expected type:name", e.ID)
}

// CyclicDependencyError names the items left over once no more progress
// can be made resolving working deps. It is raised both by the
// pre-flight check in Build and, as a final safety net, by the
// scheduler's drain loop.
type CyclicDependencyError struct {
	IDs []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("graph: cyclic dependency among items: %s", strings.Join(e.IDs, ", "))
}

// Node is a single entry in the working graph: an item plus its
// scheduler-owned, mutable set of unresolved predecessor ids.
type Node struct {
	Item    item.Item
	Working map[string]struct{}
}

func typeOf(id string) string {
	i := strings.IndexByte(id, ':')
	if i < 0 {
		return id
	}
	return id[:i]
}

// typeGroupItem is the synthetic "all items of type T" node described
// in spec.md §3. It implements item.Item so it can live in the same
// Node slice as concrete items; the scheduler dispatches it like any
// other node, and its Apply returns (nil, nil, nil), which the
// scheduler recognizes and yields no result for.
type typeGroupItem struct {
	itemType string
}

func (t *typeGroupItem) ID() string           { return t.itemType + ":" }
func (t *typeGroupItem) StaticDeps() []string { return nil }
func (t *typeGroupItem) UserDeps() []string   { return nil }
func (t *typeGroupItem) Apply(_ context.Context, _ bool) (*item.Status, *item.Status, error) {
	return nil, nil, nil
}

// IsSynthetic reports whether it is a type-group node injected by Build
// rather than a concrete item supplied by the caller.
func IsSynthetic(it item.Item) bool {
	_, ok := it.(*typeGroupItem)
	return ok
}

// Build injects a type-group item for every item type observed in
// items or in any of their declared dependencies, normalizes
// static+user deps into each node's working set, and validates that
// every referenced id resolves to a node of the final graph.
//
// It also performs a cheap pre-flight topological check (Kahn's
// algorithm, spec.md's design notes recommend this) so a cyclic item
// set is rejected before any work is dispatched, rather than only after
// the scheduler drains to a stuck residue.
func Build(items []item.Item) ([]*Node, error) {
	typeGroups := map[string]*typeGroupItem{}
	ensureGroup := func(t string) *typeGroupItem {
		g, ok := typeGroups[t]
		if !ok {
			g = &typeGroupItem{itemType: t}
			typeGroups[t] = g
		}
		return g
	}

	nodesByID := make(map[string]*Node, len(items))
	working := make(map[string][]string, len(items))

	for _, it := range items {
		if !idPattern.MatchString(it.ID()) {
			return nil, &InvalidItemIDError{ID: it.ID()}
		}
		deps := append(append([]string{}, it.StaticDeps()...), it.UserDeps()...)
		working[it.ID()] = deps
		nodesByID[it.ID()] = &Node{Item: it, Working: map[string]struct{}{}}
		ensureGroup(typeOf(it.ID()))
		for _, dep := range deps {
			ensureGroup(typeOf(dep))
		}
	}

	groupMembers := map[string][]string{}
	for _, it := range items {
		t := typeOf(it.ID())
		groupMembers[t] = append(groupMembers[t], it.ID())
	}

	all := make([]*Node, 0, len(items)+len(typeGroups))
	for t, g := range typeGroups {
		n := &Node{Item: g, Working: map[string]struct{}{}}
		for _, member := range groupMembers[t] {
			n.Working[member] = struct{}{}
		}
		nodesByID[g.ID()] = n
		all = append(all, n)
	}
	for _, it := range items {
		n := nodesByID[it.ID()]
		for _, dep := range working[it.ID()] {
			n.Working[dep] = struct{}{}
		}
		all = append(all, n)
	}

	for _, n := range all {
		for dep := range n.Working {
			if _, ok := nodesByID[dep]; !ok {
				return nil, &UnknownDependencyError{Item: n.Item.ID(), Dep: dep}
			}
		}
	}

	if cyc := detectCycle(all); cyc != nil {
		return nil, cyc
	}

	return all, nil
}

// detectCycle runs a pure, side-effect-free Kahn's-algorithm pass over
// a copy of the working-dependency sets. It never mutates nodes.
func detectCycle(nodes []*Node) *CyclicDependencyError {
	remaining := make(map[string]map[string]struct{}, len(nodes))
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		cp := make(map[string]struct{}, len(n.Working))
		for d := range n.Working {
			cp[d] = struct{}{}
		}
		remaining[n.Item.ID()] = cp
		byID[n.Item.ID()] = n
	}

	for {
		progressed := false
		var done []string
		for id, deps := range remaining {
			if len(deps) == 0 {
				done = append(done, id)
			}
		}
		if len(done) == 0 {
			break
		}
		for _, id := range done {
			delete(remaining, id)
			progressed = true
		}
		for _, deps := range remaining {
			for _, id := range done {
				delete(deps, id)
			}
		}
		if !progressed {
			break
		}
	}

	if len(remaining) == 0 {
		return nil
	}
	ids := make([]string, 0, len(remaining))
	for id := range remaining {
		ids = append(ids, id)
	}
	return &CyclicDependencyError{IDs: ids}
}
