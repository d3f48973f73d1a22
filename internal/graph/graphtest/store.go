// Package graphtest provides an in-memory graph.Store used by the test
// suites. It mirrors the traversal semantics of the Neo4j adapter closely
// enough that the story engine can be exercised without a running store.
package graphtest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pipetrail/pipetrail/internal/graph"
)

type edge struct {
	from, to string
	relType  string
	props    map[string]interface{}
}

// Store is an in-memory graph.Store. Not safe for concurrent mutation; seed
// it fully before serving queries.
type Store struct {
	nodes  map[string]*graph.Node
	edges  []edge
	nextID int

	// FailPing makes Ping (and only Ping) return ErrStoreUnavailable.
	FailPing bool
	// FailAll makes every call return ErrStoreUnavailable.
	FailAll bool
}

func New() *Store {
	return &Store{nodes: make(map[string]*graph.Node)}
}

// AddNode seeds a node and returns it. Props may contain time.Time values.
func (s *Store) AddNode(labels []string, props map[string]interface{}) *graph.Node {
	s.nextID++
	if props == nil {
		props = map[string]interface{}{}
	}
	n := &graph.Node{ID: fmt.Sprintf("n%d", s.nextID), Labels: labels, Props: props}
	s.nodes[n.ID] = n
	return n
}

// Relate seeds a directed relationship from a to b.
func (s *Store) Relate(a, b *graph.Node, relType string, props ...map[string]interface{}) {
	e := edge{from: a.ID, to: b.ID, relType: relType}
	if len(props) > 0 {
		e.props = props[0]
	}
	s.edges = append(s.edges, e)
}

func (s *Store) fail() error {
	if s.FailAll {
		return graph.ErrStoreUnavailable
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, label, prop string, value interface{}) (*graph.Node, error) {
	return s.GetByProps(ctx, label, map[string]interface{}{prop: value})
}

func (s *Store) GetByProps(ctx context.Context, label string, props map[string]interface{}) (*graph.Node, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	for _, id := range s.sortedIDs() {
		n := s.nodes[id]
		if !n.HasLabel(label) {
			continue
		}
		match := true
		for prop, want := range props {
			if n.Props[prop] != want {
				match = false
				break
			}
		}
		if match {
			return n, nil
		}
	}
	return nil, nil
}

func (s *Store) GetByInternalID(ctx context.Context, id string) (*graph.Node, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	return s.nodes[id], nil
}

func (s *Store) QueryByPrefix(ctx context.Context, label, prop, prefix string) ([]*graph.Node, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []*graph.Node
	for _, id := range s.sortedIDs() {
		n := s.nodes[id]
		if !n.HasLabel(label) {
			continue
		}
		if v, ok := n.Props[prop].(string); ok && strings.HasPrefix(v, prefix) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) neighborsOf(nodeID, relType string, dir graph.Direction, label string) []*graph.Node {
	var out []*graph.Node
	for _, e := range s.edges {
		if e.relType != relType {
			continue
		}
		var otherID string
		switch {
		case dir == graph.Out && e.from == nodeID:
			otherID = e.to
		case dir == graph.In && e.to == nodeID:
			otherID = e.from
		default:
			continue
		}
		other := s.nodes[otherID]
		if other != nil && other.HasLabel(label) {
			out = append(out, other)
		}
	}
	return out
}

func (s *Store) ExpandSequence(ctx context.Context, pivotID string, seq []graph.Step) ([]graph.Path, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	pivot := s.nodes[pivotID]
	if pivot == nil {
		return nil, nil
	}

	open := []graph.Path{{pivot}}
	var all []graph.Path
	for _, step := range seq {
		var next []graph.Path
		for _, p := range open {
			tail := p[len(p)-1]
			for _, neighbor := range s.neighborsOf(tail.ID, step.RelType, step.Dir, step.Label) {
				if pathContains(p, neighbor.ID) {
					continue
				}
				extended := make(graph.Path, len(p), len(p)+1)
				copy(extended, p)
				extended = append(extended, neighbor)
				next = append(next, extended)
				all = append(all, extended)
			}
		}
		open = next
		if len(open) == 0 {
			break
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return len(all[i]) > len(all[j]) })
	return all, nil
}

func pathContains(p graph.Path, id string) bool {
	for _, n := range p {
		if n.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) Neighbors(ctx context.Context, nodeID, relType string, dir graph.Direction, label string) ([]*graph.Node, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []*graph.Node
	for _, n := range s.neighborsOf(nodeID, relType, dir, label) {
		if n.ID != nodeID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) RelProps(ctx context.Context, aID, bID, relType string) (map[string]interface{}, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	for _, e := range s.edges {
		if e.relType != relType {
			continue
		}
		if (e.from == aID && e.to == bID) || (e.from == bID && e.to == aID) {
			return e.props, nil
		}
	}
	return nil, nil
}

func (s *Store) QueryRecent(ctx context.Context, label, timeField string, limit int) ([]*graph.Node, error) {
	if err := s.fail(); err != nil {
		return nil, err
	}
	var out []*graph.Node
	for _, id := range s.sortedIDs() {
		n := s.nodes[id]
		if !n.HasLabel(label) {
			continue
		}
		if _, ok := n.Props[timeField].(time.Time); ok {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti := out[i].Props[timeField].(time.Time)
		tj := out[j].Props[timeField].(time.Time)
		return ti.After(tj)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if s.FailAll || s.FailPing {
		return graph.ErrStoreUnavailable
	}
	return nil
}

func (s *Store) sortedIDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return len(ids[i]) < len(ids[j]) || (len(ids[i]) == len(ids[j]) && ids[i] < ids[j])
	})
	return ids
}
