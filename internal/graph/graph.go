package graph

import (
	"context"
	"errors"
)

// ErrStoreUnavailable wraps any connection, authentication or timeout
// failure coming out of the graph store.
var ErrStoreUnavailable = errors.New("the database connection failed")

// Direction of a relationship traversal relative to the current node.
type Direction int

const (
	// Out follows relationships where the current node is the source.
	Out Direction = iota
	// In follows relationships where the current node is the target.
	In
)

// Node is a single labeled-property graph node. ID is the store-internal
// element id and is never serialized to clients.
type Node struct {
	ID     string
	Labels []string
	Props  map[string]interface{}
}

// HasLabel reports whether the node carries the given label.
func (n *Node) HasLabel(label string) bool {
	for _, l := range n.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Step is one hop in an ordered expansion sequence.
type Step struct {
	RelType string
	Dir     Direction
	Label   string
}

// Path is an ordered walk through the graph, pivot first.
type Path []*Node

// IDSet returns the set of internal node ids on the path.
func (p Path) IDSet() map[string]struct{} {
	set := make(map[string]struct{}, len(p))
	for _, n := range p {
		set[n.ID] = struct{}{}
	}
	return set
}

// Store is the read-only graph store adapter. Implementations must be safe
// for concurrent use; every call is bounded by the context deadline plus an
// implementation-level timeout.
type Store interface {
	// GetByID looks a node up by label and a single identifying property.
	// Returns nil when no such node exists.
	GetByID(ctx context.Context, label, prop string, value interface{}) (*Node, error)

	// GetByProps looks a node up by label and an exact property match.
	GetByProps(ctx context.Context, label string, props map[string]interface{}) (*Node, error)

	// GetByInternalID fetches a node by its store-internal element id.
	GetByInternalID(ctx context.Context, id string) (*Node, error)

	// QueryByPrefix returns all nodes of a label whose string property
	// starts with the given prefix.
	QueryByPrefix(ctx context.Context, label, prop, prefix string) ([]*Node, error)

	// ExpandSequence walks the ordered step sequence out from the pivot and
	// returns every simple path of length >= 1, longest first.
	ExpandSequence(ctx context.Context, pivotID string, seq []Step) ([]Path, error)

	// Neighbors returns all nodes related to the given node by one typed hop.
	Neighbors(ctx context.Context, nodeID, relType string, dir Direction, label string) ([]*Node, error)

	// RelProps returns the properties of the relationship of the given type
	// between two nodes, or nil when the nodes are not related.
	RelProps(ctx context.Context, aID, bID, relType string) (map[string]interface{}, error)

	// QueryRecent returns up to limit nodes of a label ordered by the given
	// time property, newest first. Nodes missing the property are skipped.
	QueryRecent(ctx context.Context, label, timeField string, limit int) ([]*Node, error)

	// Ping performs a trivial round-trip against the store.
	Ping(ctx context.Context) error
}
