package models

import (
	"context"
	"time"

	"github.com/pipetrail/pipetrail/internal/graph"
)

// ISOFormat is the wire format for timestamps: ISO-8601, seconds precision,
// always UTC.
const ISOFormat = "2006-01-02T15:04:05Z"

// FormatTime renders a timestamp for the wire.
func FormatTime(t time.Time) string {
	return t.UTC().Format(ISOFormat)
}

func serializeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return FormatTime(t)
	case *time.Time:
		if t == nil {
			return nil
		}
		return FormatTime(*t)
	default:
		return v
	}
}

// SerializeShallow emits the node's own properties plus the derived
// resource_type, display_name and timeline_timestamp fields. The internal
// store id is never emitted.
func SerializeShallow(n *graph.Node) map[string]interface{} {
	out := make(map[string]interface{}, len(n.Props)+3)
	for name, value := range n.Props {
		out[name] = serializeValue(value)
	}
	out["resource_type"] = DisplayLabel(n)
	out["display_name"] = DisplayName(n)
	if ts := TimelineTimestamp(n); ts != nil {
		out["timeline_timestamp"] = FormatTime(*ts)
	} else {
		out["timeline_timestamp"] = nil
	}
	return out
}

// Serialize emits the node; when deep is set, every first-degree
// relationship of its kind is expanded with shallow serializations of the
// related nodes.
func Serialize(ctx context.Context, store graph.Store, n *graph.Node, deep bool) (map[string]interface{}, error) {
	out := SerializeShallow(n)
	if !deep {
		return out, nil
	}

	kind, ok := KindOf(n)
	if !ok {
		return out, nil
	}
	for _, rel := range kind.Relationships {
		related, err := store.Neighbors(ctx, n.ID, rel.RelType, rel.Dir, rel.TargetLabel)
		if err != nil {
			return nil, err
		}
		switch rel.Card {
		case ZeroOrOne:
			if len(related) == 0 {
				out[rel.Name] = nil
			} else {
				out[rel.Name] = SerializeShallow(related[0])
			}
		default:
			items := make([]map[string]interface{}, 0, len(related))
			for _, r := range related {
				items = append(items, SerializeShallow(r))
			}
			out[rel.Name] = items
		}
	}
	return out, nil
}

// SerializeRelationship expands a single named relationship of the node,
// emitting each related node deep-serialized.
func SerializeRelationship(ctx context.Context, store graph.Store, n *graph.Node, relName string) ([]map[string]interface{}, error) {
	kind, ok := KindOf(n)
	if !ok {
		return nil, &ValidationError{Message: "unrecognized node label"}
	}
	rel, ok := kind.Relationship(relName)
	if !ok {
		return nil, &ValidationError{
			Message: "please use one of the following relationship names: " + relationshipNames(kind),
		}
	}
	related, err := store.Neighbors(ctx, n.ID, rel.RelType, rel.Dir, rel.TargetLabel)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]interface{}, 0, len(related))
	for _, r := range related {
		serialized, err := Serialize(ctx, store, r, true)
		if err != nil {
			return nil, err
		}
		out = append(out, serialized)
	}
	return out, nil
}

func relationshipNames(kind *Kind) string {
	names := ""
	for i, rel := range kind.Relationships {
		if i > 0 {
			names += ", "
		}
		names += rel.Name
	}
	return names
}
