package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/pipetrail/pipetrail/internal/graph"
)

// Entity kind labels as stored in the graph.
const (
	LabelBugzillaBug        = "BugzillaBug"
	LabelDistGitCommit      = "DistGitCommit"
	LabelKojiBuild          = "KojiBuild"
	LabelModuleKojiBuild    = "ModuleKojiBuild"
	LabelContainerKojiBuild = "ContainerKojiBuild"
	LabelAdvisory           = "Advisory"
	LabelContainerAdvisory  = "ContainerAdvisory"
	LabelFreshmakerEvent    = "FreshmakerEvent"
	LabelFreshmakerBuild    = "FreshmakerBuild"
	LabelUser               = "User"
)

// Cardinality of a first-degree relationship.
type Cardinality int

const (
	// ZeroOrOne serializes as object-or-null.
	ZeroOrOne Cardinality = iota
	// ZeroOrMore serializes as a list, empty when absent.
	ZeroOrMore
)

// Relationship is a first-degree relationship definition of a kind.
type Relationship struct {
	Name        string
	RelType     string
	Dir         graph.Direction
	TargetLabel string
	Card        Cardinality
}

// Kind describes one pipeline entity kind: its identifier property, the
// timestamp used for timeline ordering and its first-degree relationships.
type Kind struct {
	Label         string
	IDProp        string
	TimelineField string
	Relationships []Relationship

	displayName func(*graph.Node) string
}

func nvr(n *graph.Node) string {
	return fmt.Sprintf("%s-%s-%s", strProp(n, "name"), strProp(n, "version"), strProp(n, "release"))
}

var kojiBuildRels = []Relationship{
	{Name: "commit", RelType: "BUILT_FROM", Dir: graph.Out, TargetLabel: LabelDistGitCommit, Card: ZeroOrOne},
	{Name: "owner", RelType: "OWNED_BY", Dir: graph.Out, TargetLabel: LabelUser, Card: ZeroOrOne},
	{Name: "advisories", RelType: "ATTACHED", Dir: graph.In, TargetLabel: LabelAdvisory, Card: ZeroOrMore},
	{Name: "module_builds", RelType: "ATTACHED", Dir: graph.In, TargetLabel: LabelModuleKojiBuild, Card: ZeroOrMore},
}

var advisoryRels = []Relationship{
	{Name: "assigned_to", RelType: "ASSIGNED_TO", Dir: graph.Out, TargetLabel: LabelUser, Card: ZeroOrOne},
	{Name: "reporter", RelType: "REPORTED_BY", Dir: graph.Out, TargetLabel: LabelUser, Card: ZeroOrOne},
	{Name: "attached_builds", RelType: "ATTACHED", Dir: graph.Out, TargetLabel: LabelKojiBuild, Card: ZeroOrMore},
	{Name: "triggered_freshmaker_event", RelType: "TRIGGERED_BY", Dir: graph.In, TargetLabel: LabelFreshmakerEvent, Card: ZeroOrMore},
}

var kinds = []*Kind{
	{
		Label:         LabelBugzillaBug,
		IDProp:        "id",
		TimelineField: "creation_time",
		Relationships: []Relationship{
			{Name: "assignee", RelType: "ASSIGNED_TO", Dir: graph.Out, TargetLabel: LabelUser, Card: ZeroOrOne},
			{Name: "reporter", RelType: "REPORTED_BY", Dir: graph.Out, TargetLabel: LabelUser, Card: ZeroOrOne},
			{Name: "qa_contact", RelType: "QA_BY", Dir: graph.Out, TargetLabel: LabelUser, Card: ZeroOrOne},
			{Name: "resolved_by_commits", RelType: "RESOLVED", Dir: graph.In, TargetLabel: LabelDistGitCommit, Card: ZeroOrMore},
			{Name: "related_by_commits", RelType: "RELATED", Dir: graph.In, TargetLabel: LabelDistGitCommit, Card: ZeroOrMore},
			{Name: "reverted_by_commits", RelType: "REVERTED", Dir: graph.In, TargetLabel: LabelDistGitCommit, Card: ZeroOrMore},
		},
		displayName: func(n *graph.Node) string { return "RHBZ#" + strProp(n, "id") },
	},
	{
		Label:         LabelDistGitCommit,
		IDProp:        "hash",
		TimelineField: "commit_date",
		Relationships: []Relationship{
			{Name: "author", RelType: "AUTHORED_BY", Dir: graph.Out, TargetLabel: LabelUser, Card: ZeroOrOne},
			{Name: "koji_builds", RelType: "BUILT_FROM", Dir: graph.In, TargetLabel: LabelKojiBuild, Card: ZeroOrMore},
			{Name: "resolved_bugs", RelType: "RESOLVED", Dir: graph.Out, TargetLabel: LabelBugzillaBug, Card: ZeroOrMore},
			{Name: "related_bugs", RelType: "RELATED", Dir: graph.Out, TargetLabel: LabelBugzillaBug, Card: ZeroOrMore},
			{Name: "reverted_bugs", RelType: "REVERTED", Dir: graph.Out, TargetLabel: LabelBugzillaBug, Card: ZeroOrMore},
		},
		displayName: func(n *graph.Node) string {
			hash := strProp(n, "hash")
			if len(hash) > 7 {
				hash = hash[:7]
			}
			return "commit #" + hash
		},
	},
	{
		Label:         LabelKojiBuild,
		IDProp:        "id",
		TimelineField: "creation_time",
		Relationships: kojiBuildRels,
		displayName:   nvr,
	},
	{
		Label:         LabelModuleKojiBuild,
		IDProp:        "id",
		TimelineField: "creation_time",
		Relationships: append([]Relationship{
			{Name: "components", RelType: "ATTACHED", Dir: graph.Out, TargetLabel: LabelKojiBuild, Card: ZeroOrMore},
		}, kojiBuildRels[:3]...),
		displayName: nvr,
	},
	{
		Label:         LabelContainerKojiBuild,
		IDProp:        "id",
		TimelineField: "creation_time",
		Relationships: append([]Relationship{
			{Name: "triggered_by_freshmaker_event", RelType: "TRIGGERED", Dir: graph.In, TargetLabel: LabelFreshmakerEvent, Card: ZeroOrOne},
		}, kojiBuildRels[:3]...),
		displayName: nvr,
	},
	{
		Label:         LabelAdvisory,
		IDProp:        "id",
		TimelineField: "created_at",
		Relationships: advisoryRels,
		displayName:   func(n *graph.Node) string { return strProp(n, "advisory_name") },
	},
	{
		Label:         LabelContainerAdvisory,
		IDProp:        "id",
		TimelineField: "created_at",
		Relationships: []Relationship{
			advisoryRels[0], advisoryRels[1],
			{Name: "attached_builds", RelType: "ATTACHED", Dir: graph.Out, TargetLabel: LabelContainerKojiBuild, Card: ZeroOrMore},
			advisoryRels[3],
		},
		displayName: func(n *graph.Node) string { return strProp(n, "advisory_name") },
	},
	{
		Label:         LabelFreshmakerEvent,
		IDProp:        "id",
		TimelineField: "time_created",
		Relationships: []Relationship{
			{Name: "triggered_by_advisory", RelType: "TRIGGERED_BY", Dir: graph.Out, TargetLabel: LabelAdvisory, Card: ZeroOrOne},
			{Name: "successful_koji_builds", RelType: "TRIGGERED", Dir: graph.Out, TargetLabel: LabelContainerKojiBuild, Card: ZeroOrMore},
			{Name: "requested_builds", RelType: "TRIGGERED", Dir: graph.Out, TargetLabel: LabelFreshmakerBuild, Card: ZeroOrMore},
		},
		displayName: func(n *graph.Node) string { return "Freshmaker event " + strProp(n, "id") },
	},
	{
		Label:  LabelFreshmakerBuild,
		IDProp: "id",
		Relationships: []Relationship{
			{Name: "event", RelType: "TRIGGERED", Dir: graph.In, TargetLabel: LabelFreshmakerEvent, Card: ZeroOrOne},
		},
		displayName: func(n *graph.Node) string { return "Freshmaker build " + strProp(n, "build_id") },
	},
	{
		Label:       LabelUser,
		IDProp:      "username",
		displayName: func(n *graph.Node) string { return strProp(n, "username") },
	},
}

var kindsByName = func() map[string]*Kind {
	m := make(map[string]*Kind, len(kinds))
	for _, k := range kinds {
		m[strings.ToLower(k.Label)] = k
	}
	return m
}()

// KindByName looks a kind up case-insensitively.
func KindByName(name string) (*Kind, bool) {
	k, ok := kindsByName[strings.ToLower(name)]
	return k, ok
}

// Kinds returns the full catalog in registry order.
func Kinds() []*Kind {
	return kinds
}

// Relationship returns the kind's relationship definition by serialized name.
func (k *Kind) Relationship(name string) (*Relationship, bool) {
	for i := range k.Relationships {
		if k.Relationships[i].Name == name {
			return &k.Relationships[i], true
		}
	}
	return nil, false
}

// labelPrecedence orders subkind labels ahead of their base label so that a
// node carrying several is reported as the most specific one.
var labelPrecedence = []string{
	LabelContainerKojiBuild,
	LabelModuleKojiBuild,
	LabelContainerAdvisory,
}

// DisplayLabel resolves the single displayed label of a node.
func DisplayLabel(n *graph.Node) string {
	for _, l := range labelPrecedence {
		if n.HasLabel(l) {
			return l
		}
	}
	for _, l := range n.Labels {
		if _, ok := KindByName(l); ok {
			return l
		}
	}
	if len(n.Labels) > 0 {
		return n.Labels[0]
	}
	return ""
}

// KindOf resolves the registry kind of a node via its displayed label.
func KindOf(n *graph.Node) (*Kind, bool) {
	return KindByName(DisplayLabel(n))
}

// DisplayName derives the human-readable name of a node.
func DisplayName(n *graph.Node) string {
	k, ok := KindOf(n)
	if !ok {
		return ""
	}
	return k.displayName(n)
}

// TimelineTimestamp returns the node's timeline-ordering timestamp, or nil
// when the kind has none or the property is absent.
func TimelineTimestamp(n *graph.Node) *time.Time {
	k, ok := KindOf(n)
	if !ok || k.TimelineField == "" {
		return nil
	}
	return TimeProp(n, k.TimelineField)
}

func strProp(n *graph.Node, name string) string {
	switch v := n.Props[name].(type) {
	case string:
		return v
	case int64:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

// TimeProp reads a property as a timestamp. Values may arrive as time.Time
// from the bolt driver or as ISO-8601 strings; offsets are normalized to UTC.
func TimeProp(n *graph.Node, name string) *time.Time {
	return asTime(n.Props[name])
}

func asTime(v interface{}) *time.Time {
	switch t := v.(type) {
	case time.Time:
		u := t.UTC()
		return &u
	case *time.Time:
		if t == nil {
			return nil
		}
		u := t.UTC()
		return &u
	case string:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				u := parsed.UTC()
				return &u
			}
		}
	}
	return nil
}
