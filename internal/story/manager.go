package story

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pipetrail/pipetrail/internal/graph"
	"github.com/pipetrail/pipetrail/internal/models"
)

// Manager composes the story flow and the graph store into the query
// operations the HTTP surface exposes. It is stateless; one instance serves
// all requests.
type Manager struct {
	store graph.Store
	flows []*Flow

	// Now is the clock used for in-progress artifacts. Overridable in tests.
	Now func() time.Time
}

// NewManager builds a manager for the configured variant order.
func NewManager(store graph.Store, variants []string) (*Manager, error) {
	flows, err := Flows(variants)
	if err != nil {
		return nil, err
	}
	return &Manager{store: store, flows: flows, Now: time.Now}, nil
}

// StoryMeta decorates a story response.
type StoryMeta struct {
	RelatedNodesForward  []int      `json:"story_related_nodes_forward"`
	RelatedNodesBackward []int      `json:"story_related_nodes_backward"`
	RequestedNodeIndex   int        `json:"requested_node_index"`
	StoryType            string     `json:"story_type"`
	WaitTimes            []*float64 `json:"wait_times"`
	TotalWaitTime        float64    `json:"total_wait_time"`
	TotalProcessingTime  float64    `json:"total_processing_time"`
	ProcessingTimeFlag   bool       `json:"processing_time_flag"`
	TotalLeadTime        *float64   `json:"total_lead_time"`
}

// StoryResponse is one oldest-to-newest story around a pivot.
type StoryResponse struct {
	Data []map[string]interface{} `json:"data"`
	Meta StoryMeta                `json:"meta"`
}

// SiblingsResponse lists the nodes at a stage adjacent to the pivot.
type SiblingsResponse struct {
	Data []map[string]interface{} `json:"data"`
	Meta SiblingsMeta             `json:"meta"`
}

type SiblingsMeta struct {
	Description string `json:"description"`
}

type expansion struct {
	flow     *Flow
	stageIdx int
	forward  []graph.Path
	backward []graph.Path
}

// expand tries each configured variant in order and selects the first valid
// one. A kind that appears on no configured sequence cannot originate a
// story.
func (m *Manager) expand(ctx context.Context, pivot *graph.Node) (*expansion, error) {
	var fallback *expansion
	for _, flow := range m.flows {
		idx, ok := flow.StageIndex(pivot)
		if !ok {
			continue
		}
		forward, err := m.store.ExpandSequence(ctx, pivot.ID, flow.ForwardSteps(idx))
		if err != nil {
			return nil, err
		}
		backward, err := m.store.ExpandSequence(ctx, pivot.ID, flow.BackwardSteps(idx))
		if err != nil {
			return nil, err
		}
		e := &expansion{flow: flow, stageIdx: idx, forward: forward, backward: backward}
		if flow.Valid(append(append([]graph.Path{}, forward...), backward...)) {
			return e, nil
		}
		if fallback == nil {
			fallback = e
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, &models.ValidationError{
		Message: fmt.Sprintf("a story is not available for %s", models.DisplayLabel(pivot)),
	}
}

// Story returns the single longest story through the pivot: the longest
// backward path reversed, the pivot, then the longest forward path.
func (m *Manager) Story(ctx context.Context, pivot *graph.Node) (*StoryResponse, error) {
	e, err := m.expand(ctx, pivot)
	if err != nil {
		return nil, err
	}
	var forward, backward graph.Path
	if len(e.forward) > 0 {
		forward = e.forward[0]
	}
	if len(e.backward) > 0 {
		backward = e.backward[0]
	}
	return m.assemble(ctx, e.flow, e.stageIdx, pivot, backward, forward)
}

// AllStories returns every distinct story through the pivot: the unique
// backward paths crossed with the unique forward paths.
func (m *Manager) AllStories(ctx context.Context, pivot *graph.Node) ([]*StoryResponse, error) {
	e, err := m.expand(ctx, pivot)
	if err != nil {
		return nil, err
	}
	forward := uniquePaths(e.forward)
	backward := uniquePaths(e.backward)

	var out []*StoryResponse
	appendStory := func(b, f graph.Path) error {
		s, err := m.assemble(ctx, e.flow, e.stageIdx, pivot, b, f)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	}

	switch {
	case len(forward) == 0 && len(backward) == 0:
		if err := appendStory(nil, nil); err != nil {
			return nil, err
		}
	case len(forward) == 0:
		for _, b := range backward {
			if err := appendStory(b, nil); err != nil {
				return nil, err
			}
		}
	case len(backward) == 0:
		for _, f := range forward {
			if err := appendStory(nil, f); err != nil {
				return nil, err
			}
		}
	default:
		for _, b := range backward {
			for _, f := range forward {
				if err := appendStory(b, f); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// uniquePaths keeps a path, longest first, unless an already-kept path makes
// it redundant: its node-id set is a subset of the kept one, or it differs
// from it by exactly one node id (the same path seen from a sibling). With
// more than two siblings differing pairwise by one this under-counts; that
// behavior is intentional and kept as-is.
func uniquePaths(paths []graph.Path) []graph.Path {
	var kept []graph.Path
	for _, p := range paths {
		ids := p.IDSet()
		redundant := false
		for _, k := range kept {
			keptIDs := k.IDSet()
			diff := 0
			for id := range ids {
				if _, ok := keptIDs[id]; !ok {
					diff++
				}
			}
			if diff <= 1 {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, p)
		}
	}
	return kept
}

// assemble builds the response for one backward/forward path pair. Both
// paths start at the pivot; either may be nil.
func (m *Manager) assemble(ctx context.Context, flow *Flow, stageIdx int, pivot *graph.Node, backward, forward graph.Path) (*StoryResponse, error) {
	backTail := 0
	if len(backward) > 1 {
		backTail = len(backward) - 1
	}

	nodes := make([]*graph.Node, 0, backTail+1+len(forward))
	for i := len(backward) - 1; i >= 1; i-- {
		nodes = append(nodes, backward[i])
	}
	nodes = append(nodes, pivot)
	if len(forward) > 1 {
		nodes = append(nodes, forward[1:]...)
	}

	// Stage-label relabeling: every node is reported as the stage it sits
	// at, offset from the pivot's stage.
	firstStage := stageIdx - backTail
	labels := make([]string, len(nodes))
	for i := range nodes {
		labels[i] = flow.Stages[firstStage+i].Label
	}

	forwardCounts, backwardCounts, err := m.siblingCounts(ctx, flow, firstStage, nodes)
	if err != nil {
		return nil, err
	}

	stats := m.timelineStats(ctx, nodes, labels)

	data := make([]map[string]interface{}, len(nodes))
	for i, n := range nodes {
		serialized, err := models.Serialize(ctx, m.store, n, i == backTail)
		if err != nil {
			return nil, err
		}
		serialized["resource_type"] = labels[i]
		data[i] = serialized
	}

	return &StoryResponse{
		Data: data,
		Meta: StoryMeta{
			RelatedNodesForward:  forwardCounts,
			RelatedNodesBackward: backwardCounts,
			RequestedNodeIndex:   backTail,
			StoryType:            flow.Name,
			WaitTimes:            stats.WaitTimes,
			TotalWaitTime:        stats.TotalWait,
			TotalProcessingTime:  stats.TotalProcessing,
			ProcessingTimeFlag:   stats.Flag,
			TotalLeadTime:        stats.TotalLead,
		},
	}, nil
}

// siblingCounts computes, per story node, how many other nodes it relates to
// at the adjacent stage beyond the one already on the story.
func (m *Manager) siblingCounts(ctx context.Context, flow *Flow, firstStage int, nodes []*graph.Node) ([]int, []int, error) {
	forward := make([]int, len(nodes))
	backward := make([]int, len(nodes))
	for i, n := range nodes {
		stage := flow.Stages[firstStage+i]
		if i < len(nodes)-1 && stage.Forward != nil {
			count, err := m.neighborCount(ctx, n, stage.Forward)
			if err != nil {
				return nil, nil, err
			}
			if count > 0 {
				forward[i] = count - 1
			}
		}
		if i > 0 && stage.Backward != nil {
			count, err := m.neighborCount(ctx, n, stage.Backward)
			if err != nil {
				return nil, nil, err
			}
			if count > 0 {
				backward[i] = count - 1
			}
		}
	}
	return forward, backward, nil
}

func (m *Manager) neighborCount(ctx context.Context, n *graph.Node, a *Arrow) (int, error) {
	related, err := m.store.Neighbors(ctx, n.ID, a.RelType, a.Dir, a.Label)
	if err != nil {
		return 0, err
	}
	return len(related), nil
}

// Siblings returns the nodes at the stage adjacent to the pivot in the given
// direction, with a human-readable description.
func (m *Manager) Siblings(ctx context.Context, pivot *graph.Node, backward bool, variant string) (*SiblingsResponse, error) {
	flow, ok := FlowByName(variant)
	if !ok {
		return nil, &models.ValidationError{Message: fmt.Sprintf("%q is not a valid story type", variant)}
	}
	idx, ok := flow.StageIndex(pivot)
	if !ok {
		return nil, &models.ValidationError{
			Message: fmt.Sprintf("a story is not available for %s", models.DisplayLabel(pivot)),
		}
	}

	arrow := flow.Stages[idx].Forward
	if backward {
		arrow = flow.Stages[idx].Backward
	}
	if arrow == nil {
		return nil, &models.ValidationError{
			Message: fmt.Sprintf("%s has no adjacent stage in that direction", models.DisplayLabel(pivot)),
		}
	}

	related, err := m.store.Neighbors(ctx, pivot.ID, arrow.RelType, arrow.Dir, arrow.Label)
	if err != nil {
		return nil, err
	}
	data := make([]map[string]interface{}, 0, len(related))
	for _, n := range related {
		serialized := models.SerializeShallow(n)
		serialized["resource_type"] = arrow.Label
		data = append(data, serialized)
	}

	description := fmt.Sprintf("%s %s %s",
		capitalize(Pluralize(arrow.LabelDisplay)), arrow.RelDisplay, models.DisplayName(pivot))

	return &SiblingsResponse{Data: data, Meta: SiblingsMeta{Description: description}}, nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
