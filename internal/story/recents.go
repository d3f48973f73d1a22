package story

import (
	"context"

	"github.com/pipetrail/pipetrail/internal/models"
)

// recentEntry pairs an entity kind with the timestamp that defines "recently
// updated" for it.
type recentEntry struct {
	label     string
	timeField string
}

var recentCatalog = []recentEntry{
	{models.LabelBugzillaBug, "modified_time"},
	{models.LabelDistGitCommit, "commit_date"},
	{models.LabelKojiBuild, "completion_time"},
	{models.LabelAdvisory, "update_date"},
	{models.LabelFreshmakerEvent, "time_created"},
}

// RecentsResponse lists the most recently updated nodes per entity kind.
type RecentsResponse struct {
	Data map[string][]map[string]interface{} `json:"data"`
	Meta RecentsMeta                         `json:"meta"`
}

type RecentsMeta struct {
	IDKeys        map[string]string `json:"id_keys"`
	TimestampKeys map[string]string `json:"timestamp_keys"`
}

// Recents returns the five most recently updated nodes of each tracked kind,
// deep-serialized, newest first.
func (m *Manager) Recents(ctx context.Context) (*RecentsResponse, error) {
	resp := &RecentsResponse{
		Data: make(map[string][]map[string]interface{}, len(recentCatalog)),
		Meta: RecentsMeta{
			IDKeys:        make(map[string]string, len(recentCatalog)),
			TimestampKeys: make(map[string]string, len(recentCatalog)),
		},
	}
	for _, entry := range recentCatalog {
		kind, _ := models.KindByName(entry.label)
		nodes, err := m.store.QueryRecent(ctx, entry.label, entry.timeField, 5)
		if err != nil {
			return nil, err
		}
		items := make([]map[string]interface{}, 0, len(nodes))
		for _, n := range nodes {
			serialized, err := models.Serialize(ctx, m.store, n, true)
			if err != nil {
				return nil, err
			}
			items = append(items, serialized)
		}
		resp.Data[entry.label] = items
		resp.Meta.IDKeys[entry.label] = kind.IDProp
		resp.Meta.TimestampKeys[entry.label] = entry.timeField
	}
	return resp, nil
}
