package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jStore implements Store on top of a bolt driver. All queries are
// read-only and each one runs under its own timeout.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
}

// NewNeo4jStore wraps an already-initialized driver.
func NewNeo4jStore(driver neo4j.DriverWithContext, database string, timeout time.Duration) *Neo4jStore {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Neo4jStore{driver: driver, database: database, timeout: timeout}
}

func (s *Neo4jStore) run(ctx context.Context, cypher string, params map[string]interface{}) ([]*neo4j.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return records, nil
}

func nodeFromRecord(rec *neo4j.Record, offset int) *Node {
	id, _ := rec.Values[offset].(string)
	rawLabels, _ := rec.Values[offset+1].([]interface{})
	props, _ := rec.Values[offset+2].(map[string]interface{})

	labels := make([]string, 0, len(rawLabels))
	for _, l := range rawLabels {
		if str, ok := l.(string); ok {
			labels = append(labels, str)
		}
	}
	return &Node{ID: id, Labels: labels, Props: props}
}

func (s *Neo4jStore) GetByID(ctx context.Context, label, prop string, value interface{}) (*Node, error) {
	return s.GetByProps(ctx, label, map[string]interface{}{prop: value})
}

func (s *Neo4jStore) GetByProps(ctx context.Context, label string, props map[string]interface{}) (*Node, error) {
	conditions := make([]string, 0, len(props))
	params := make(map[string]interface{}, len(props))
	i := 0
	for name, value := range props {
		param := fmt.Sprintf("p%d", i)
		conditions = append(conditions, fmt.Sprintf("n.%s = $%s", name, param))
		params[param] = value
		i++
	}
	sort.Strings(conditions)

	cypher := fmt.Sprintf(
		"MATCH (n:%s) WHERE %s RETURN elementId(n), labels(n), properties(n) LIMIT 1",
		label, strings.Join(conditions, " AND "),
	)
	records, err := s.run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return nodeFromRecord(records[0], 0), nil
}

func (s *Neo4jStore) GetByInternalID(ctx context.Context, id string) (*Node, error) {
	cypher := "MATCH (n) WHERE elementId(n) = $id RETURN elementId(n), labels(n), properties(n) LIMIT 1"
	records, err := s.run(ctx, cypher, map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return nodeFromRecord(records[0], 0), nil
}

func (s *Neo4jStore) QueryByPrefix(ctx context.Context, label, prop, prefix string) ([]*Node, error) {
	cypher := fmt.Sprintf(
		"MATCH (n:%s) WHERE n.%s STARTS WITH $prefix RETURN elementId(n), labels(n), properties(n)",
		label, prop,
	)
	records, err := s.run(ctx, cypher, map[string]interface{}{"prefix": prefix})
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(records))
	for _, rec := range records {
		nodes = append(nodes, nodeFromRecord(rec, 0))
	}
	return nodes, nil
}

// stepPattern renders one hop of an expansion as a Cypher pattern fragment.
func stepPattern(step Step) string {
	if step.Dir == Out {
		return fmt.Sprintf("(a)-[:%s]->(b:%s)", step.RelType, step.Label)
	}
	return fmt.Sprintf("(a)<-[:%s]-(b:%s)", step.RelType, step.Label)
}

// ExpandSequence runs an iterative frontier-batched traversal: one query per
// sequence step, extending every open path by the matching neighbors. Paths
// are simple (a node id never repeats on one path) and returned longest
// first, de-duplicated on their node-id set.
func (s *Neo4jStore) ExpandSequence(ctx context.Context, pivotID string, seq []Step) ([]Path, error) {
	pivot, err := s.GetByInternalID(ctx, pivotID)
	if err != nil {
		return nil, err
	}
	if pivot == nil {
		return nil, nil
	}

	open := []Path{{pivot}}
	var all []Path

	for _, step := range seq {
		if len(open) == 0 {
			break
		}

		ids := make([]string, 0, len(open))
		seen := make(map[string]struct{}, len(open))
		for _, p := range open {
			tail := p[len(p)-1].ID
			if _, ok := seen[tail]; !ok {
				seen[tail] = struct{}{}
				ids = append(ids, tail)
			}
		}

		cypher := fmt.Sprintf(
			"UNWIND $ids AS id MATCH (a) WHERE elementId(a) = id MATCH %s "+
				"RETURN id, elementId(b), labels(b), properties(b)",
			stepPattern(step),
		)
		records, err := s.run(ctx, cypher, map[string]interface{}{"ids": ids})
		if err != nil {
			return nil, err
		}

		extensions := make(map[string][]*Node)
		for _, rec := range records {
			from, _ := rec.Values[0].(string)
			extensions[from] = append(extensions[from], nodeFromRecord(rec, 1))
		}

		// Every extension is a path in its own right: the expansion emits
		// paths at all depths, not only maximal ones.
		var next []Path
		for _, p := range open {
			tail := p[len(p)-1]
			for _, neighbor := range extensions[tail.ID] {
				if pathContains(p, neighbor.ID) {
					continue
				}
				extended := make(Path, len(p), len(p)+1)
				copy(extended, p)
				extended = append(extended, neighbor)
				next = append(next, extended)
				all = append(all, extended)
			}
		}
		open = next
	}

	return normalizePaths(all), nil
}

func pathContains(p Path, id string) bool {
	for _, n := range p {
		if n.ID == id {
			return true
		}
	}
	return false
}

// normalizePaths sorts longest first and drops paths whose node-id set was
// already emitted.
func normalizePaths(paths []Path) []Path {
	sort.SliceStable(paths, func(i, j int) bool {
		return len(paths[i]) > len(paths[j])
	})
	seen := make(map[string]struct{}, len(paths))
	out := paths[:0]
	for _, p := range paths {
		ids := make([]string, 0, len(p))
		for _, n := range p {
			ids = append(ids, n.ID)
		}
		sort.Strings(ids)
		key := strings.Join(ids, "|")
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out
}

func (s *Neo4jStore) Neighbors(ctx context.Context, nodeID, relType string, dir Direction, label string) ([]*Node, error) {
	cypher := fmt.Sprintf(
		"MATCH (a) WHERE elementId(a) = $id MATCH %s RETURN elementId(b), labels(b), properties(b)",
		stepPattern(Step{RelType: relType, Dir: dir, Label: label}),
	)
	records, err := s.run(ctx, cypher, map[string]interface{}{"id": nodeID})
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(records))
	for _, rec := range records {
		n := nodeFromRecord(rec, 0)
		if n.ID == nodeID {
			continue
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (s *Neo4jStore) RelProps(ctx context.Context, aID, bID, relType string) (map[string]interface{}, error) {
	cypher := fmt.Sprintf(
		"MATCH (a)-[r:%s]-(b) WHERE elementId(a) = $a AND elementId(b) = $b RETURN properties(r) LIMIT 1",
		relType,
	)
	records, err := s.run(ctx, cypher, map[string]interface{}{"a": aID, "b": bID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	props, _ := records[0].Values[0].(map[string]interface{})
	return props, nil
}

func (s *Neo4jStore) QueryRecent(ctx context.Context, label, timeField string, limit int) ([]*Node, error) {
	cypher := fmt.Sprintf(
		"MATCH (n:%s) WHERE n.%s IS NOT NULL "+
			"RETURN elementId(n), labels(n), properties(n) ORDER BY n.%s DESC LIMIT $limit",
		label, timeField, timeField,
	)
	records, err := s.run(ctx, cypher, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, err
	}
	nodes := make([]*Node, 0, len(records))
	for _, rec := range records {
		nodes = append(nodes, nodeFromRecord(rec, 0))
	}
	return nodes, nil
}

func (s *Neo4jStore) Ping(ctx context.Context) error {
	_, err := s.run(ctx, "RETURN 1", nil)
	return err
}
