package story

import (
	"context"
	"time"

	"github.com/pipetrail/pipetrail/internal/graph"
	"github.com/pipetrail/pipetrail/internal/logger"
	"github.com/pipetrail/pipetrail/internal/models"
)

// Stats are the derived timeline statistics of one story. All values are in
// seconds; arithmetic is done in UTC with offsets stripped.
type Stats struct {
	WaitTimes       []*float64
	TotalWait       float64
	TotalProcessing float64
	Flag            bool
	TotalLead       *float64
}

type artifactClass int

const (
	classBug artifactClass = iota
	classCommit
	classBuild
	classEvent
	classAdvisory
	classOther
)

func classify(label string) artifactClass {
	switch label {
	case models.LabelBugzillaBug:
		return classBug
	case models.LabelDistGitCommit:
		return classCommit
	case models.LabelKojiBuild, models.LabelModuleKojiBuild, models.LabelContainerKojiBuild:
		return classBuild
	case models.LabelFreshmakerEvent:
		return classEvent
	case models.LabelAdvisory, models.LabelContainerAdvisory:
		return classAdvisory
	}
	return classOther
}

var eventDoneStates = map[string]bool{
	"COMPLETE": true, "SKIPPED": true, "FAILED": true, "CANCELED": true,
}

var advisoryDoneStates = map[string]bool{
	"SHIPPED_LIVE": true, "DROPPED_NO_SHIP": true,
}

func stateIn(n *graph.Node, prop string, states map[string]bool) bool {
	s, _ := n.Props[prop].(string)
	return states[s]
}

// timelineStats derives the per-stage wait times, the total processing time
// and the total lead time of a story. A failure inside any one statistic is
// contained: the field defaults to 0 (lead time: null) and the others
// proceed.
func (m *Manager) timelineStats(ctx context.Context, nodes []*graph.Node, labels []string) Stats {
	stats := Stats{WaitTimes: []*float64{}}
	if len(nodes) == 0 {
		return stats
	}
	now := m.Now().UTC()

	// start is the artifact's own start column. An advisory preceded by a
	// build starts when the build was attached to it.
	start := func(i int) *time.Time {
		n := nodes[i]
		switch classify(labels[i]) {
		case classBug:
			return models.TimeProp(n, "creation_time")
		case classCommit:
			return models.TimeProp(n, "commit_date")
		case classBuild:
			return models.TimeProp(n, "creation_time")
		case classEvent:
			return models.TimeProp(n, "time_created")
		case classAdvisory:
			if i > 0 && classify(labels[i-1]) == classBuild {
				if attached := m.timeAttached(ctx, n, nodes[i-1]); attached != nil {
					return attached
				}
			}
			return models.TimeProp(n, "created_at")
		}
		return nil
	}

	// end is the artifact's processing end. A Freshmaker event followed by
	// another artifact ends when that artifact starts, since its rebuilds
	// happen during event processing.
	end := func(i int) *time.Time {
		n := nodes[i]
		switch classify(labels[i]) {
		case classBug:
			return models.TimeProp(n, "creation_time")
		case classCommit:
			return models.TimeProp(n, "commit_date")
		case classBuild:
			if t := models.TimeProp(n, "completion_time"); t != nil {
				return t
			}
			return &now
		case classEvent:
			if i+1 < len(nodes) {
				if next := start(i + 1); next != nil {
					return next
				}
			}
			if stateIn(n, "state_name", eventDoneStates) {
				if t := models.TimeProp(n, "time_done"); t != nil {
					return t
				}
			}
			return &now
		case classAdvisory:
			if stateIn(n, "state", advisoryDoneStates) {
				if t := models.TimeProp(n, "status_time"); t != nil {
					return t
				}
			}
			return &now
		}
		return nil
	}

	// completionForWait is the moment the next artifact could begin. For a
	// Freshmaker event that is its creation: the rebuild starts during the
	// event, and that pair's wait is excluded from the total below.
	completionForWait := func(i int) *time.Time {
		if classify(labels[i]) == classEvent {
			return models.TimeProp(nodes[i], "time_created")
		}
		return end(i)
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("total processing time computation failed: %v", r)
				stats.TotalProcessing = 0
			}
		}()
		total := 0.0
		for i := range nodes {
			s, e := start(i), end(i)
			if s == nil || e == nil {
				stats.Flag = true
				continue
			}
			d := e.Sub(*s).Seconds()
			if d < 0 {
				logger.Warnf("discarding negative processing time for %s", models.DisplayName(nodes[i]))
				continue
			}
			total += d
		}
		stats.TotalProcessing = total
	}()

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("wait time computation failed: %v", r)
				stats.WaitTimes = make([]*float64, len(nodes)-1)
				stats.TotalWait = 0
			}
		}()
		waits := make([]*float64, len(nodes)-1)
		total := 0.0
		for i := 0; i < len(nodes)-1; i++ {
			a := completionForWait(i)
			b := start(i + 1)
			if a == nil || b == nil {
				continue
			}
			d := b.Sub(*a).Seconds()
			if d < 0 {
				// Non-sequential pair.
				continue
			}
			w := d
			waits[i] = &w
			if classify(labels[i]) == classEvent && classify(labels[i+1]) == classBuild {
				continue
			}
			total += d
		}
		stats.WaitTimes = waits
		stats.TotalWait = total
	}()

	func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("total lead time computation failed: %v", r)
				stats.TotalLead = nil
			}
		}()
		first := models.TimelineTimestamp(nodes[0])
		if first == nil {
			return
		}
		last := end(len(nodes) - 1)
		if last == nil {
			return
		}
		d := last.Sub(*first).Seconds()
		if d < 0 {
			logger.Warnf("discarding negative total lead time for %s", models.DisplayName(nodes[0]))
			d = 0
		}
		stats.TotalLead = &d
	}()

	return stats
}

// timeAttached reads the time_attached attribute off the ATTACHED
// relationship between an advisory and a build. Store failures here are
// logged and treated as a missing attribute.
func (m *Manager) timeAttached(ctx context.Context, advisory, build *graph.Node) *time.Time {
	props, err := m.store.RelProps(ctx, advisory.ID, build.ID, "ATTACHED")
	if err != nil {
		logger.Warnf("could not read time_attached for %s: %v", models.DisplayName(advisory), err)
		return nil
	}
	if props == nil {
		return nil
	}
	return models.TimeProp(&graph.Node{Props: props}, "time_attached")
}
