package story

import (
	"fmt"
	"strings"

	"github.com/pipetrail/pipetrail/internal/graph"
	"github.com/pipetrail/pipetrail/internal/models"
)

// Arrow is one directed step between adjacent stages, plus the display
// strings used when describing siblings reached through it.
type Arrow struct {
	RelType      string
	Dir          graph.Direction
	Label        string
	RelDisplay   string
	LabelDisplay string
}

// Stage is one position in a pipeline sequence. Forward is nil at the last
// stage, Backward at the first.
type Stage struct {
	Label    string
	Forward  *Arrow
	Backward *Arrow
}

// Flow is a named story variant: the ordered stage sequence and a validity
// predicate over the paths an expansion returned.
type Flow struct {
	Name   string
	Stages []Stage
	Valid  func(paths []graph.Path) bool
}

func containerFlow() *Flow {
	return &Flow{
		Name: "container",
		Stages: []Stage{
			{
				Label:   models.LabelBugzillaBug,
				Forward: &Arrow{RelType: "RESOLVED", Dir: graph.In, Label: models.LabelDistGitCommit, RelDisplay: "that resolved", LabelDisplay: "commit"},
			},
			{
				Label:    models.LabelDistGitCommit,
				Forward:  &Arrow{RelType: "BUILT_FROM", Dir: graph.In, Label: models.LabelKojiBuild, RelDisplay: "built from", LabelDisplay: "build"},
				Backward: &Arrow{RelType: "RESOLVED", Dir: graph.Out, Label: models.LabelBugzillaBug, RelDisplay: "resolved by", LabelDisplay: "bug"},
			},
			{
				Label:    models.LabelKojiBuild,
				Forward:  &Arrow{RelType: "ATTACHED", Dir: graph.In, Label: models.LabelAdvisory, RelDisplay: "attached to", LabelDisplay: "advisory"},
				Backward: &Arrow{RelType: "BUILT_FROM", Dir: graph.Out, Label: models.LabelDistGitCommit, RelDisplay: "that built", LabelDisplay: "commit"},
			},
			{
				Label:    models.LabelAdvisory,
				Forward:  &Arrow{RelType: "TRIGGERED_BY", Dir: graph.In, Label: models.LabelFreshmakerEvent, RelDisplay: "triggered by", LabelDisplay: "Freshmaker event"},
				Backward: &Arrow{RelType: "ATTACHED", Dir: graph.Out, Label: models.LabelKojiBuild, RelDisplay: "attached to", LabelDisplay: "build"},
			},
			{
				Label:    models.LabelFreshmakerEvent,
				Forward:  &Arrow{RelType: "TRIGGERED", Dir: graph.Out, Label: models.LabelContainerKojiBuild, RelDisplay: "triggered by", LabelDisplay: "container build"},
				Backward: &Arrow{RelType: "TRIGGERED_BY", Dir: graph.Out, Label: models.LabelAdvisory, RelDisplay: "that triggered", LabelDisplay: "advisory"},
			},
			{
				Label:    models.LabelContainerKojiBuild,
				Forward:  &Arrow{RelType: "ATTACHED", Dir: graph.In, Label: models.LabelContainerAdvisory, RelDisplay: "attached to", LabelDisplay: "container advisory"},
				Backward: &Arrow{RelType: "TRIGGERED", Dir: graph.In, Label: models.LabelFreshmakerEvent, RelDisplay: "that triggered", LabelDisplay: "Freshmaker event"},
			},
			{
				Label:    models.LabelContainerAdvisory,
				Backward: &Arrow{RelType: "ATTACHED", Dir: graph.Out, Label: models.LabelContainerKojiBuild, RelDisplay: "attached to", LabelDisplay: "container build"},
			},
		},
		// The container pipeline is the terminal fallback.
		Valid: func([]graph.Path) bool { return true },
	}
}

func moduleFlow() *Flow {
	base := containerFlow()
	stages := make([]Stage, 0, len(base.Stages)+1)
	stages = append(stages, base.Stages[:2]...)
	stages = append(stages,
		Stage{
			Label:    models.LabelKojiBuild,
			Forward:  &Arrow{RelType: "ATTACHED", Dir: graph.In, Label: models.LabelModuleKojiBuild, RelDisplay: "that include", LabelDisplay: "module build"},
			Backward: base.Stages[2].Backward,
		},
		Stage{
			Label:    models.LabelModuleKojiBuild,
			Forward:  &Arrow{RelType: "ATTACHED", Dir: graph.In, Label: models.LabelAdvisory, RelDisplay: "attached to", LabelDisplay: "advisory"},
			Backward: &Arrow{RelType: "ATTACHED", Dir: graph.Out, Label: models.LabelKojiBuild, RelDisplay: "in", LabelDisplay: "component build"},
		},
		Stage{
			Label:    models.LabelAdvisory,
			Forward:  base.Stages[3].Forward,
			Backward: &Arrow{RelType: "ATTACHED", Dir: graph.Out, Label: models.LabelModuleKojiBuild, RelDisplay: "attached to", LabelDisplay: "module build"},
		},
	)
	stages = append(stages, base.Stages[4:]...)

	return &Flow{
		Name:   "module",
		Stages: stages,
		// The module pipeline only applies when the expansion actually
		// crossed a module build.
		Valid: func(paths []graph.Path) bool {
			for _, p := range paths {
				for _, n := range p {
					if n.HasLabel(models.LabelModuleKojiBuild) {
						return true
					}
				}
			}
			return false
		},
	}
}

// FlowByName returns a fresh flow for a variant name.
func FlowByName(name string) (*Flow, bool) {
	switch strings.ToLower(name) {
	case "container":
		return containerFlow(), true
	case "module":
		return moduleFlow(), true
	}
	return nil, false
}

// Flows resolves an ordered variant list from configuration.
func Flows(variants []string) ([]*Flow, error) {
	flows := make([]*Flow, 0, len(variants))
	for _, v := range variants {
		f, ok := FlowByName(v)
		if !ok {
			return nil, fmt.Errorf("unknown story variant %q", v)
		}
		flows = append(flows, f)
	}
	return flows, nil
}

// StageIndex locates the node's stage. Stages are scanned from the end so
// that subkind labels win over their base label.
func (f *Flow) StageIndex(n *graph.Node) (int, bool) {
	for i := len(f.Stages) - 1; i >= 0; i-- {
		if n.HasLabel(f.Stages[i].Label) {
			return i, true
		}
	}
	return 0, false
}

// ForwardSteps returns the expansion script from the given stage to the end
// of the pipeline.
func (f *Flow) ForwardSteps(idx int) []graph.Step {
	var steps []graph.Step
	for i := idx; i < len(f.Stages) && f.Stages[i].Forward != nil; i++ {
		a := f.Stages[i].Forward
		steps = append(steps, graph.Step{RelType: a.RelType, Dir: a.Dir, Label: a.Label})
	}
	return steps
}

// BackwardSteps returns the expansion script from the given stage back to
// the start of the pipeline.
func (f *Flow) BackwardSteps(idx int) []graph.Step {
	var steps []graph.Step
	for i := idx; i >= 0 && f.Stages[i].Backward != nil; i-- {
		a := f.Stages[i].Backward
		steps = append(steps, graph.Step{RelType: a.RelType, Dir: a.Dir, Label: a.Label})
	}
	return steps
}

// Pluralize applies the simple English rule used in sibling descriptions.
func Pluralize(s string) string {
	if strings.HasSuffix(s, "y") {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}
