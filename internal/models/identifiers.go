package models

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pipetrail/pipetrail/internal/graph"
)

var (
	digitsRE           = regexp.MustCompile(`^\d+$`)
	advisoryFullRE     = regexp.MustCompile(`^RH[A-Z]{2}-\d{4}:\d+-\d+$`)
	advisoryTruncRE    = regexp.MustCompile(`^RH[A-Z]{2}-\d{4}:\d+$`)
	bugPrefixRE        = regexp.MustCompile(`(?i)^(rhbz#|#)`)
	srcRPMSuffix       = ".src.rpm"
	errInvalidIDFormat = "%q is not a valid %s identifier"
)

// Resolve parses a kind-specific identifier and fetches the matching node.
// Returns a ValidationError for malformed input and a NotFoundError when the
// identifier is well-formed but matches nothing.
func Resolve(ctx context.Context, store graph.Store, kindName, id string) (*graph.Node, error) {
	kind, ok := KindByName(kindName)
	if !ok {
		return nil, &ValidationError{Message: fmt.Sprintf("%q is not a valid resource type", kindName)}
	}

	node, err := resolveKind(ctx, store, kind, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, &NotFoundError{Message: fmt.Sprintf("%s %s not found", kind.Label, id)}
	}
	return node, nil
}

func resolveKind(ctx context.Context, store graph.Store, kind *Kind, id string) (*graph.Node, error) {
	switch kind.Label {
	case LabelBugzillaBug:
		stripped := bugPrefixRE.ReplaceAllString(id, "")
		if !digitsRE.MatchString(stripped) {
			return nil, &ValidationError{Message: fmt.Sprintf(errInvalidIDFormat, id, kind.Label)}
		}
		return store.GetByID(ctx, kind.Label, kind.IDProp, stripped)

	case LabelAdvisory, LabelContainerAdvisory:
		return resolveAdvisory(ctx, store, kind, id)

	case LabelKojiBuild, LabelModuleKojiBuild, LabelContainerKojiBuild:
		return resolveKojiBuild(ctx, store, kind, id)

	case LabelFreshmakerEvent, LabelFreshmakerBuild:
		if !digitsRE.MatchString(id) {
			return nil, &ValidationError{Message: fmt.Sprintf(errInvalidIDFormat, id, kind.Label)}
		}
		return store.GetByID(ctx, kind.Label, kind.IDProp, id)

	default:
		if id == "" {
			return nil, &ValidationError{Message: fmt.Sprintf(errInvalidIDFormat, id, kind.Label)}
		}
		return store.GetByID(ctx, kind.Label, kind.IDProp, id)
	}
}

func resolveAdvisory(ctx context.Context, store graph.Store, kind *Kind, id string) (*graph.Node, error) {
	switch {
	case digitsRE.MatchString(id):
		return store.GetByID(ctx, kind.Label, kind.IDProp, id)

	case advisoryFullRE.MatchString(id):
		return store.GetByID(ctx, kind.Label, "advisory_name", id)

	case advisoryTruncRE.MatchString(id):
		// A truncated name resolves to the highest-numbered iteration.
		node, err := store.GetByID(ctx, kind.Label, "advisory_name", id)
		if err != nil || node != nil {
			return node, err
		}
		candidates, err := store.QueryByPrefix(ctx, kind.Label, "advisory_name", id+"-")
		if err != nil {
			return nil, err
		}
		var best *graph.Node
		bestIter := -1
		for _, c := range candidates {
			name := strProp(c, "advisory_name")
			idx := strings.LastIndex(name, "-")
			if idx < 0 {
				continue
			}
			iter, err := strconv.Atoi(name[idx+1:])
			if err != nil {
				continue
			}
			if iter > bestIter {
				bestIter = iter
				best = c
			}
		}
		return best, nil

	default:
		return nil, &ValidationError{Message: fmt.Sprintf(errInvalidIDFormat, id, kind.Label)}
	}
}

func resolveKojiBuild(ctx context.Context, store graph.Store, kind *Kind, id string) (*graph.Node, error) {
	if digitsRE.MatchString(id) {
		return store.GetByID(ctx, kind.Label, kind.IDProp, id)
	}

	nvr := strings.TrimSuffix(id, srcRPMSuffix)
	release := ""
	version := ""
	rest := nvr
	if idx := strings.LastIndex(rest, "-"); idx > 0 {
		release = rest[idx+1:]
		rest = rest[:idx]
	}
	if idx := strings.LastIndex(rest, "-"); idx > 0 {
		version = rest[idx+1:]
		rest = rest[:idx]
	}
	if rest == "" || version == "" || release == "" {
		return nil, &ValidationError{Message: fmt.Sprintf(errInvalidIDFormat, id, kind.Label)}
	}

	return store.GetByProps(ctx, kind.Label, map[string]interface{}{
		"name":    rest,
		"version": version,
		"release": release,
	})
}
