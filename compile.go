package flowedit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Placement offsets relative to the suggestion's target element. Tasks sit
// downstream-right of their context, gateways straight right.
var (
	taskOffset    = Position{X: 200, Y: 50}
	gatewayOffset = Position{X: 200, Y: 0}
)

// Compiler translates one Suggestion into an ordered mutation batch. All
// tie-breaks are deterministic; it never mutates the graph itself.
type Compiler struct {
	graph    *GraphModel
	viewport *Position
}

// NewCompiler binds a compiler to a graph. viewport is the caller's hint
// for placing nodes with no target context; nil means the origin.
func NewCompiler(g *GraphModel, viewport *Position) *Compiler {
	return &Compiler{graph: g, viewport: viewport}
}

// Compile resolves the suggestion against the graph and returns the
// mutation batch plus a note for MutationResult.Detail. An empty batch
// with a nil error is a legitimate no-op (OptimizeFlow with nothing to
// remove). Errors carry the sentinel for the first hard failure; the graph
// is never touched.
func (c *Compiler) Compile(s Suggestion) ([]Mutation, string, error) {
	switch s.Type {
	case SuggestAddTask:
		return c.compileAddTask(s)
	case SuggestAddGateway:
		return c.compileAddGateway(s)
	case SuggestChangeGateway:
		return c.compileChangeGateway(s)
	case SuggestOptimizeFlow:
		return c.compileOptimizeFlow(s)
	case SuggestAddRole:
		return c.compileAddRole(s)
	default:
		return nil, "", fmt.Errorf("flowedit: unknown suggestion type %q", s.Type)
	}
}

func (c *Compiler) compileAddTask(s Suggestion) ([]Mutation, string, error) {
	root, err := c.graph.Root()
	if err != nil {
		return nil, "", err
	}
	el := FlowElement{
		ID:       ElementID(uuid.NewString()),
		Kind:     KindTask,
		Name:     nameFor(s, "Task"),
		Position: c.placeNear(s.TargetElementID, taskOffset),
	}
	return []Mutation{{Op: OpCreateNode, Element: el, Parent: root}}, "", nil
}

func (c *Compiler) compileAddGateway(s Suggestion) ([]Mutation, string, error) {
	root, err := c.graph.Root()
	if err != nil {
		return nil, "", err
	}
	el := FlowElement{
		ID:       ElementID(uuid.NewString()),
		Kind:     KindGateway,
		Gateway:  ParseGatewayType(s.Details.GatewayType),
		Name:     nameFor(s, "Gateway"),
		Position: c.placeNear(s.TargetElementID, gatewayOffset),
	}
	return []Mutation{{Op: OpCreateNode, Element: el, Parent: root}}, "", nil
}

func (c *Compiler) compileChangeGateway(s Suggestion) ([]Mutation, string, error) {
	if s.TargetElementID == "" {
		return nil, "", fmt.Errorf("%w: change_gateway requires a target", ErrTargetNotFound)
	}
	target, err := c.graph.Lookup(s.TargetElementID)
	if err != nil {
		return nil, "", err
	}
	if target.Kind != KindGateway {
		return nil, "", fmt.Errorf("%w: %s is a %s, not a gateway", ErrInvalidTargetType, target.ID, target.Kind)
	}
	// Keep id and name so existing flows stay valid without rewriting.
	replacement := target
	replacement.Gateway = ParseGatewayType(s.Details.NewGatewayType)
	return []Mutation{{Op: OpReplaceNode, TargetID: target.ID, Element: replacement}}, "", nil
}

// compileOptimizeFlow produces a splice-then-remove batch per listed
// element. Unknown ids are skipped and reported in the note; an element
// with more than one upstream or downstream flow aborts compilation with
// ErrAmbiguousSplice rather than guessing a rewiring.
//
// Planning runs against a working copy of the graph: each element's
// splice and removal is applied to the copy before the next element is
// resolved, so adjacent removals chain through each other's replacement
// edges instead of targeting flows an earlier splice already deleted.
func (c *Compiler) compileOptimizeFlow(s Suggestion) ([]Mutation, string, error) {
	if len(s.Details.RemoveElements) == 0 {
		return nil, "flow optimization applied, no structural change required", nil
	}
	work := c.graph.Clone()
	var (
		batch   []Mutation
		skipped []string
	)
	for _, id := range s.Details.RemoveElements {
		if _, err := work.Lookup(id); err != nil {
			skipped = append(skipped, string(id))
			continue
		}
		in, out := work.Incoming(id), work.Outgoing(id)
		if len(in) > 1 || len(out) > 1 {
			return nil, "", fmt.Errorf("%w: %s has %d upstream and %d downstream flows", ErrAmbiguousSplice, id, len(in), len(out))
		}
		// Splice before removal so the node is unreferenced when removed.
		var plan []Mutation
		for _, e := range in {
			plan = append(plan, Mutation{Op: OpRemoveEdge, Flow: e})
		}
		for _, e := range out {
			plan = append(plan, Mutation{Op: OpRemoveEdge, Flow: e})
		}
		if len(in) == 1 && len(out) == 1 {
			plan = append(plan, Mutation{Op: OpAddEdge, Flow: SequenceFlow{Source: in[0].Source, Target: out[0].Target}, At: -1})
		}
		plan = append(plan, Mutation{Op: OpRemoveNode, TargetID: id})
		for _, m := range plan {
			if _, err := work.ApplyPrimitive(m); err != nil {
				return nil, "", err
			}
		}
		batch = append(batch, plan...)
	}
	if len(batch) == 0 {
		return nil, "", fmt.Errorf("%w: none of the listed elements exist", ErrTargetNotFound)
	}
	var note string
	if len(skipped) > 0 {
		note = "skipped missing elements: " + strings.Join(skipped, ", ")
	}
	return batch, note, nil
}

func (c *Compiler) compileAddRole(s Suggestion) ([]Mutation, string, error) {
	root, err := c.graph.Root()
	if err != nil {
		return nil, "", err
	}
	name := s.Details.RoleName
	if name == "" {
		name = nameFor(s, "Role")
	}
	parent := root
	var note string
	if parts := c.graph.Participants(); len(parts) > 0 {
		parent = parts[0].ID
	} else {
		note = "no participant pool exists, lane attached to diagram root"
	}
	el := FlowElement{
		ID:       ElementID(uuid.NewString()),
		Kind:     KindLane,
		Name:     name,
		Position: c.placeNear(s.TargetElementID, taskOffset),
	}
	return []Mutation{{Op: OpCreateNode, Element: el, Parent: parent}}, note, nil
}

// placeNear positions a new node next to its target context, falling back
// to the viewport hint and finally the origin.
func (c *Compiler) placeNear(target ElementID, offset Position) Position {
	if target != "" {
		if el, err := c.graph.Lookup(target); err == nil {
			return Position{X: el.Position.X + offset.X, Y: el.Position.Y + offset.Y}
		}
	}
	if c.viewport != nil {
		return *c.viewport
	}
	return Position{}
}

func nameFor(s Suggestion, fallback string) string {
	if s.Details.Name != "" {
		return s.Details.Name
	}
	if s.Description != "" {
		return s.Description
	}
	return fallback
}
