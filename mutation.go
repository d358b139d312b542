package flowedit

import "fmt"

// MutationOp tags the variant of a Mutation.
type MutationOp string

const (
	OpCreateNode  MutationOp = "create_node"
	OpReplaceNode MutationOp = "replace_node"
	OpRemoveNode  MutationOp = "remove_node"
	OpReparent    MutationOp = "reparent"
	OpAddEdge     MutationOp = "add_edge"
	OpRemoveEdge  MutationOp = "remove_edge"
)

// Mutation is a single primitive change to a GraphModel. Only the fields
// relevant to Op are set:
//
//	CreateNode:  Element, Parent
//	ReplaceNode: TargetID, Element
//	RemoveNode:  TargetID
//	Reparent:    TargetID, Parent
//	AddEdge:     Flow, At (insert index into the edge list, -1 appends)
//	RemoveEdge:  Flow
//
// Applying a mutation yields enough information to build its inverse, so a
// batch can be rolled back or undone exactly.
type Mutation struct {
	Op       MutationOp   `json:"op"`
	Element  FlowElement  `json:"element,omitempty"`
	TargetID ElementID    `json:"target_id,omitempty"`
	Parent   ElementID    `json:"parent,omitempty"`
	Flow     SequenceFlow `json:"flow,omitempty"`
	At       int          `json:"at,omitempty"`
}

// Batch pairs the mutations applied for one suggestion with their
// precomputed inverses. Inverse is ordered so that applying it front to
// back undoes Forward.
type Batch struct {
	Forward []Mutation
	Inverse []Mutation
}

func (m Mutation) String() string {
	switch m.Op {
	case OpCreateNode:
		return fmt.Sprintf("create %s %q", m.Element.Kind, m.Element.Name)
	case OpReplaceNode:
		return fmt.Sprintf("replace %s", m.TargetID)
	case OpRemoveNode:
		return fmt.Sprintf("remove %s", m.TargetID)
	case OpReparent:
		return fmt.Sprintf("reparent %s under %s", m.TargetID, m.Parent)
	case OpAddEdge:
		return fmt.Sprintf("connect %s -> %s", m.Flow.Source, m.Flow.Target)
	case OpRemoveEdge:
		return fmt.Sprintf("disconnect %s -> %s", m.Flow.Source, m.Flow.Target)
	default:
		return string(m.Op)
	}
}
