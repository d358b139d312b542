// Package flowedit applies structured edit suggestions to business-process
// diagrams and records every attempted change as an immutable, append-only
// version with a full audit trail.
package flowedit

import (
	"fmt"
	"sort"
)

// GraphModel is the in-memory representation of one process diagram:
// nodes, directed sequence flows and a tree-shaped containment relation.
// It is a plain value type with no I/O; mutation goes through
// ApplyPrimitive so every change can report its inverse.
//
// Invariants held after every successful ApplyPrimitive:
//   - every ElementID referenced by an edge or a child set exists in nodes
//   - containment is a tree rooted at exactly one container with no parent
//   - every node belongs to exactly one container
type GraphModel struct {
	root     ElementID
	nodes    map[ElementID]FlowElement
	edges    []SequenceFlow
	children map[ElementID][]ElementID
	parents  map[ElementID]ElementID
}

// NewGraphModel returns a graph whose only container is root. The root is
// a container id, not a node; Lookup on it reports not found.
func NewGraphModel(root ElementID) *GraphModel {
	return &GraphModel{
		root:     root,
		nodes:    make(map[ElementID]FlowElement),
		children: map[ElementID][]ElementID{root: nil},
		parents:  make(map[ElementID]ElementID),
	}
}

// Lookup returns the element with the given id.
func (g *GraphModel) Lookup(id ElementID) (FlowElement, error) {
	el, ok := g.nodes[id]
	if !ok {
		return FlowElement{}, fmt.Errorf("%w: %s", ErrTargetNotFound, id)
	}
	return el, nil
}

// Root returns the root container id, or ErrNoRootElement for an
// uninitialized graph.
func (g *GraphModel) Root() (ElementID, error) {
	if g == nil || g.root == "" {
		return "", ErrNoRootElement
	}
	return g.root, nil
}

// ChildrenOf returns a copy of the child set of the given container.
func (g *GraphModel) ChildrenOf(containerID ElementID) []ElementID {
	kids := g.children[containerID]
	out := make([]ElementID, len(kids))
	copy(out, kids)
	return out
}

// ParentOf returns the container owning the given node.
func (g *GraphModel) ParentOf(id ElementID) (ElementID, error) {
	p, ok := g.parents[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTargetNotFound, id)
	}
	return p, nil
}

// Edges returns a copy of the ordered sequence flow list.
func (g *GraphModel) Edges() []SequenceFlow {
	out := make([]SequenceFlow, len(g.edges))
	copy(out, g.edges)
	return out
}

// Len returns the number of nodes in the graph.
func (g *GraphModel) Len() int { return len(g.nodes) }

// Participants returns all participant elements in containment order,
// walking the tree depth-first from the root. The order is deterministic
// for a given graph state.
func (g *GraphModel) Participants() []FlowElement {
	var out []FlowElement
	var walk func(id ElementID)
	walk = func(id ElementID) {
		for _, child := range g.children[id] {
			if el, ok := g.nodes[child]; ok && el.Kind == KindParticipant {
				out = append(out, el)
			}
			walk(child)
		}
	}
	walk(g.root)
	return out
}

// Incoming returns the edges targeting the given node, Outgoing the edges
// leaving it. Both preserve edge-list order.
func (g *GraphModel) Incoming(id ElementID) []SequenceFlow {
	var out []SequenceFlow
	for _, e := range g.edges {
		if e.Target == id {
			out = append(out, e)
		}
	}
	return out
}

func (g *GraphModel) Outgoing(id ElementID) []SequenceFlow {
	var out []SequenceFlow
	for _, e := range g.edges {
		if e.Source == id {
			out = append(out, e)
		}
	}
	return out
}

// AppliedChange reports the outcome of one primitive: the id it touched
// and the mutation that undoes it.
type AppliedChange struct {
	ID      ElementID
	Inverse Mutation
}

// ApplyPrimitive mutates the graph in place and returns the inverse
// mutation. On error the graph is untouched.
func (g *GraphModel) ApplyPrimitive(m Mutation) (AppliedChange, error) {
	switch m.Op {
	case OpCreateNode:
		return g.createNode(m)
	case OpReplaceNode:
		return g.replaceNode(m)
	case OpRemoveNode:
		return g.removeNode(m)
	case OpReparent:
		return g.reparent(m)
	case OpAddEdge:
		return g.addEdge(m)
	case OpRemoveEdge:
		return g.removeEdge(m)
	default:
		return AppliedChange{}, fmt.Errorf("flowedit: unknown mutation op %q", m.Op)
	}
}

func (g *GraphModel) createNode(m Mutation) (AppliedChange, error) {
	el := m.Element
	if el.ID == "" {
		return AppliedChange{}, fmt.Errorf("flowedit: create: element id is empty")
	}
	if _, exists := g.nodes[el.ID]; exists {
		return AppliedChange{}, fmt.Errorf("flowedit: create: element %s already exists", el.ID)
	}
	parent := m.Parent
	if parent == "" {
		parent = g.root
	}
	if !g.isContainer(parent) {
		return AppliedChange{}, fmt.Errorf("%w: container %s", ErrTargetNotFound, parent)
	}
	g.nodes[el.ID] = el
	g.children[parent] = append(g.children[parent], el.ID)
	g.parents[el.ID] = parent
	return AppliedChange{
		ID:      el.ID,
		Inverse: Mutation{Op: OpRemoveNode, TargetID: el.ID},
	}, nil
}

func (g *GraphModel) replaceNode(m Mutation) (AppliedChange, error) {
	old, ok := g.nodes[m.TargetID]
	if !ok {
		return AppliedChange{}, fmt.Errorf("%w: %s", ErrTargetNotFound, m.TargetID)
	}
	if m.Element.ID != m.TargetID {
		return AppliedChange{}, fmt.Errorf("flowedit: replace: id %s does not match target %s", m.Element.ID, m.TargetID)
	}
	g.nodes[m.TargetID] = m.Element
	return AppliedChange{
		ID:      m.TargetID,
		Inverse: Mutation{Op: OpReplaceNode, TargetID: m.TargetID, Element: old},
	}, nil
}

func (g *GraphModel) removeNode(m Mutation) (AppliedChange, error) {
	old, ok := g.nodes[m.TargetID]
	if !ok {
		return AppliedChange{}, fmt.Errorf("%w: %s", ErrTargetNotFound, m.TargetID)
	}
	for _, e := range g.edges {
		if e.Source == m.TargetID || e.Target == m.TargetID {
			return AppliedChange{}, fmt.Errorf("%w: %s still connected to %s -> %s", ErrDanglingReference, m.TargetID, e.Source, e.Target)
		}
	}
	if len(g.children[m.TargetID]) > 0 {
		return AppliedChange{}, fmt.Errorf("%w: container %s still has children", ErrDanglingReference, m.TargetID)
	}
	parent := g.parents[m.TargetID]
	g.children[parent] = without(g.children[parent], m.TargetID)
	delete(g.children, m.TargetID)
	delete(g.parents, m.TargetID)
	delete(g.nodes, m.TargetID)
	return AppliedChange{
		ID:      m.TargetID,
		Inverse: Mutation{Op: OpCreateNode, Element: old, Parent: parent},
	}, nil
}

func (g *GraphModel) reparent(m Mutation) (AppliedChange, error) {
	if _, ok := g.nodes[m.TargetID]; !ok {
		return AppliedChange{}, fmt.Errorf("%w: %s", ErrTargetNotFound, m.TargetID)
	}
	if !g.isContainer(m.Parent) {
		return AppliedChange{}, fmt.Errorf("%w: container %s", ErrTargetNotFound, m.Parent)
	}
	// A node must not become its own ancestor.
	for p := m.Parent; p != ""; p = g.parents[p] {
		if p == m.TargetID {
			return AppliedChange{}, fmt.Errorf("%w: %s cannot contain itself", ErrDanglingReference, m.TargetID)
		}
	}
	oldParent := g.parents[m.TargetID]
	g.children[oldParent] = without(g.children[oldParent], m.TargetID)
	g.children[m.Parent] = append(g.children[m.Parent], m.TargetID)
	g.parents[m.TargetID] = m.Parent
	return AppliedChange{
		ID:      m.TargetID,
		Inverse: Mutation{Op: OpReparent, TargetID: m.TargetID, Parent: oldParent},
	}, nil
}

func (g *GraphModel) addEdge(m Mutation) (AppliedChange, error) {
	if _, ok := g.nodes[m.Flow.Source]; !ok {
		return AppliedChange{}, fmt.Errorf("%w: edge source %s", ErrDanglingReference, m.Flow.Source)
	}
	if _, ok := g.nodes[m.Flow.Target]; !ok {
		return AppliedChange{}, fmt.Errorf("%w: edge target %s", ErrDanglingReference, m.Flow.Target)
	}
	at := m.At
	if at < 0 || at > len(g.edges) {
		at = len(g.edges)
	}
	g.edges = append(g.edges, SequenceFlow{})
	copy(g.edges[at+1:], g.edges[at:])
	g.edges[at] = m.Flow
	return AppliedChange{
		ID:      m.Flow.Source,
		Inverse: Mutation{Op: OpRemoveEdge, Flow: m.Flow},
	}, nil
}

func (g *GraphModel) removeEdge(m Mutation) (AppliedChange, error) {
	for i, e := range g.edges {
		if e == m.Flow {
			g.edges = append(g.edges[:i], g.edges[i+1:]...)
			return AppliedChange{
				ID:      m.Flow.Source,
				Inverse: Mutation{Op: OpAddEdge, Flow: m.Flow, At: i},
			}, nil
		}
	}
	return AppliedChange{}, fmt.Errorf("%w: no flow %s -> %s", ErrDanglingReference, m.Flow.Source, m.Flow.Target)
}

// isContainer reports whether id can own children: the root or any node.
func (g *GraphModel) isContainer(id ElementID) bool {
	if id == g.root {
		return true
	}
	_, ok := g.nodes[id]
	return ok
}

// Clone returns a deep copy of the graph.
func (g *GraphModel) Clone() *GraphModel {
	c := &GraphModel{
		root:     g.root,
		nodes:    make(map[ElementID]FlowElement, len(g.nodes)),
		edges:    make([]SequenceFlow, len(g.edges)),
		children: make(map[ElementID][]ElementID, len(g.children)),
		parents:  make(map[ElementID]ElementID, len(g.parents)),
	}
	for id, el := range g.nodes {
		c.nodes[id] = el
	}
	copy(c.edges, g.edges)
	for id, kids := range g.children {
		cp := make([]ElementID, len(kids))
		copy(cp, kids)
		c.children[id] = cp
	}
	for id, p := range g.parents {
		c.parents[id] = p
	}
	return c
}

// Equal reports structural equality: same root, nodes, ordered edges and
// containment. Child sets compare order-insensitively.
func (g *GraphModel) Equal(o *GraphModel) bool {
	if g == nil || o == nil {
		return g == o
	}
	if g.root != o.root || len(g.nodes) != len(o.nodes) || len(g.edges) != len(o.edges) {
		return false
	}
	for id, el := range g.nodes {
		if o.nodes[id] != el {
			return false
		}
	}
	for i, e := range g.edges {
		if o.edges[i] != e {
			return false
		}
	}
	for id, p := range g.parents {
		if o.parents[id] != p {
			return false
		}
	}
	return len(g.parents) == len(o.parents)
}

// sortedNodeIDs returns node ids in lexical order, for deterministic output.
func (g *GraphModel) sortedNodeIDs() []ElementID {
	ids := make([]ElementID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func without(ids []ElementID, id ElementID) []ElementID {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}
