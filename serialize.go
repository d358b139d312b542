package flowedit

import (
	"encoding/json"
	"fmt"
)

// graphDoc is the wire form of a GraphModel. Nodes and containment are
// emitted in lexical id order so the output is deterministic.
type graphDoc struct {
	Root        ElementID      `json:"root"`
	Nodes       []FlowElement  `json:"nodes"`
	Edges       []SequenceFlow `json:"edges"`
	Containment []containment  `json:"containment"`
}

type containment struct {
	ID     ElementID `json:"id"`
	Parent ElementID `json:"parent"`
}

// Serialize encodes the graph as a lossless, round-trippable string.
func (g *GraphModel) Serialize() (string, error) {
	if g == nil || g.root == "" {
		return "", fmt.Errorf("%w: no root element", ErrSerialization)
	}
	doc := graphDoc{
		Root:  g.root,
		Edges: g.Edges(),
	}
	for _, id := range g.sortedNodeIDs() {
		doc.Nodes = append(doc.Nodes, g.nodes[id])
		doc.Containment = append(doc.Containment, containment{ID: id, Parent: g.parents[id]})
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	return string(out), nil
}

// Deserialize decodes a graph produced by Serialize, validating that every
// edge and containment reference resolves.
func Deserialize(s string) (*GraphModel, error) {
	var doc graphDoc
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerialization, err)
	}
	if doc.Root == "" {
		return nil, fmt.Errorf("%w: missing root", ErrSerialization)
	}
	g := NewGraphModel(doc.Root)
	for _, el := range doc.Nodes {
		if el.ID == "" {
			return nil, fmt.Errorf("%w: node with empty id", ErrSerialization)
		}
		g.nodes[el.ID] = el
	}
	for _, c := range doc.Containment {
		if _, ok := g.nodes[c.ID]; !ok {
			return nil, fmt.Errorf("%w: containment references unknown node %s", ErrSerialization, c.ID)
		}
		if !g.isContainer(c.Parent) {
			return nil, fmt.Errorf("%w: containment references unknown container %s", ErrSerialization, c.Parent)
		}
		g.parents[c.ID] = c.Parent
		g.children[c.Parent] = append(g.children[c.Parent], c.ID)
	}
	for id := range g.nodes {
		if _, ok := g.parents[id]; !ok {
			return nil, fmt.Errorf("%w: node %s has no container", ErrSerialization, id)
		}
	}
	for _, e := range doc.Edges {
		if _, ok := g.nodes[e.Source]; !ok {
			return nil, fmt.Errorf("%w: edge references unknown node %s", ErrSerialization, e.Source)
		}
		if _, ok := g.nodes[e.Target]; !ok {
			return nil, fmt.Errorf("%w: edge references unknown node %s", ErrSerialization, e.Target)
		}
		g.edges = append(g.edges, e)
	}
	return g, nil
}
