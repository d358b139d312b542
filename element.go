package flowedit

// ElementID uniquely identifies a flow element within one diagram.
type ElementID string

// ElementKind enumerates the node types a process diagram can contain.
type ElementKind string

const (
	KindTask        ElementKind = "task"
	KindGateway     ElementKind = "gateway"
	KindEvent       ElementKind = "event"
	KindLane        ElementKind = "lane"
	KindParticipant ElementKind = "participant"
)

// GatewayType is the branching semantics of a gateway element.
type GatewayType string

const (
	GatewayExclusive  GatewayType = "exclusive"
	GatewayParallel   GatewayType = "parallel"
	GatewayInclusive  GatewayType = "inclusive"
	GatewayEventBased GatewayType = "event"
)

// ParseGatewayType maps a raw string to a GatewayType.
// Unrecognized or empty input falls back to exclusive.
func ParseGatewayType(s string) GatewayType {
	switch GatewayType(s) {
	case GatewayParallel, GatewayInclusive, GatewayEventBased:
		return GatewayType(s)
	default:
		return GatewayExclusive
	}
}

// EventType is the position of an event in the process lifecycle.
type EventType string

const (
	EventStart        EventType = "start"
	EventEnd          EventType = "end"
	EventIntermediate EventType = "intermediate"
)

// Position is a layout hint. It carries no process semantics.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FlowElement is a node in the process graph.
// Gateway is set only when Kind is KindGateway, Event only for KindEvent.
type FlowElement struct {
	ID       ElementID   `json:"id"`
	Kind     ElementKind `json:"kind"`
	Gateway  GatewayType `json:"gateway,omitempty"`
	Event    EventType   `json:"event,omitempty"`
	Name     string      `json:"name"`
	Position Position    `json:"position"`
}

// SequenceFlow is a directed edge between two flow elements.
type SequenceFlow struct {
	Source ElementID `json:"source"`
	Target ElementID `json:"target"`
}
