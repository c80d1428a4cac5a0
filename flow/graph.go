// Package flow defines the static conversational flow graph and the node
// transition processor that drives model-directed transitions over it.
// The graph is read-only to the engine.
package flow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// NodeType classifies a flow node.
type NodeType string

const (
	NodeStart        NodeType = "start"
	NodeConversation NodeType = "conversation"
	NodeStop         NodeType = "stop"
)

// RemainOption is the reserved option id that keeps the conversation in the
// current node.
const RemainOption = -1

// Option is one declared transition of a conversation node.
type Option struct {
	ID    int    `yaml:"option_id" json:"option_id"`
	Label string `yaml:"label" json:"label"`
	Next  string `yaml:"next" json:"next"`
}

// Node is one immutable node of the flow graph.
type Node struct {
	ID      string   `yaml:"id" json:"id"`
	Type    NodeType `yaml:"type" json:"type"`
	Prompt  string   `yaml:"prompt" json:"prompt"`
	Options []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// Option returns the declared option with the given id.
func (n *Node) Option(id int) (Option, bool) {
	for _, opt := range n.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return Option{}, false
}

// OptionDescriptor is the caller-facing view of a node option.
type OptionDescriptor struct {
	ID    int    `json:"option_id"`
	Label string `json:"label"`
}

// Descriptor is the caller-facing view of a node, carried in execution
// results as the next-node descriptor.
type Descriptor struct {
	ID      string             `json:"id"`
	Type    NodeType           `json:"type"`
	Prompt  string             `json:"prompt,omitempty"`
	Options []OptionDescriptor `json:"options,omitempty"`
}

// Describe builds the caller-facing descriptor of the node.
func (n *Node) Describe() *Descriptor {
	d := &Descriptor{ID: n.ID, Type: n.Type, Prompt: n.Prompt}
	for _, opt := range n.Options {
		d.Options = append(d.Options, OptionDescriptor{ID: opt.ID, Label: opt.Label})
	}
	return d
}

// Graph is the static set of nodes and transitions.
type Graph struct {
	nodes map[string]*Node
	order []string
}

// New builds a graph from a node list and validates its structure.
func New(nodes []Node) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*Node, len(nodes))}
	for i := range nodes {
		n := nodes[i]
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("flow: duplicate node id %q", n.ID)
		}
		g.nodes[n.ID] = &n
		g.order = append(g.order, n.ID)
	}
	if err := g.validate(); err != nil {
		return nil, err
	}
	return g, nil
}

type graphDoc struct {
	Nodes []Node `yaml:"nodes"`
}

// FromYAML parses a flow definition document and validates it.
func FromYAML(data []byte) (*Graph, error) {
	var doc graphDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("flow: parse definition: %w", err)
	}
	return New(doc.Nodes)
}

func (g *Graph) validate() error {
	if len(g.nodes) == 0 {
		return fmt.Errorf("flow: graph has no nodes")
	}
	for _, id := range g.order {
		n := g.nodes[id]
		if n.ID == "" {
			return fmt.Errorf("flow: node with empty id")
		}
		switch n.Type {
		case NodeStart, NodeConversation, NodeStop:
		default:
			return fmt.Errorf("flow: node %q has unknown type %q", n.ID, n.Type)
		}
		if n.Type != NodeConversation && len(n.Options) > 0 {
			return fmt.Errorf("flow: node %q of type %q declares options", n.ID, n.Type)
		}
		seen := make(map[int]bool, len(n.Options))
		for _, opt := range n.Options {
			if opt.ID == RemainOption {
				return fmt.Errorf("flow: node %q declares reserved option id %d", n.ID, RemainOption)
			}
			if opt.ID < 0 {
				return fmt.Errorf("flow: node %q declares negative option id %d", n.ID, opt.ID)
			}
			if seen[opt.ID] {
				return fmt.Errorf("flow: node %q declares duplicate option id %d", n.ID, opt.ID)
			}
			seen[opt.ID] = true
			if _, ok := g.nodes[opt.Next]; !ok {
				return fmt.Errorf("flow: node %q option %d targets unknown node %q", n.ID, opt.ID, opt.Next)
			}
		}
	}
	return nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// IDs returns node ids in definition order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}
