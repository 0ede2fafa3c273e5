package dataflow

import (
	"fmt"
	"slices"
	"strings"
)

// Endpoint addresses one port of one node.
type Endpoint struct {
	NodeID string
	Port   string
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return e.NodeID + "." + e.Port
}

// Edge is a data flow from a producer port to a consumer port.
type Edge struct {
	From Endpoint
	To   Endpoint
}

// DAG holds nodes keyed by id and the directed edges between them.
//
// Validation happens at insertion: AddNode and Connect reject anything
// that would make the graph invalid, so a DAG is always acyclic.
// DAG is not safe for concurrent mutation.
type DAG struct {
	name  string
	nodes map[string]Node
	order map[string]int
	ids   []string
	edges []Edge

	successors   map[string][]string
	predecessors map[string][]string
	incoming     map[string][]Edge
}

// NewDAG creates an empty DAG.
func NewDAG(name string) *DAG {
	return &DAG{
		name:         name,
		nodes:        make(map[string]Node),
		order:        make(map[string]int),
		successors:   make(map[string][]string),
		predecessors: make(map[string][]string),
		incoming:     make(map[string][]Edge),
	}
}

// Name returns the DAG name.
func (d *DAG) Name() string {
	return d.name
}

// AddNode adds a node keyed by its id.
func (d *DAG) AddNode(n Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrInvalidNodeID)
	}
	id := n.ID()
	if id == "" || strings.ContainsAny(id, " \t\n\r") {
		return fmt.Errorf("%w: %q", ErrInvalidNodeID, id)
	}
	if _, exists := d.nodes[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, id)
	}
	d.nodes[id] = n
	d.order[id] = len(d.ids)
	d.ids = append(d.ids, id)
	return nil
}

// AddEdge connects from's df_out port to to's df_in port.
func (d *DAG) AddEdge(from, to string) error {
	return d.Connect(Endpoint{NodeID: from, Port: PortOut}, Endpoint{NodeID: to, Port: PortIn})
}

// Connect adds an edge from a producer port to a consumer port.
//
// Fails with ErrUnknownNode if either node is missing, ErrPortInUse if the
// consumer port already has a producer, and ErrCycleDetected if the edge
// would close a cycle.
func (d *DAG) Connect(from, to Endpoint) error {
	if from.Port == "" {
		from.Port = PortOut
	}
	if to.Port == "" {
		to.Port = PortIn
	}
	var errs []error
	if _, ok := d.nodes[from.NodeID]; !ok {
		errs = append(errs, fmt.Errorf("%w: edge source %q", ErrUnknownNode, from.NodeID))
	}
	if _, ok := d.nodes[to.NodeID]; !ok {
		errs = append(errs, fmt.Errorf("%w: edge target %q", ErrUnknownNode, to.NodeID))
	}
	if len(errs) == 1 {
		return errs[0]
	}
	if len(errs) > 1 {
		return fmt.Errorf("%w; %w", errs[0], errs[1])
	}

	for _, e := range d.incoming[to.NodeID] {
		if e.To.Port == to.Port {
			return fmt.Errorf("%w: %s is fed by %s", ErrPortInUse, to, e.From)
		}
	}
	if from.NodeID == to.NodeID || d.reaches(to.NodeID, from.NodeID) {
		return fmt.Errorf("%w: edge %s -> %s", ErrCycleDetected, from, to)
	}

	edge := Edge{From: from, To: to}
	d.edges = append(d.edges, edge)
	d.incoming[to.NodeID] = append(d.incoming[to.NodeID], edge)
	if !slices.Contains(d.successors[from.NodeID], to.NodeID) {
		d.successors[from.NodeID] = append(d.successors[from.NodeID], to.NodeID)
		d.predecessors[to.NodeID] = append(d.predecessors[to.NodeID], from.NodeID)
	}
	return nil
}

// reaches reports whether target is reachable from start.
func (d *DAG) reaches(start, target string) bool {
	seen := map[string]bool{start: true}
	stack := []string{start}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		for _, next := range d.successors[cur] {
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Node returns the node with the given id.
func (d *DAG) Node(id string) (Node, error) {
	n, ok := d.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	return n, nil
}

// HasNode reports whether the DAG contains id.
func (d *DAG) HasNode(id string) bool {
	_, ok := d.nodes[id]
	return ok
}

// NodeIDs returns node ids in insertion order.
func (d *DAG) NodeIDs() []string {
	return slices.Clone(d.ids)
}

// Edges returns all edges in insertion order.
func (d *DAG) Edges() []Edge {
	return slices.Clone(d.edges)
}

// Incoming returns the edges feeding the node's input ports.
func (d *DAG) Incoming(id string) []Edge {
	return slices.Clone(d.incoming[id])
}

// Successors returns the distinct nodes consuming id's outputs.
func (d *DAG) Successors(id string) []string {
	return slices.Clone(d.successors[id])
}

// Predecessors returns the distinct nodes producing id's inputs.
func (d *DAG) Predecessors(id string) []string {
	return slices.Clone(d.predecessors[id])
}

// Sinks returns nodes with no outgoing edges, in insertion order.
func (d *DAG) Sinks() []string {
	var out []string
	for _, id := range d.ids {
		if len(d.successors[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// Sources returns nodes with no incoming edges, in insertion order.
func (d *DAG) Sources() []string {
	var out []string
	for _, id := range d.ids {
		if len(d.predecessors[id]) == 0 {
			out = append(out, id)
		}
	}
	return out
}

// UniqueSink returns the only sink, or ErrNoUniqueSink.
func (d *DAG) UniqueSink() (string, error) {
	sinks := d.Sinks()
	if len(sinks) != 1 {
		return "", fmt.Errorf("%w: found %v", ErrNoUniqueSink, sinks)
	}
	return sinks[0], nil
}

// Ancestors returns id and every node it transitively depends on, sorted
// so that each producer precedes its consumers. Ties are broken by
// insertion order, which makes the result deterministic.
func (d *DAG) Ancestors(id string) ([]string, error) {
	if _, ok := d.nodes[id]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}

	closure := map[string]bool{id: true}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range d.predecessors[cur] {
			if !closure[p] {
				closure[p] = true
				stack = append(stack, p)
			}
		}
	}

	// Kahn's algorithm restricted to the closure.
	inDegree := make(map[string]int, len(closure))
	for n := range closure {
		inDegree[n] = len(d.predecessors[n])
	}
	var ready []string
	for n, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, n)
		}
	}
	byInsertion := func(a, b string) int { return d.order[a] - d.order[b] }
	slices.SortFunc(ready, byInsertion)

	sorted := make([]string, 0, len(closure))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		sorted = append(sorted, cur)
		for _, next := range d.successors[cur] {
			if !closure[next] {
				continue
			}
			inDegree[next]--
			if inDegree[next] == 0 {
				ready = append(ready, next)
				slices.SortFunc(ready, byInsertion)
			}
		}
	}

	if len(sorted) != len(closure) {
		// Unreachable while Connect rejects cycles.
		return nil, fmt.Errorf("%w: sorted %d of %d ancestors of %s", ErrCycleDetected, len(sorted), len(closure), id)
	}
	return sorted, nil
}
