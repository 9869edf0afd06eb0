// SPDX-License-Identifier: MPL-2.0

package taskgraph

// topoGraph is a directed graph ordered with Kahn's algorithm. An edge from A
// to B means A must complete before B starts.
type topoGraph struct {
	// adjacency maps each node to the nodes that depend on it.
	adjacency map[string][]string
	// nodes tracks all nodes in insertion order for deterministic output.
	nodes   []string
	nodeSet map[string]bool
}

func newTopoGraph() *topoGraph {
	return &topoGraph{
		adjacency: make(map[string][]string),
		nodeSet:   make(map[string]bool),
	}
}

func (g *topoGraph) addNode(name string) {
	if g.nodeSet[name] {
		return
	}
	g.nodeSet[name] = true
	g.nodes = append(g.nodes, name)
}

func (g *topoGraph) addEdge(from, to string) {
	g.addNode(from)
	g.addNode(to)
	g.adjacency[from] = append(g.adjacency[from], to)
}

// sort returns an execution order, or the nodes left with unresolved
// in-degree when the graph has a cycle. Nodes at the same level keep
// insertion order.
func (g *topoGraph) sort() (order, blocked []string) {
	inDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		inDegree[node] = 0
	}
	for _, neighbors := range g.adjacency {
		for _, neighbor := range neighbors {
			inDegree[neighbor]++
		}
	}

	queue := make([]string, 0, len(g.nodes))
	for _, node := range g.nodes {
		if inDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, neighbor := range g.adjacency[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
			}
		}
	}

	if len(order) != len(g.nodes) {
		for _, node := range g.nodes {
			if inDegree[node] > 0 {
				blocked = append(blocked, node)
			}
		}
		return nil, blocked
	}
	return order, nil
}
