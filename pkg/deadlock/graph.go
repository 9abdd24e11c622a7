// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package deadlock

import "time"

// buildGraphLocked returns the adjacency list waiter -> []owner derived
// from the authoritative dependency edge list. Must be called with mu
// held.
func (e *Engine) buildGraphLocked() map[string][]string {
	g := make(map[string][]string, len(e.dependencies))
	for _, d := range e.dependencies {
		g[d.Waiter] = append(g[d.Waiter], d.Owner)
	}
	return g
}

// hasCycle runs DFS over graph with a recursion-stack set; a back-edge to
// a node already on the stack means a cycle exists.
func hasCycle(graph map[string][]string) bool {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)

	var visit func(node string) bool
	visit = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		for _, next := range graph[node] {
			if onStack[next] {
				return true
			}
			if !visited[next] && visit(next) {
				return true
			}
		}
		onStack[node] = false
		return false
	}

	for node := range graph {
		if !visited[node] {
			if visit(node) {
				return true
			}
		}
	}
	return false
}

// DetectDeadlock runs DFS cycle detection over the current dependency
// graph. On a cycle, it reports the participants (the path from the
// back-edge's target through to the revisited node) and the dependency
// edges whose endpoints are both cycle participants.
func (e *Engine) DetectDeadlock() DeadlockInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	graph := e.buildGraphLocked()
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var path []string

	var cycle []string
	var visit func(node string) bool
	visit = func(node string) bool {
		visited[node] = true
		onStack[node] = true
		path = append(path, node)

		for _, next := range graph[node] {
			if onStack[next] {
				// Found the back edge: the cycle is the suffix of path
				// starting at next.
				for i, n := range path {
					if n == next {
						cycle = append([]string{}, path[i:]...)
						break
					}
				}
				return true
			}
			if !visited[next] && visit(next) {
				return true
			}
		}

		onStack[node] = false
		path = path[:len(path)-1]
		return false
	}

	for node := range graph {
		if visited[node] {
			continue
		}
		path = path[:0]
		if visit(node) {
			break
		}
	}

	if len(cycle) == 0 {
		return DeadlockInfo{Detected: false}
	}

	participants := make(map[string]bool, len(cycle))
	for _, p := range cycle {
		participants[p] = true
	}

	var involved []DependencyEdge
	for _, d := range e.dependencies {
		if participants[d.Waiter] && participants[d.Owner] {
			involved = append(involved, d)
		}
	}

	info := DeadlockInfo{
		Detected:          true,
		CycleParticipants: cycle,
		DetectedAt:        time.Now(),
	}
	for _, d := range involved {
		info.InvolvedResources = append(info.InvolvedResources, d.Handle)
	}

	e.deadlocksDetected++
	return info
}
