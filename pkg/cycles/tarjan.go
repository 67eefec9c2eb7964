package cycles

import (
	"gonum.org/v1/gonum/graph"
)

// CyclicSCCs runs Tarjan's strongly-connected-components algorithm and keeps
// only components of size > 1, i.e. the cycles of the graph.
func CyclicSCCs(g graph.Directed) [][]int64 {
	var (
		next    int
		stack   []int64
		onStack = map[int64]bool{}
		index   = map[int64]int{}
		lowLink = map[int64]int{}
		cycles  [][]int64
	)

	var connect func(id int64)
	connect = func(id int64) {
		index[id] = next
		lowLink[id] = next
		next++
		stack = append(stack, id)
		onStack[id] = true

		succ := g.From(id)
		for succ.Next() {
			sid := succ.Node().ID()
			if _, visited := index[sid]; !visited {
				connect(sid)
				if lowLink[sid] < lowLink[id] {
					lowLink[id] = lowLink[sid]
				}
			} else if onStack[sid] && index[sid] < lowLink[id] {
				lowLink[id] = index[sid]
			}
		}

		if lowLink[id] != index[id] {
			return
		}
		// id roots a component: pop the stack down to it
		var scc []int64
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false
			scc = append(scc, top)
			if top == id {
				break
			}
		}
		if len(scc) > 1 {
			cycles = append(cycles, scc)
		}
	}

	nodes := g.Nodes()
	for nodes.Next() {
		if id := nodes.Node().ID(); !visited(index, id) {
			connect(id)
		}
	}
	return cycles
}

func visited(index map[int64]int, id int64) bool {
	_, ok := index[id]
	return ok
}
