package optimizer

import (
	"container/heap"

	"texdefrag/internal/graph"
)

type candidateKey struct {
	A, B   graph.ChartID
	VA, VB uint64
}

type entry struct {
	candidateKey
	score float64
}

// candidateQueue is a max-heap on score; ties go to the lower chart ids.
type candidateQueue []entry

func (q candidateQueue) Len() int { return len(q) }

func (q candidateQueue) Less(i, j int) bool {
	if q[i].score != q[j].score {
		return q[i].score > q[j].score
	}
	if q[i].A != q[j].A {
		return q[i].A < q[j].A
	}
	return q[i].B < q[j].B
}

func (q candidateQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *candidateQueue) Push(x any) { *q = append(*q, x.(entry)) }

func (q *candidateQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

func (q *candidateQueue) push(e entry) { heap.Push(q, e) }

func (q *candidateQueue) pop() entry { return heap.Pop(q).(entry) }
