package pool

// requestQueue is a container/heap priority queue of acquisition
// requests: higher priority first, FIFO among equal priorities via the
// sequence number.
type requestQueue []*request

func (q requestQueue) Len() int { return len(q) }

func (q requestQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}

func (q requestQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *requestQueue) Push(x any) {
	req := x.(*request)
	req.index = len(*q)
	*q = append(*q, req)
}

func (q *requestQueue) Pop() any {
	old := *q
	n := len(old)
	req := old[n-1]
	old[n-1] = nil
	req.index = -1
	*q = old[:n-1]
	return req
}

// pendingLocked counts queued requests that have not been cancelled.
// Caller holds the manager's lock.
func (q requestQueue) pendingLocked() int {
	n := 0
	for _, req := range q {
		if !req.cancelled {
			n++
		}
	}
	return n
}
