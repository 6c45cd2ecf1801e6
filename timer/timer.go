package timer

import (
	"container/heap"
	"sync"
	"time"
)

type job struct {
	id    int64
	due   time.Time
	every time.Duration
	fn    func()
	index int
}

// jobHeap 按到期时间排序的最小堆
type jobHeap []*job

func (h jobHeap) Len() int           { return len(h) }
func (h jobHeap) Less(i, j int) bool { return h[i].due.Before(h[j].due) }
func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x interface{}) {
	j := x.(*job)
	j.index = len(*h)
	*h = append(*h, j)
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	j := old[n-1]
	old[n-1] = nil
	j.index = -1
	*h = old[:n-1]
	return j
}

// Manager runs callbacks when they fall due. The scheduler sleeps until the
// earliest job; callbacks run one at a time on a separate worker so a slow
// callback delays only the callbacks queued behind it.
type Manager struct {
	mutex    sync.Mutex
	jobs     jobHeap
	byID     map[int64]*job
	nextID   int64
	wake     chan struct{}
	fire     chan func()
	stop     chan struct{}
	stopOnce sync.Once
}

func NewManager() *Manager {
	m := &Manager{
		byID: make(map[int64]*job),
		wake: make(chan struct{}, 1),
		fire: make(chan func(), 64),
		stop: make(chan struct{}),
	}
	go m.schedule()
	go m.work()
	return m
}

// After runs fn once after d.
func (m *Manager) After(d time.Duration, fn func()) int64 {
	return m.add(d, 0, fn)
}

// Every runs fn every d, the first time after d.
func (m *Manager) Every(d time.Duration, fn func()) int64 {
	return m.add(d, d, fn)
}

func (m *Manager) add(delay, every time.Duration, fn func()) int64 {
	m.mutex.Lock()
	m.nextID++
	j := &job{id: m.nextID, due: time.Now().Add(delay), every: every, fn: fn}
	heap.Push(&m.jobs, j)
	m.byID[j.id] = j
	m.mutex.Unlock()

	m.poke()
	return j.id
}

// Cancel drops a pending job. It reports false if the id is unknown or the
// one-shot job already ran.
func (m *Manager) Cancel(id int64) bool {
	m.mutex.Lock()
	j, ok := m.byID[id]
	if ok {
		heap.Remove(&m.jobs, j.index)
		delete(m.byID, id)
	}
	m.mutex.Unlock()

	if ok {
		m.poke()
	}
	return ok
}

// Len reports the number of pending jobs.
func (m *Manager) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.jobs)
}

// Stop ends scheduling; nothing fires afterwards.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) poke() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) schedule() {
	t := time.NewTimer(time.Hour)
	defer t.Stop()

	for {
		for _, fn := range m.popDue(time.Now()) {
			select {
			case m.fire <- fn:
			case <-m.stop:
				return
			}
		}
		t.Reset(m.nextWait())

		select {
		case <-m.stop:
			return
		case <-m.wake:
		case <-t.C:
		}
	}
}

// popDue takes every job due at now; repeating jobs are pushed back.
func (m *Manager) popDue(now time.Time) []func() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var due []func()
	for len(m.jobs) > 0 && !m.jobs[0].due.After(now) {
		j := m.jobs[0]
		due = append(due, j.fn)
		if j.every > 0 {
			j.due = now.Add(j.every)
			heap.Fix(&m.jobs, 0)
			continue
		}
		heap.Pop(&m.jobs)
		delete(m.byID, j.id)
	}
	return due
}

func (m *Manager) nextWait() time.Duration {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.jobs) == 0 {
		return time.Hour
	}
	if d := time.Until(m.jobs[0].due); d > 0 {
		return d
	}
	return 0
}

func (m *Manager) work() {
	for {
		select {
		case <-m.stop:
			return
		case fn := <-m.fire:
			fn()
		}
	}
}
