package dispatch

import (
	"sync"
	"sync/atomic"

	"github.com/voxflow/voxflow/pkg/flow"
)

// stats holds the dispatcher's execution counters. Counters are atomics;
// the map of per-opcode counters is guarded separately because runtime
// operation registration can grow it.
type stats struct {
	total  atomic.Int64
	failed atomic.Int64

	mu    sync.RWMutex
	perOp map[flow.Opcode]*atomic.Int64
}

func (s *stats) init(ops map[flow.Opcode]string) {
	s.perOp = make(map[flow.Opcode]*atomic.Int64, len(ops))
	for op := range ops {
		s.perOp[op] = &atomic.Int64{}
	}
}

func (s *stats) ensureOp(op flow.Opcode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.perOp[op]; !ok {
		s.perOp[op] = &atomic.Int64{}
	}
}

func (s *stats) hit(op flow.Opcode) {
	s.total.Add(1)
	s.mu.RLock()
	c, ok := s.perOp[op]
	s.mu.RUnlock()
	if ok {
		c.Add(1)
	}
}

func (s *stats) fail() {
	s.failed.Add(1)
}

// Stats is a point-in-time snapshot of dispatcher counters.
type Stats struct {
	// Total counts every Execute call, including rejected opcodes.
	Total int64

	// Failed counts handler failures and unknown opcodes.
	Failed int64

	// PerOp maps opcode to its execution count. Only opcodes executed or
	// registered at least once appear.
	PerOp map[flow.Opcode]int64

	// SuccessRate is (Total-Failed)/Total, or 1 when nothing ran yet.
	SuccessRate float64
}

func (s *stats) snapshot() Stats {
	out := Stats{
		Total:  s.total.Load(),
		Failed: s.failed.Load(),
		PerOp:  make(map[flow.Opcode]int64),
	}
	s.mu.RLock()
	for op, c := range s.perOp {
		if n := c.Load(); n > 0 {
			out.PerOp[op] = n
		}
	}
	s.mu.RUnlock()
	if out.Total == 0 {
		out.SuccessRate = 1
	} else {
		out.SuccessRate = float64(out.Total-out.Failed) / float64(out.Total)
	}
	return out
}
