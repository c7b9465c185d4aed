package perf

import (
	"context"
	"sync"
	"time"
)

type perfContextKeyType struct{}

var PerfContextKey = perfContextKeyType{}

// Returns the RequestPerf attached to the given context, or nil if there is
// none. All RequestPerf methods are safe to call on a nil receiver, so
// callers do not need to check.
func ExtractPerf(ctx context.Context) *RequestPerf {
	if rp, ok := ctx.Value(PerfContextKey).(*RequestPerf); ok {
		return rp
	}
	return nil
}

type RequestPerf struct {
	Route  string
	Path   string // the path actually matched
	Method string
	Start  time.Time
	End    time.Time

	mu     sync.Mutex
	Blocks []PerfBlock
}

func MakeNewRequestPerf(route string, method string, path string) *RequestPerf {
	return &RequestPerf{
		Start:  time.Now(),
		Route:  route,
		Path:   path,
		Method: method,
	}
}

func (rp *RequestPerf) StartBlock(category, description string) *BlockHandle {
	if rp == nil {
		return nil
	}

	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.Blocks = append(rp.Blocks, PerfBlock{
		Start:       time.Now(),
		Category:    category,
		Description: description,
	})
	return &BlockHandle{rp: rp, index: len(rp.Blocks) - 1}
}

func (rp *RequestPerf) Checkpoint(category, description string) {
	if rp == nil {
		return
	}

	now := time.Now()
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.Blocks = append(rp.Blocks, PerfBlock{
		Start:       now,
		End:         now,
		Category:    category,
		Description: description,
	})
}

func (rp *RequestPerf) EndRequest() {
	if rp == nil {
		return
	}

	now := time.Now()
	rp.mu.Lock()
	defer rp.mu.Unlock()
	for i := range rp.Blocks {
		if rp.Blocks[i].End.IsZero() {
			rp.Blocks[i].End = now
		}
	}
	rp.End = now
}

func (rp *RequestPerf) MsFromStart(block *PerfBlock) float64 {
	return float64(block.Start.Sub(rp.Start).Nanoseconds()) / 1000 / 1000
}

type BlockHandle struct {
	rp    *RequestPerf
	index int
}

func (b *BlockHandle) End() {
	if b == nil {
		return
	}

	b.rp.mu.Lock()
	defer b.rp.mu.Unlock()
	if b.rp.Blocks[b.index].End.IsZero() {
		b.rp.Blocks[b.index].End = time.Now()
	}
}

type PerfBlock struct {
	Start       time.Time
	End         time.Time
	Category    string
	Description string
}

func (pb *PerfBlock) Duration() time.Duration {
	return pb.End.Sub(pb.Start)
}

func (pb *PerfBlock) DurationMs() float64 {
	return float64(pb.Duration().Nanoseconds()) / 1000 / 1000
}
