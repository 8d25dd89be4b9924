package toolbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/botstream/pkg/llm"
	"github.com/papercomputeco/botstream/pkg/logger"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 64
)

// ErrPoolClosed is reported for calls submitted after Close.
var ErrPoolClosed = errors.New("tool pool closed")

// job is one tool call of a batch. The worker writes the result into the
// batch's slot and marks it done.
type job struct {
	ctx   context.Context
	call  llm.ToolCall
	slot  *llm.ToolResult
	batch *sync.WaitGroup
}

// Config is the configuration options for the tool pool.
type Config struct {
	// Registry resolves tool names to implementations.
	Registry *Registry

	// NumWorkers is the number of concurrent tool executions (defaults to 3).
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	// Logger is the provided slog logger
	Logger *slog.Logger
}

// Pool executes tool calls on a fixed set of workers.
type Pool struct {
	config *Config
	queue  chan job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Registry == nil {
		return nil, errors.New("tool registry is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	p := &Pool{
		config: c,
		queue:  make(chan job, c.QueueSize),
		logger: c.Logger,
	}

	p.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go p.worker(i)
	}

	return p, nil
}

// Run executes calls concurrently and returns one result per call, in call
// order. Calls that cannot be scheduled because ctx ends or the pool is
// closed get an error result, so the batch is always complete.
func (p *Pool) Run(ctx context.Context, calls []llm.ToolCall) []llm.ToolResult {
	results := make([]llm.ToolResult, len(calls))

	var batch sync.WaitGroup
	for i, call := range calls {
		batch.Add(1)
		j := job{ctx: ctx, call: call, slot: &results[i], batch: &batch}

		if err := p.submit(j); err != nil {
			p.logger.Warn("tool call not scheduled",
				"tool", call.Function.Name,
				"tool_call_id", call.ID,
				"error", err,
			)
			results[i] = errorResult(call, err)
			batch.Done()
		}
	}

	batch.Wait()
	return results
}

// submit blocks until the job is queued, ctx ends, or the pool is closed.
func (p *Pool) submit(j job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- j:
		p.logger.Debug("tool call queued",
			"tool", j.call.Function.Name,
			"tool_call_id", j.call.ID,
		)
		return nil
	case <-j.ctx.Done():
		return j.ctx.Err()
	}
}

// Close signals workers to stop and waits for in-flight calls to drain.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("tool worker started", "worker_id", id)

	for j := range p.queue {
		p.processJob(j)
	}

	p.logger.Debug("tool worker stopped", "worker_id", id)
}

func (p *Pool) processJob(j job) {
	defer j.batch.Done()

	if err := j.ctx.Err(); err != nil {
		*j.slot = errorResult(j.call, err)
		return
	}

	*j.slot = p.config.Registry.Call(j.ctx, j.call)

	p.logger.Debug("tool call finished",
		"tool", j.call.Function.Name,
		"tool_call_id", j.call.ID,
	)
}
