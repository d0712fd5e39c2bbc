package dag

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/kbukum/pixelflow/errors"
	"github.com/kbukum/pixelflow/logger"
)

// ExecuteAll validates the graph and runs every node in execution order.
//
// It fails with GRAPH_BUSY when a run is already in progress and with
// VALIDATION_FAILED, before any node starts, when Validate reports errors.
// The first node failure stops the run and is returned; outputs already
// written are kept. Cancellation through ec or ctx stops the run before the
// next node and is not an error. A nil ec gets a fresh context.
//
// The Result is non-nil whenever the run started, including on failure.
func (g *Graph) ExecuteAll(ctx context.Context, ec *ExecutionContext) (*Result, error) {
	return g.execute(ctx, ec, func() ([]Node, error) {
		g.mu.Lock()
		defer g.mu.Unlock()
		if vr := g.validateLocked(); !vr.IsValid() {
			return nil, errors.ValidationFailed(vr.ErrorMessages())
		}
		return g.executionOrderLocked()
	})
}

// ExecuteNode runs target after its transitive upstream dependencies, each
// once and dependencies first. Nodes unrelated to target do not run.
func (g *Graph) ExecuteNode(ctx context.Context, target Node, ec *ExecutionContext) (*Result, error) {
	if target == nil {
		return nil, errors.InvalidInput("node", "node is nil")
	}
	return g.execute(ctx, ec, func() ([]Node, error) {
		g.mu.RLock()
		defer g.mu.RUnlock()
		if g.nodes[target.Base().ID()] != target {
			return nil, errors.NotFound("node", target.Base().ID())
		}
		return g.dependenciesLocked(target)
	})
}

func (g *Graph) execute(ctx context.Context, ec *ExecutionContext, plan func() ([]Node, error)) (*Result, error) {
	if ec == nil {
		ec = NewExecutionContext()
	}
	if !g.executing.CompareAndSwap(false, true) {
		return nil, errors.GraphBusy("start an execution")
	}
	g.setActive(ec)

	runCtx, cancel := context.WithCancel(logger.ContextWithRunID(ctx, ec.RunID()))
	ec.bind(cancel)
	stopWatch := context.AfterFunc(ctx, ec.Cancel)

	log := g.log.WithFields(logger.Fields(logger.FieldRunID, ec.RunID()))
	start := time.Now()
	res := &Result{RunID: ec.RunID()}

	defer func() {
		stopWatch()
		cancel()
		res.Duration = time.Since(start)
		res.Progress = ec.Progress()
		g.setActive(nil)
		g.executing.Store(false)

		log.Info("graph execution finished", logger.MergeWithDuration(
			logger.Fields(logger.FieldStatus, string(res.Status), "nodes", len(res.Nodes)), res.Duration))
		g.emit(Event{Type: EventExecutionFinished, RunID: res.RunID, Status: res.Status, Progress: res.Progress})
	}()

	g.emit(Event{Type: EventExecutionStarted, RunID: ec.RunID()})

	nodes, err := plan()
	if err != nil {
		res.Status = StatusFailed
		log.Error("graph execution rejected", logger.ErrorFields("plan", err))
		g.emit(Event{Type: EventExecutionError, RunID: ec.RunID(), Status: StatusFailed, Err: err})
		return res, err
	}
	log.Info("graph execution started", logger.Fields("nodes", len(nodes)))

	if err := g.runSequence(runCtx, nodes, ec, res, log); err != nil {
		g.emit(Event{Type: EventExecutionError, RunID: ec.RunID(), Status: StatusFailed, Err: err})
		return res, err
	}
	return res, nil
}

// runSequence executes nodes strictly one after another.
func (g *Graph) runSequence(ctx context.Context, nodes []Node, ec *ExecutionContext, res *Result, log *logger.Logger) error {
	g.mu.RLock()
	run := Chain(callExecute, g.middleware...)
	g.mu.RUnlock()

	total := len(nodes)
	for i, n := range nodes {
		if ctx.Err() != nil {
			ec.Cancel()
		}
		if ec.IsCancelled() {
			log.Info("graph execution cancelled", logger.Fields("completed", i, "remaining", total-i))
			res.Status = StatusCancelled
			res.skip(nodes[i:])
			return nil
		}

		ec.SetProgress(float64(i) / float64(total))
		g.emit(Event{Type: EventExecutionProgress, RunID: ec.RunID(), Progress: ec.Progress()})

		nr, err := g.runNode(ctx, n, ec, run, log)
		res.Nodes = append(res.Nodes, nr)
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			ec.Cancel()
		}
		if ec.IsCancelled() && (stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)) {
			res.Nodes[len(res.Nodes)-1].Status = StatusCancelled
			log.Info("graph execution cancelled", logger.Fields("completed", i, "remaining", total-i-1))
			res.Status = StatusCancelled
			res.skip(nodes[i+1:])
			return nil
		}
		res.Status = StatusFailed
		res.skip(nodes[i+1:])
		return err
	}

	ec.SetProgress(1)
	g.emit(Event{Type: EventExecutionProgress, RunID: ec.RunID(), Progress: 1})
	res.Status = StatusCompleted
	return nil
}

func (g *Graph) runNode(ctx context.Context, n Node, ec *ExecutionContext, run RunFunc, log *logger.Logger) (NodeResult, error) {
	b := n.Base()
	nr := NodeResult{NodeID: b.ID(), Name: b.Name(), ClassName: b.ClassName()}
	runID := ec.RunID()

	started := nodeEvent(EventNodeStarted, b)
	started.RunID = runID
	g.emit(started)

	begin := time.Now()
	ran, err := executeSafe(ctx, n, ec, run, log)
	nr.Duration = time.Since(begin)

	var ev Event
	switch {
	case err != nil:
		nr.Status = StatusFailed
		nr.Error = err
		ev = nodeEvent(EventNodeFailed, b)
		ev.Err = err
	case !ran:
		nr.Status = StatusSkipped
		ev = nodeEvent(EventNodeFinished, b)
	default:
		nr.Status = StatusCompleted
		ev = nodeEvent(EventNodeFinished, b)
	}
	ev.RunID = runID
	ev.Status = nr.Status
	g.emit(ev)
	return nr, err
}
