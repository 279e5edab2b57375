package provision

import (
	"context"

	"github.com/dmitrijs2005/lazyboy/internal/logging"
	"github.com/looplab/fsm"
)

// Run states.
const (
	StateIdle     = "idle"
	StateDraining = "draining"
	StateDone     = "done"
)

// Per-database states.
const (
	StatePending     = "pending"
	StateChecking    = "checking"
	StateCreating    = "creating"
	StateReconciling = "reconciling"
	StateResolved    = "resolved"
)

const (
	eventStart     = "start"
	eventFinish    = "finish"
	eventCheck     = "check"
	eventCreate    = "create"
	eventReconcile = "reconcile"
	eventResolve   = "resolve"
)

// newRunMachine tracks one bootstrap run: idle -> draining -> done.
func newRunMachine(logger logging.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventStart, Src: []string{StateIdle}, Dst: StateDraining},
			{Name: eventFinish, Src: []string{StateDraining}, Dst: StateDone},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				logger.Debug(ctx, "run state", "from", e.Src, "to", e.Dst)
			},
		},
	)
}

// newDatabaseMachine tracks one database through
// pending -> checking -> [creating ->] reconciling -> resolved. Any state
// may resolve early.
func newDatabaseMachine(logger logging.Logger) *fsm.FSM {
	return fsm.NewFSM(
		StatePending,
		fsm.Events{
			{Name: eventCheck, Src: []string{StatePending}, Dst: StateChecking},
			{Name: eventCreate, Src: []string{StateChecking}, Dst: StateCreating},
			{Name: eventReconcile, Src: []string{StateChecking, StateCreating}, Dst: StateReconciling},
			{Name: eventResolve, Src: []string{StatePending, StateChecking, StateCreating, StateReconciling}, Dst: StateResolved},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				logger.Debug(ctx, "db state", "from", e.Src, "to", e.Dst)
			},
		},
	)
}
