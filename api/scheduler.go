// Package api
// Author: momentics
//
// Scheduler contract DSM consumes from the work-stealing task
// scheduler (spec §6). The scheduler itself is out of scope; DSM only
// depends on this contract to interleave RMA waits with progress on
// other tasks and to inject acquire/release around migrating tasks.

package api

// Scheduler is the work-stealing scheduler's contract with DSM.
type Scheduler interface {
	// Poll is invoked by DSM while it waits on an RMA completion or a
	// cache slot. The scheduler may run other ready tasks during the
	// call; releaseFn/acquireFn are offered so the scheduler's own
	// task-migration points can transfer memory order across ranks.
	Poll(releaseFn, acquireFn func())

	// ThreadSpawn wraps body so DSM can inject onEnter (acquire) before
	// it runs and onExit (release) after it completes or migrates,
	// regardless of which rank body ultimately executes on.
	ThreadSpawn(onEnter, onExit func(), body func())
}
