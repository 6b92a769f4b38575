// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

import "context"

// Reactor represents a generic poll-driven event loop. DSM's own wait
// loops (RMA completion, cache slot availability) are driven through
// the Scheduler contract instead; Reactor is the run-to-completion
// shape the reference scheduler in package sched exposes for whatever
// owns its lifetime.
type Reactor interface {
	Run(ctx context.Context) error
}
