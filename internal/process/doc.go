// Package process supervises units of work.
//
// Process wraps a Func with autonomous lifecycle control:
//   - Retry with exponential backoff (BaseBackoff * 2^(k-1) before retry k)
//   - Execution metrics counted once per logical invocation
//   - Optimization passes when the success rate falls below a threshold
//   - Continuous execution with pause, resume and stop
//
// States and transitions:
//
//	idle       -> running, paused, stopped
//	running    -> running, idle, error, optimizing, paused, stopped
//	optimizing -> idle, running, error, paused, stopped
//	error      -> running, paused, stopped
//	paused     -> running, stopped
//	stopped    (terminal)
//
// Manager holds named processes and aggregates their metrics:
//   - Register/Unregister by name
//   - Summary of state and success rate per process
//   - StopAll for concurrent shutdown
//
// CommandFunc runs a command line per attempt, killing its process group
// when the attempt is cancelled.
//
// Example usage:
//
//	fn, _ := process.NewCommandFunc("curl -fsS http://localhost:8080/health", 5*time.Second)
//	p, err := process.New(process.DefaultConfig("health", fn),
//	    process.WithStateChangeHook(func(name string, old, new process.State, err error) {
//	        log.Printf("%s: %s -> %s", name, old, new)
//	    }),
//	)
//	if err != nil {
//	    return err
//	}
//	_ = p.StartContinuous(10 * time.Second)
//	defer p.Stop()
package process
