// Package engine provides the execution toolkit behind every monctl command and the
// sync engine built on it.
//
// # Overview
//
// Commands fan work out across many independent remote resources and need to survive
// transient API failures. Three primitives cover this:
//
//   - Parallel: bounded-concurrency execution of independent jobs with fail-fast
//     scheduling and results in input order
//   - Retry: re-attempts an operation on selected error kinds, reporting every failure
//   - NaturalKey: "human" ordering of strings with embedded numbers (a9 < a11)
//
// The usual shape is one retried job per resource, submitted to Parallel:
//
//	jobs := make([]engine.Job[engine.ApplyResult], len(resources))
//	for i, res := range resources {
//	    jobs[i] = func(ctx context.Context) (engine.ApplyResult, error) {
//	        return engine.Retry(ctx, policy, func(ctx context.Context) (engine.ApplyResult, error) {
//	            return client.Apply(ctx, res)
//	        })
//	    }
//	}
//	results, err := engine.Parallel(ctx, jobs, engine.WithMaxConcurrency(8))
//
// Syncer packages exactly this, records the outcome of each resource, and stores the run.
//
// # Fail-fast
//
// Once a job fails, Parallel stops handing out jobs that have not started. Jobs already
// running are left to finish; their side effects still happen and their results are
// dropped. Parallel never returns partial results.
//
// # Error kinds
//
// Errors are classified into a closed set of ErrorKind values. Retry decides by set
// membership (KindSet.Contains(KindOf(err))), and both executors return the original
// error value unchanged.
package engine
