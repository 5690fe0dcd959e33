package engine_test

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/monctl/monctl/pkg/engine"
)

// Example_naturalOrder shows how tracking ids are ordered in a run.
func Example_naturalOrder() {
	ids := []string{"web:cpu-10", "web:cpu-9", "api:overview", "Web:cpu-2"}
	engine.SortNatural(ids)
	fmt.Println(strings.Join(ids, " "))
	// Output: api:overview Web:cpu-2 web:cpu-9 web:cpu-10
}

// Example_parallel runs independent jobs with at most two in flight.
func Example_parallel() {
	words := []string{"monitor", "dashboard", "slo"}
	jobs := make([]engine.Job[int], len(words))
	for i, w := range words {
		jobs[i] = func(ctx context.Context) (int, error) {
			return len(w), nil
		}
	}

	lengths, err := engine.Parallel(context.Background(), jobs, engine.WithMaxConcurrency(2))
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(lengths)
	// Output: [7 9 3]
}

// Example_retry re-attempts a transient failure and reports every failure to the sink.
func Example_retry() {
	attempts := 0
	policy := engine.RetryPolicy{
		Kinds:      engine.NewKindSet(engine.KindTransient),
		MaxRetries: 2,
		Sink:       engine.NewWriterSink(os.Stdout),
	}

	id, err := engine.Retry(context.Background(), policy, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 3 {
			return "", engine.NewTransientError("connection reset", nil)
		}
		return "m-42", nil
	})
	fmt.Println(id, err, attempts)
	// Output:
	// Error [transient] connection reset, 1 retries left
	// Error [transient] connection reset, 0 retries left
	// m-42 <nil> 3
}
