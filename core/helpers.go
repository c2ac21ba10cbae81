package orchestration

import (
	"context"
	"fmt"
)

func (o *Orchestrator) currentContext() context.Context {
	if o == nil || o.baseContext == nil {
		return context.Background()
	}

	return o.baseContext
}

type workerRun func(context.Context) error

func panicSafeNamedWorker(name string, run func(context.Context) error) workerRun {
	return func(ctx context.Context) (err error) {
		defer func() {
			if recovered := recover(); recovered != nil {
				err = fmt.Errorf("%s worker panicked: %v", name, recovered)
			}
		}()

		if err = run(ctx); err != nil {
			return fmt.Errorf("%s worker failed: %w", name, err)
		}

		return nil
	}
}
