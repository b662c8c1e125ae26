package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/sentinel"
)

// RaceResult tallies the outcomes of racing the same operation.
type RaceResult struct {
	Successes int32
	Conflicts int32
	Errors    int32
}

// Race runs fn from n goroutines released at the same moment. Errors that
// carry the conflict code or wrap sentinel.ErrDuplicate count as conflicts.
func Race(n int, fn func(idx int) error) RaceResult {
	var wg sync.WaitGroup
	var ok, conflict, failed atomic.Int32
	start := make(chan struct{})

	for i := range n {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				ok.Add(1)
			case dErrors.HasCode(err, dErrors.CodeConflict), errors.Is(err, sentinel.ErrDuplicate):
				conflict.Add(1)
			default:
				failed.Add(1)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	return RaceResult{Successes: ok.Load(), Conflicts: conflict.Load(), Errors: failed.Load()}
}
