package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"slideflow/internal/models"
	"slideflow/internal/repository"
)

type stubRunner struct {
	result BatchResult
	err    error
}

func (r *stubRunner) ProcessBatch(context.Context, string, int) (BatchResult, error) {
	return r.result, r.err
}

func TestRunLinkEnqueuesContinuation(t *testing.T) {
	sets := newFakeSetStore(&models.GenerationSet{ID: "set-1", Status: models.SetStatusProcessing})
	enqueuer := &fakeEnqueuer{}
	runner := &stubRunner{result: BatchResult{Processed: 3, HasMore: true, NextBatchStart: 3}}
	c := NewController(runner, enqueuer, sets, zerolog.Nop())

	result, err := c.RunLink(context.Background(), "set-1", 0)
	if err != nil {
		t.Fatalf("run link: %v", err)
	}
	if !result.HasMore {
		t.Fatal("expected hasMore")
	}
	if len(enqueuer.links) != 1 || enqueuer.links[0] != "set-1@3" {
		t.Fatalf("enqueued links = %v, want [set-1@3]", enqueuer.links)
	}
}

func TestRunLinkFailedEnqueueFailsSet(t *testing.T) {
	sets := newFakeSetStore(&models.GenerationSet{ID: "set-1", Status: models.SetStatusProcessing})
	enqueuer := &fakeEnqueuer{err: errors.New("queue unavailable")}
	runner := &stubRunner{result: BatchResult{Processed: 3, HasMore: true, NextBatchStart: 3}}
	c := NewController(runner, enqueuer, sets, zerolog.Nop())

	if _, err := c.RunLink(context.Background(), "set-1", 0); err == nil {
		t.Fatal("expected error from failed enqueue")
	}

	set, _ := sets.GetByID(context.Background(), "set-1")
	if set.Status != models.SetStatusFailed {
		t.Fatalf("set status = %s, want failed", set.Status)
	}
}

func TestRunLinkProcessorErrorFailsSet(t *testing.T) {
	sets := newFakeSetStore(&models.GenerationSet{ID: "set-1", Status: models.SetStatusProcessing})
	runner := &stubRunner{err: errors.New("persistence unreachable")}
	c := NewController(runner, &fakeEnqueuer{}, sets, zerolog.Nop())

	if _, err := c.RunLink(context.Background(), "set-1", 3); err == nil {
		t.Fatal("expected processor error to propagate")
	}

	set, _ := sets.GetByID(context.Background(), "set-1")
	if set.Status != models.SetStatusFailed {
		t.Fatalf("set status = %s, want failed", set.Status)
	}
}

func TestFailureWriteDoesNotDowngradeTerminalSet(t *testing.T) {
	for _, terminal := range []models.SetStatus{models.SetStatusCompleted, models.SetStatusPartial} {
		sets := newFakeSetStore(&models.GenerationSet{ID: "set-1", Status: terminal})
		runner := &stubRunner{err: errors.New("late duplicate link blew up")}
		c := NewController(runner, &fakeEnqueuer{}, sets, zerolog.Nop())

		if _, err := c.RunLink(context.Background(), "set-1", 0); err == nil {
			t.Fatal("expected error")
		}

		set, _ := sets.GetByID(context.Background(), "set-1")
		if set.Status != terminal {
			t.Fatalf("terminal set downgraded from %s to %s", terminal, set.Status)
		}
	}
}

func TestRunLinkVanishedSetPropagatesNotFound(t *testing.T) {
	sets := newFakeSetStore()
	runner := &stubRunner{err: repository.ErrSetNotFound}
	enqueuer := &fakeEnqueuer{}
	c := NewController(runner, enqueuer, sets, zerolog.Nop())

	result, err := c.RunLink(context.Background(), "gone", 0)
	if !errors.Is(err, repository.ErrSetNotFound) {
		t.Fatalf("err = %v, want ErrSetNotFound so direct callers can 404", err)
	}
	if result.HasMore || result.Processed != 0 {
		t.Fatalf("deleted set result = %+v, want zero value", result)
	}
	if len(enqueuer.links) != 0 {
		t.Fatalf("continuation enqueued for a deleted set: %v", enqueuer.links)
	}
}
