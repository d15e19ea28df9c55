package factcheck

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/agonai/agon/pkg/models"
	"github.com/agonai/agon/pkg/store"
	"github.com/google/uuid"
)

// Worker drains the durable fact-check queue. Requests live in the
// store with status pending/processing, so a crashed worker picks them
// back up via RecoverPending on the next startup.
type Worker struct {
	store   store.Store
	referee *Referee

	mu    sync.Mutex
	queue []uuid.UUID
	wake  chan struct{}

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a stopped worker. Call Start to begin processing.
func NewWorker(s store.Store, referee *Referee) *Worker {
	return &Worker{
		store:   s,
		referee: referee,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Start launches the processing goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()
	slog.Info("Fact-check worker started")
}

// Stop signals the worker and waits for the in-flight request to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
	slog.Info("Fact-check worker stopped")
}

// Enqueue adds a request id to the in-memory queue. Durability comes
// from the store row, not the queue.
func (w *Worker) Enqueue(id uuid.UUID) {
	w.mu.Lock()
	w.queue = append(w.queue, id)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// RecoverPending re-enqueues every pending/processing request. Run once
// at startup before Start so crashed work is not lost.
func (w *Worker) RecoverPending(ctx context.Context) error {
	requests, err := w.store.ListUnfinishedFactcheckRequests(ctx)
	if err != nil {
		return err
	}
	for _, req := range requests {
		w.Enqueue(req.ID)
	}
	if len(requests) > 0 {
		slog.Info("Recovered pending fact-check requests", "count", len(requests))
	}
	return nil
}

func (w *Worker) run(ctx context.Context) {
	for {
		id, ok := w.dequeue()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-w.wake:
				continue
			}
		}
		w.process(ctx, id)

		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		default:
		}
	}
}

func (w *Worker) dequeue() (uuid.UUID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.queue) == 0 {
		return uuid.Nil, false
	}
	id := w.queue[0]
	w.queue = w.queue[1:]
	return id, true
}

// process handles one request end to end. Failures mark the request
// failed; a duplicate result insert means another worker already
// finished it and is not an error.
func (w *Worker) process(ctx context.Context, id uuid.UUID) {
	req, err := w.store.GetFactcheckRequest(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		slog.Warn("Fact-check request not found", "request_id", id)
		return
	}
	if err != nil {
		slog.Error("Failed to load fact-check request", "request_id", id, "error", err)
		return
	}

	if err := w.store.UpdateFactcheckStatus(ctx, id, models.FactcheckStatusProcessing); err != nil {
		slog.Error("Failed to mark fact-check processing", "request_id", id, "error", err)
		return
	}

	claim, citations, err := w.loadSubject(ctx, req)
	if err != nil {
		slog.Warn("Fact-check subject not found", "request_id", id, "error", err)
		w.fail(ctx, id)
		return
	}

	result := &models.FactcheckResult{
		RequestID: req.ID,
		TurnID:    req.TurnID,
		CommentID: req.CommentID,
	}

	if len(citations) == 0 {
		result.Verdict = models.VerdictInconclusive
		result.Details = models.FactcheckDetails{Reason: "No citations to verify"}
	} else {
		v := w.referee.VerifyClaim(ctx, claim, citations)
		result.Verdict = v.Verdict
		result.CitationURL = v.CitationURL
		result.CitationAccessible = &v.CitationAccessible
		result.ContentMatch = &v.ContentMatch
		result.LogicValid = &v.LogicValid
		result.Details = v.Details
	}

	if err := w.store.CreateFactcheckResult(ctx, result); err != nil {
		if !errors.Is(err, store.ErrAlreadyExists) {
			slog.Error("Failed to save fact-check result", "request_id", id, "error", err)
			w.fail(ctx, id)
			return
		}
		slog.Info("Fact-check result already exists", "request_id", id)
	}

	if err := w.store.UpdateFactcheckStatus(ctx, id, models.FactcheckStatusCompleted); err != nil {
		slog.Error("Failed to mark fact-check completed", "request_id", id, "error", err)
		return
	}
	slog.Info("Fact-check completed", "request_id", id, "verdict", result.Verdict)
}

// loadSubject resolves the checked claim and its citations from the
// turn or comment the request points at.
func (w *Worker) loadSubject(ctx context.Context, req *models.FactcheckRequest) (string, []models.Citation, error) {
	if req.TurnID != nil {
		turn, err := w.store.GetTurn(ctx, *req.TurnID)
		if err != nil {
			return "", nil, err
		}
		return turn.Claim, turn.Citations, nil
	}
	if req.CommentID != nil {
		comment, err := w.store.GetComment(ctx, *req.CommentID)
		if err != nil {
			return "", nil, err
		}
		return comment.Content, comment.Citations, nil
	}
	return "", nil, store.ErrNotFound
}

func (w *Worker) fail(ctx context.Context, id uuid.UUID) {
	if err := w.store.UpdateFactcheckStatus(ctx, id, models.FactcheckStatusFailed); err != nil {
		slog.Error("Failed to mark fact-check failed", "request_id", id, "error", err)
	}
}
