package generation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/database"
	"wedding-ai-backend/internal/database/dbtest"
	"wedding-ai-backend/internal/generation"
	"wedding-ai-backend/internal/models"
)

type recordedEvent struct {
	jobID string
	event string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) PublishJobEvent(_ context.Context, job *models.GenerationJob, event string, _ map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{jobID: job.ID, event: event})
	return nil
}

func (p *fakePublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.event
	}
	return names
}

func newService(t *testing.T, publisher generation.EventPublisher) (*generation.Service, *database.Store) {
	t.Helper()
	store := dbtest.NewStore(t)
	svc := generation.NewService(store, generation.Options{CostPerImage: 1, MaxImagesPerJob: 8}, publisher, dbtest.Logger())
	return svc, store
}

func recordResults(t *testing.T, svc *generation.Service, jobID string, successes, failures int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < successes; i++ {
		ok, err := svc.RecordImageResult(ctx, jobID, true, "")
		require.NoError(t, err)
		require.True(t, ok)
	}
	for i := 0; i < failures; i++ {
		ok, err := svc.RecordImageResult(ctx, jobID, false, "provider timeout")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func jobTransactions(t *testing.T, store *database.Store, jobID string) []models.CreditTransaction {
	t.Helper()
	txs, err := store.Queries().ListTransactionsForJob(context.Background(), jobID)
	require.NoError(t, err)
	return txs
}

func TestReserve_DeductsAndCreatesPendingJob(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 10)

	job, err := svc.Reserve(context.Background(), "user-1", 4, "hanbok")
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Equal(t, 4, job.TotalImages)
	assert.Equal(t, 4, job.CreditsReserved)
	assert.Equal(t, 6, dbtest.Balance(t, store, "user-1"))

	txs := jobTransactions(t, store, job.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, -4, txs[0].Amount)
	assert.Equal(t, models.TransactionTypeDeduction, txs[0].Type)
}

func TestReserve_InsufficientCreditsCreatesNothing(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 3)
	ctx := context.Background()

	_, err := svc.Reserve(ctx, "user-1", 5, "hanbok")
	assert.ErrorIs(t, err, apperrors.ErrInsufficientCredits)
	assert.Equal(t, 3, dbtest.Balance(t, store, "user-1"))

	jobs, err := svc.ListJobs(ctx, "user-1", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestReserve_ValidatesImageCount(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 100)

	_, err := svc.Reserve(context.Background(), "user-1", 0, "hanbok")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Reserve(context.Background(), "user-1", 9, "hanbok")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = svc.Reserve(context.Background(), "user-1", 2, "  ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestFinalize_PartialChargesFailedImages(t *testing.T) {
	publisher := &fakePublisher{}
	svc, store := newService(t, publisher)
	dbtest.CreateUser(t, store, "user-1", 10)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 4, "classic-studio")
	require.NoError(t, err)
	require.NoError(t, svc.MarkProcessing(ctx, job.ID))
	recordResults(t, svc, job.ID, 2, 2)

	result, err := svc.Finalize(ctx, job.ID)
	require.NoError(t, err)

	assert.False(t, result.AlreadyFinal)
	assert.Equal(t, 0, result.Refunded)
	assert.Equal(t, models.JobStatusPartial, result.Job.Status)
	assert.Equal(t, 4, result.Job.CreditsUsed)
	assert.True(t, result.Job.CompletedAt.Valid)
	assert.Equal(t, 6, dbtest.Balance(t, store, "user-1"))

	txs := jobTransactions(t, store, job.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TransactionTypeDeduction, txs[0].Type)

	assert.Equal(t, []string{
		generation.EventJobStarted,
		generation.EventImageCompleted,
		generation.EventImageCompleted,
		generation.EventImageFailed,
		generation.EventImageFailed,
		generation.EventJobFinalized,
	}, publisher.names())
}

func TestFinalize_RefundsOnlyUnprocessedImages(t *testing.T) {
	store := dbtest.NewStore(t)
	svc := generation.NewService(store, generation.Options{CostPerImage: 2, MaxImagesPerJob: 8}, nil, dbtest.Logger())
	dbtest.CreateUser(t, store, "user-1", 8)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 4, "hanbok")
	require.NoError(t, err)
	recordResults(t, svc, job.ID, 1, 1)

	result, err := svc.Finalize(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusPartial, result.Job.Status)
	assert.Equal(t, 4, result.Job.CreditsUsed)
	assert.Equal(t, 4, result.Refunded)
	assert.Equal(t, 4, dbtest.Balance(t, store, "user-1"))

	txs := jobTransactions(t, store, job.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, -8, txs[0].Amount)
	assert.Equal(t, models.TransactionTypeRefund, txs[1].Type)
	assert.Equal(t, 4, txs[1].Amount)
	assert.Contains(t, txs[1].Reason, "2 of 4 image(s) never processed")
}

func TestFinalize_CompletedRefundsNothing(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 3)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 3, "outdoor-garden")
	require.NoError(t, err)
	recordResults(t, svc, job.ID, 3, 0)

	result, err := svc.Finalize(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, result.Job.Status)
	assert.Equal(t, 0, result.Refunded)
	assert.Equal(t, 0, dbtest.Balance(t, store, "user-1"))
	assert.Len(t, jobTransactions(t, store, job.ID), 1)
}

func TestFinalize_FailedRefundsUnprocessedImages(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 4)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 4, "hanbok")
	require.NoError(t, err)
	recordResults(t, svc, job.ID, 0, 1)

	result, err := svc.Finalize(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, result.Job.Status)
	assert.Equal(t, 1, result.Job.CreditsUsed)
	assert.Equal(t, 3, result.Refunded)
	assert.Equal(t, 3, dbtest.Balance(t, store, "user-1"))
}

func TestFinalize_AllImagesFailedRefundsNothing(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 4)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 4, "hanbok")
	require.NoError(t, err)
	recordResults(t, svc, job.ID, 0, 4)

	result, err := svc.Finalize(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, result.Job.Status)
	assert.Equal(t, 4, result.Job.CreditsUsed)
	assert.Equal(t, 0, result.Refunded)
	assert.Equal(t, 0, dbtest.Balance(t, store, "user-1"))
}

func TestFinalize_SecondCallIsNoop(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 4)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 4, "hanbok")
	require.NoError(t, err)
	recordResults(t, svc, job.ID, 1, 0)

	_, err = svc.Finalize(ctx, job.ID)
	require.NoError(t, err)

	result, err := svc.Finalize(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, result.AlreadyFinal)
	assert.Equal(t, 0, result.Refunded)
	assert.Equal(t, 3, dbtest.Balance(t, store, "user-1"))
	assert.Len(t, jobTransactions(t, store, job.ID), 2)
}

func TestFinalize_ConcurrentCallersRefundOnce(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 8)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 8, "hanbok")
	require.NoError(t, err)
	recordResults(t, svc, job.ID, 3, 1)

	var wg sync.WaitGroup
	results := make([]*generation.FinalizeResult, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := svc.Finalize(ctx, job.ID)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	finalized := 0
	for _, r := range results {
		require.NotNil(t, r)
		if !r.AlreadyFinal {
			finalized++
			assert.Equal(t, 4, r.Refunded)
		}
	}
	assert.Equal(t, 1, finalized)
	assert.Equal(t, 4, dbtest.Balance(t, store, "user-1"))
}

func TestRecordImageResult_IgnoredAfterFinalize(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 2)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 2, "hanbok")
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, job.ID)
	require.NoError(t, err)

	ok, err := svc.RecordImageResult(ctx, job.ID, true, "")
	require.NoError(t, err)
	assert.False(t, ok)

	got, _, err := svc.GetJob(ctx, "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, 0, got.CreditsUsed)
}

func TestRecordImageResult_UnknownJob(t *testing.T) {
	svc, _ := newService(t, nil)

	_, err := svc.RecordImageResult(context.Background(), "missing", true, "")
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)
}

func TestGetJob_ScopedToOwner(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 2)
	dbtest.CreateUser(t, store, "user-2", 2)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 1, "hanbok")
	require.NoError(t, err)

	_, _, err = svc.GetJob(ctx, "user-2", job.ID)
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)
}

func TestMarkProcessing_RejectsTerminalJob(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 2)
	ctx := context.Background()

	job, err := svc.Reserve(ctx, "user-1", 2, "hanbok")
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, job.ID)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.MarkProcessing(ctx, job.ID), generation.ErrJobNotPending)
	assert.ErrorIs(t, svc.MarkProcessing(ctx, "missing"), apperrors.ErrJobNotFound)
}
