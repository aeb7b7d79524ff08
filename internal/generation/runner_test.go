package generation_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"wedding-ai-backend/internal/apperrors"
	"wedding-ai-backend/internal/database/dbtest"
	"wedding-ai-backend/internal/generation"
	"wedding-ai-backend/internal/models"
	"wedding-ai-backend/internal/provider"
)

// fakeGenerator fails for the seeds listed in failSeeds.
type fakeGenerator struct {
	mu        sync.Mutex
	failSeeds map[int]bool
	calls     int
}

func (g *fakeGenerator) Generate(_ context.Context, req provider.GenerateRequest) (*provider.Image, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failSeeds[req.Seed] {
		return nil, apperrors.NewProviderFailure("boom")
	}
	return &provider.Image{Data: []byte("jpeg"), ContentType: "image/jpeg"}, nil
}

type fakeImageStore struct {
	mu      sync.Mutex
	uploads []string
	fail    bool
}

func (s *fakeImageStore) UploadGeneratedImage(userID, jobID string, position int, _ []byte, _ string) (string, string, error) {
	if s.fail {
		return "", "", fmt.Errorf("bucket unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := fmt.Sprintf("users/%s/generations/%s/%d.jpg", userID, jobID, position)
	s.uploads = append(s.uploads, path)
	return path, "https://cdn.example/" + path, nil
}

func TestRunner_Run_PartialJob(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 4)
	ctx := context.Background()

	req := models.CreateGenerationRequest{
		Style:           "hanbok",
		ImageCount:      4,
		SourceImageURLs: []string{"https://cdn.example/couple.jpg"},
	}
	job, err := svc.Reserve(ctx, "user-1", req.ImageCount, req.Style)
	require.NoError(t, err)

	// Seeds are position+1; fail positions 1 and 3
	generator := &fakeGenerator{failSeeds: map[int]bool{2: true, 4: true}}
	images := &fakeImageStore{}
	runner := generation.NewRunner(svc, generator, images, 2, dbtest.Logger())

	result, err := runner.Run(ctx, job, req)
	require.NoError(t, err)

	assert.Equal(t, 4, generator.calls)
	assert.Len(t, images.uploads, 2)
	assert.Equal(t, models.JobStatusPartial, result.Job.Status)
	assert.Equal(t, 4, result.Job.CreditsUsed)
	assert.Equal(t, 0, result.Refunded)
	assert.Equal(t, 0, dbtest.Balance(t, store, "user-1"))

	got, stored, err := svc.GetJob(ctx, "user-1", job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.CompletedImages)
	assert.Equal(t, 2, got.FailedImages)
	require.Len(t, stored, 4)
	assert.Equal(t, models.ImageStatusSucceeded, stored[0].Status)
	assert.Equal(t, models.ImageStatusFailed, stored[1].Status)
}

func TestRunner_Run_StorageFailureFailsImages(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 2)
	ctx := context.Background()

	req := models.CreateGenerationRequest{Style: "hanbok", ImageCount: 2, SourceImageURLs: []string{"a"}}
	job, err := svc.Reserve(ctx, "user-1", req.ImageCount, req.Style)
	require.NoError(t, err)

	runner := generation.NewRunner(svc, &fakeGenerator{}, &fakeImageStore{fail: true}, 1, dbtest.Logger())
	result, err := runner.Run(ctx, job, req)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusFailed, result.Job.Status)
	assert.Equal(t, 2, result.Job.FailedImages)
	assert.Equal(t, 0, result.Refunded)
	assert.Equal(t, 0, dbtest.Balance(t, store, "user-1"))
}

func TestRunner_Run_SkipsFinalizedJob(t *testing.T) {
	svc, store := newService(t, nil)
	dbtest.CreateUser(t, store, "user-1", 3)
	ctx := context.Background()

	req := models.CreateGenerationRequest{Style: "hanbok", ImageCount: 3, SourceImageURLs: []string{"a"}}
	job, err := svc.Reserve(ctx, "user-1", req.ImageCount, req.Style)
	require.NoError(t, err)
	_, err = svc.Finalize(ctx, job.ID)
	require.NoError(t, err)

	generator := &fakeGenerator{}
	images := &fakeImageStore{}
	runner := generation.NewRunner(svc, generator, images, 2, dbtest.Logger())

	result, err := runner.Run(ctx, job, req)
	assert.ErrorIs(t, err, generation.ErrJobNotPending)
	assert.Nil(t, result)
	assert.Equal(t, 0, generator.calls)
	assert.Empty(t, images.uploads)
	assert.Equal(t, 3, dbtest.Balance(t, store, "user-1"))
}
