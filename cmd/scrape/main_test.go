package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/maltedev/price-tracker/internal/fetch"
	"github.com/maltedev/price-tracker/internal/models"
	"github.com/maltedev/price-tracker/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) TrackURL(ctx context.Context, url string) (string, error) {
	args := m.Called(url)
	return args.String(0), args.Error(1)
}

func (m *MockService) ScrapeAmazonProduct(ctx context.Context, url string) (*models.Product, error) {
	args := m.Called(url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func decodeResults(t *testing.T, r io.Reader) []result {
	t.Helper()
	var results []result
	dec := json.NewDecoder(r)
	for dec.More() {
		var res result
		require.NoError(t, dec.Decode(&res))
		results = append(results, res)
	}
	return results
}

func TestRunTasksScrapeOnly(t *testing.T) {
	const url = "https://www.amazon.in/dp/B0TEST0001"
	svc := new(MockService)
	svc.On("ScrapeAmazonProduct", url).Return(&models.Product{URL: url, Title: "Kettle"}, nil)

	tasks := queue.NewInMemoryQueue()
	_, err := queue.Load(tasks, url, nil)
	require.NoError(t, err)

	var stdout bytes.Buffer
	failed := runTasks(context.Background(), svc, tasks, false, 2, &stdout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 0, failed)

	results := decodeResults(t, &stdout)
	require.Len(t, results, 1)
	assert.Equal(t, url, results[0].URL)
}

func TestRunTasksRetriesTransientFailures(t *testing.T) {
	const url = "https://www.amazon.in/dp/B0TEST0002"
	svc := new(MockService)
	svc.On("TrackURL", url).Return("", fmt.Errorf("%w: connection refused", fetch.ErrNetwork)).Once()
	svc.On("TrackURL", url).Return("6650f1c2a1b2c3d4e5f60718", nil).Once()

	tasks := queue.NewInMemoryQueue()
	_, err := queue.Load(tasks, url, nil)
	require.NoError(t, err)

	var stdout, stderr bytes.Buffer
	failed := runTasks(context.Background(), svc, tasks, true, 2, &stdout, slog.New(slog.NewTextHandler(&stderr, nil)))
	assert.Equal(t, 0, failed)
	assert.Contains(t, stderr.String(), "msg=retrying")
	assert.NotContains(t, stdout.String(), "msg=")

	results := decodeResults(t, &stdout)
	require.Len(t, results, 1)
	assert.Equal(t, "6650f1c2a1b2c3d4e5f60718", results[0].ID)
	svc.AssertExpectations(t)

	_, err = tasks.Pop()
	assert.ErrorIs(t, err, queue.ErrQueueClosed)
}

func TestRunTasksCountsPermanentFailures(t *testing.T) {
	const url = "https://www.amazon.in/dp/B0TEST0003"
	svc := new(MockService)
	svc.On("ScrapeAmazonProduct", url).Return(nil, fetch.ErrUpstreamAuth).Once()

	tasks := queue.NewInMemoryQueue()
	_, err := queue.Load(tasks, url, nil)
	require.NoError(t, err)

	var stdout bytes.Buffer
	failed := runTasks(context.Background(), svc, tasks, false, 2, &stdout, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 1, failed)

	results := decodeResults(t, &stdout)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].Error)
	svc.AssertExpectations(t)
}
