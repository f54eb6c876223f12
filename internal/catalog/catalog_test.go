package catalog

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/sonnkraft/funnel-backend/internal/types"
)

type fakeFetcher struct {
	services []types.Service
	err      error
	calls    int
}

func (f *fakeFetcher) FetchServices(context.Context) ([]types.Service, error) {
	f.calls++
	return f.services, f.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestServicesFallsBackToDefaults(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("backend down")}
	svc := NewService(fetcher, nil, testLogger())

	services := svc.Services(context.Background())

	assert.Equal(t, defaultServices, services)
}

func TestServicesServesStaleCopyOnFailure(t *testing.T) {
	fetcher := &fakeFetcher{services: []types.Service{{ID: "pv", Name: "Photovoltaik"}}}
	svc := NewService(fetcher, nil, testLogger())

	first := svc.Services(context.Background())
	assert.Len(t, first, 1)

	fetcher.err = errors.New("backend down")
	fetcher.services = nil
	svc.InvalidateCache(context.Background())

	second := svc.Services(context.Background())
	assert.Equal(t, first, second)
}

func TestServicesUsesInMemoryCache(t *testing.T) {
	fetcher := &fakeFetcher{services: []types.Service{{ID: "pv", Name: "Photovoltaik"}}}
	svc := NewService(fetcher, nil, testLogger())

	svc.Services(context.Background())
	svc.Services(context.Background())

	assert.Equal(t, 1, fetcher.calls)
}
