package reaper

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/liamg/stormscan/failure"
	"github.com/liamg/stormscan/provider"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	instances  []provider.Instance
	listErr    error
	deleteErrs map[string]error
	deleted    []string
}

func (f *fakeProvider) CreateInstance(context.Context, provider.CreateOpts) (*provider.Instance, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) DeleteInstance(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return f.deleteErrs[name]
}

func (f *fakeProvider) ListInstances(context.Context) ([]provider.Instance, error) {
	return f.instances, f.listErr
}

func (f *fakeProvider) RegisterKey(context.Context, string, string) error {
	return errors.New("not implemented")
}

func (f *fakeProvider) DeregisterKey(context.Context, string) error {
	return errors.New("not implemented")
}

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestReaper(p provider.Provider) (*Reaper, *test.Hook) {
	log, hook := test.NewNullLogger()
	r := New(p, log)
	r.now = func() time.Time { return now }
	return r, hook
}

func TestPurgeOlderThanRespectsThreshold(t *testing.T) {
	p := &fakeProvider{instances: []provider.Instance{
		{Name: "old", CreatedAt: now.Add(-2 * time.Hour)},
		{Name: "boundary", CreatedAt: now.Add(-time.Hour)},
		{Name: "young", CreatedAt: now.Add(-time.Hour + time.Second)},
		{Name: "future", CreatedAt: now.Add(time.Minute)},
	}}

	r, _ := newTestReaper(p)
	count, err := r.PurgeOlderThan(context.Background(), time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"old", "boundary"}, p.deleted)
}

func TestPurgeZeroThresholdDeletesEverythingAlreadyCreated(t *testing.T) {
	p := &fakeProvider{instances: []provider.Instance{
		{Name: "a", CreatedAt: now.Add(-time.Second)},
		{Name: "b", CreatedAt: now},
	}}

	r, _ := newTestReaper(p)
	count, err := r.PurgeOlderThan(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestPurgeContinuesAfterFailure(t *testing.T) {
	p := &fakeProvider{
		instances: []provider.Instance{
			{Name: "masscan-1", CreatedAt: now.Add(-3 * time.Hour)},
			{Name: "masscan-2", CreatedAt: now.Add(-3 * time.Hour)},
			{Name: "masscan-3", CreatedAt: now.Add(-3 * time.Hour)},
		},
		deleteErrs: map[string]error{
			"masscan-1": errors.New("server is locked"),
			"masscan-2": fmt.Errorf("deleting: %w", provider.ErrNotFound),
		},
	}

	r, hook := newTestReaper(p)
	report, err := r.Purge(context.Background(), time.Hour)
	require.NoError(t, err)

	assert.Equal(t, []string{"masscan-1", "masscan-2", "masscan-3"}, p.deleted)
	assert.Equal(t, []string{"masscan-3"}, report.Deleted)
	assert.Equal(t, []string{"masscan-2"}, report.Absent)
	assert.Equal(t, []string{"masscan-1"}, report.Failed)

	var errored int
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel {
			errored++
			assert.Equal(t, "masscan-1", entry.Data["server"])
		}
	}
	assert.Equal(t, 1, errored)
}

func TestPurgeListFailure(t *testing.T) {
	p := &fakeProvider{listErr: errors.New("unauthorized")}

	r, _ := newTestReaper(p)
	count, err := r.PurgeOlderThan(context.Background(), time.Hour)
	require.Error(t, err)

	assert.ErrorIs(t, err, failure.ErrProvision)
	assert.Zero(t, count)
	assert.Empty(t, p.deleted)
}

func TestPurgeStopsWhenCancelled(t *testing.T) {
	p := &fakeProvider{instances: []provider.Instance{
		{Name: "a", CreatedAt: now.Add(-time.Hour)},
		{Name: "b", CreatedAt: now.Add(-time.Hour)},
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := newTestReaper(p)
	report, err := r.Purge(ctx, 0)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, p.deleted, 1)
	assert.Len(t, report.Deleted, 1)
}

func TestPurgeRejectsNegativeThreshold(t *testing.T) {
	p := &fakeProvider{instances: []provider.Instance{
		{Name: "fresh", CreatedAt: now.Add(-time.Minute)},
	}}

	r, _ := newTestReaper(p)
	count, err := r.PurgeOlderThan(context.Background(), -time.Hour)
	require.Error(t, err)

	assert.ErrorIs(t, err, failure.ErrConfig)
	assert.Zero(t, count)
	assert.Empty(t, p.deleted)
}
