package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/config"
	"github.com/emitkithq/emitkit/internal/domain"
	"github.com/emitkithq/emitkit/internal/repository"
)

type MockProjectStore struct {
	mock.Mock
}

func (m *MockProjectStore) ListPurgeable(ctx context.Context, tier domain.RetentionTier, cutoff time.Time) ([]*domain.Project, error) {
	args := m.Called(ctx, tier, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Project), args.Error(1)
}

func (m *MockProjectStore) Purge(ctx context.Context, projectID string) (repository.PurgeCounts, error) {
	args := m.Called(ctx, projectID)
	return args.Get(0).(repository.PurgeCounts), args.Error(1)
}

type MockEventPurger struct {
	mock.Mock
}

func (m *MockEventPurger) DeleteByProject(ctx context.Context, organizationID, projectID string) error {
	args := m.Called(ctx, organizationID, projectID)
	return args.Error(0)
}

var sweepNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestSweeper(dryRun bool) (*Sweeper, *MockProjectStore, *MockEventPurger) {
	projects := new(MockProjectStore)
	events := new(MockEventPurger)
	s := NewSweeper(projects, events, config.Retention{BasicDays: 90, PremiumDays: 365, DryRun: dryRun}, zap.NewNop())
	s.now = func() time.Time { return sweepNow }
	return s, projects, events
}

func TestSweeper_Cutoffs(t *testing.T) {
	s, _, _ := newTestSweeper(false)

	cutoffs := s.Cutoffs()

	assert.Equal(t, sweepNow.AddDate(0, 0, -90), cutoffs[domain.RetentionBasic])
	assert.Equal(t, sweepNow.AddDate(0, 0, -365), cutoffs[domain.RetentionPremium])
	_, ok := cutoffs[domain.RetentionUnlimited]
	assert.False(t, ok, "unlimited tier never expires")
}

func TestSweeper_Run_PurgesEventsThenProject(t *testing.T) {
	s, projects, events := newTestSweeper(false)

	projects.On("ListPurgeable", mock.Anything, domain.RetentionBasic, sweepNow.AddDate(0, 0, -90)).
		Return([]*domain.Project{{ID: "prj_1", OrganizationID: "org_1"}}, nil)
	projects.On("ListPurgeable", mock.Anything, domain.RetentionPremium, sweepNow.AddDate(0, 0, -365)).
		Return([]*domain.Project{{ID: "prj_2", OrganizationID: "org_2"}}, nil)

	var order []string
	events.On("DeleteByProject", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, "events:"+args.String(2)) }).
		Return(nil)
	projects.On("Purge", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { order = append(order, "project:"+args.String(1)) }).
		Return(repository.PurgeCounts{Channels: 2, Webhooks: 1, APIKeys: 3}, nil)

	result, err := s.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Result{
		ProjectsDeleted: 2,
		ChannelsDeleted: 4,
		WebhooksDeleted: 2,
		APIKeysDeleted:  6,
	}, result)
	assert.Equal(t, []string{"events:prj_1", "project:prj_1", "events:prj_2", "project:prj_2"}, order)
	events.AssertCalled(t, "DeleteByProject", mock.Anything, "org_1", "prj_1")
}

func TestSweeper_Run_FailedProjectDoesNotStopSweep(t *testing.T) {
	s, projects, events := newTestSweeper(false)

	projects.On("ListPurgeable", mock.Anything, domain.RetentionBasic, mock.Anything).
		Return([]*domain.Project{
			{ID: "prj_bad", OrganizationID: "org_1"},
			{ID: "prj_ok", OrganizationID: "org_1"},
		}, nil)
	projects.On("ListPurgeable", mock.Anything, domain.RetentionPremium, mock.Anything).
		Return([]*domain.Project{}, nil)
	events.On("DeleteByProject", mock.Anything, "org_1", "prj_bad").Return(errors.New("clickhouse unavailable"))
	events.On("DeleteByProject", mock.Anything, "org_1", "prj_ok").Return(nil)
	projects.On("Purge", mock.Anything, "prj_ok").Return(repository.PurgeCounts{Channels: 1}, nil)

	result, err := s.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.ProjectsDeleted)
	assert.Equal(t, 1, result.ProjectsFailed)
	projects.AssertNotCalled(t, "Purge", mock.Anything, "prj_bad")
}

func TestSweeper_Run_DryRunDeletesNothing(t *testing.T) {
	s, projects, events := newTestSweeper(true)

	projects.On("ListPurgeable", mock.Anything, mock.Anything, mock.Anything).
		Return([]*domain.Project{{ID: "prj_1", OrganizationID: "org_1"}}, nil)

	result, err := s.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, result.ProjectsDeleted)
	events.AssertNotCalled(t, "DeleteByProject", mock.Anything, mock.Anything, mock.Anything)
	projects.AssertNotCalled(t, "Purge", mock.Anything, mock.Anything)
}

func TestSweeper_Run_ListFailure(t *testing.T) {
	s, projects, _ := newTestSweeper(false)

	projects.On("ListPurgeable", mock.Anything, domain.RetentionBasic, mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := s.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list purgeable basic projects")
	projects.AssertNotCalled(t, "ListPurgeable", mock.Anything, domain.RetentionPremium, mock.Anything)
}
