package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emitkithq/emitkit/internal/background"
	"github.com/emitkithq/emitkit/internal/domain"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) InvalidateChannel(ctx context.Context, channelID string) {
	m.Called(ctx, channelID)
}

func (m *MockCache) InvalidateOrganization(ctx context.Context, organizationID string) {
	m.Called(ctx, organizationID)
}

func (m *MockCache) Publish(ctx context.Context, channel string, payload any) error {
	args := m.Called(ctx, channel, payload)
	return args.Error(0)
}

type MockWorkflowPublisher struct {
	mock.Mock
}

func (m *MockWorkflowPublisher) PublishWorkflow(ctx context.Context, workflow *domain.EventWorkflow) error {
	args := m.Called(ctx, workflow)
	return args.Error(0)
}

// blockingRunner holds every task until release is closed.
type blockingRunner struct {
	release chan struct{}
	wg      sync.WaitGroup
}

func (r *blockingRunner) Go(parent context.Context, _ string, fn func(ctx context.Context) error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		<-r.release
		_ = fn(context.WithoutCancel(parent))
	}()
}

func testEvent() *domain.Event {
	return &domain.Event{
		ID:             "event_1",
		ChannelID:      "ch_1",
		ProjectID:      "proj_1",
		OrganizationID: "org_1",
		Title:          "v1.2 released",
		Tags:           []string{"deploy"},
		Notify:         true,
		CreatedAt:      time.Now(),
	}
}

func TestDispatcher_Dispatch_RunsAllSteps(t *testing.T) {
	c := new(MockCache)
	wf := new(MockWorkflowPublisher)
	bg := background.NewGroup(time.Second, zap.NewNop())
	d := NewDispatcher(c, wf, bg, zap.NewNop())

	c.On("InvalidateChannel", mock.Anything, "ch_1").Return()
	c.On("InvalidateOrganization", mock.Anything, "org_1").Return()
	var published any
	c.On("Publish", mock.Anything, "events:channel:ch_1", mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(2) }).
		Return(nil)
	wf.On("PublishWorkflow", mock.Anything, mock.MatchedBy(func(w *domain.EventWorkflow) bool {
		return w.EventID == "event_1" && w.EventType == "v1.2 released" && w.Notify && w.ProjectID == "proj_1"
	})).Return(nil)

	d.Dispatch(context.Background(), testEvent())
	bg.Wait()

	c.AssertExpectations(t)
	wf.AssertExpectations(t)

	payload, err := json.Marshal(published)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"type":"event"`)
	assert.Contains(t, string(payload), `"id":"event_1"`)
}

func TestDispatcher_Dispatch_DoesNotBlockCaller(t *testing.T) {
	c := new(MockCache)
	wf := new(MockWorkflowPublisher)
	runner := &blockingRunner{release: make(chan struct{})}
	d := NewDispatcher(c, wf, runner, zap.NewNop())

	c.On("InvalidateChannel", mock.Anything, mock.Anything).Return()
	c.On("InvalidateOrganization", mock.Anything, mock.Anything).Return()
	c.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	wf.On("PublishWorkflow", mock.Anything, mock.Anything).Return(nil)

	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), testEvent())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on fan-out work")
	}
	wf.AssertNotCalled(t, "PublishWorkflow", mock.Anything, mock.Anything)

	close(runner.release)
	runner.wg.Wait()
	wf.AssertExpectations(t)
}

func TestDispatcher_Dispatch_FailuresAreIsolated(t *testing.T) {
	c := new(MockCache)
	wf := new(MockWorkflowPublisher)
	bg := background.NewGroup(time.Second, zap.NewNop())
	d := NewDispatcher(c, wf, bg, zap.NewNop())

	c.On("InvalidateChannel", mock.Anything, "ch_1").Return()
	c.On("InvalidateOrganization", mock.Anything, "org_1").Return()
	c.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("valkey down"))
	wf.On("PublishWorkflow", mock.Anything, mock.Anything).Return(nil)

	d.Dispatch(context.Background(), testEvent())
	bg.Wait()

	wf.AssertExpectations(t)
	c.AssertExpectations(t)
}

func TestDispatcher_Dispatch_SurvivesRequestCancellation(t *testing.T) {
	c := new(MockCache)
	wf := new(MockWorkflowPublisher)
	bg := background.NewGroup(time.Second, zap.NewNop())
	d := NewDispatcher(c, wf, bg, zap.NewNop())

	var workflowCtxErr error
	c.On("InvalidateChannel", mock.Anything, mock.Anything).Return()
	c.On("InvalidateOrganization", mock.Anything, mock.Anything).Return()
	c.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	wf.On("PublishWorkflow", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { workflowCtxErr = args.Get(0).(context.Context).Err() }).
		Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Dispatch(ctx, testEvent())
	bg.Wait()

	assert.NoError(t, workflowCtxErr)
}
