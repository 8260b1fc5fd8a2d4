package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/event"
	"github.com/lkmninja/aaflbot/internal/gateway"
)

// eventCollector gathers events from the bus for assertions.
type eventCollector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *eventCollector) handler(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *eventCollector) findByType(eventType string) []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var found []event.Event
	for _, e := range c.events {
		if e.EventType() == eventType {
			found = append(found, e)
		}
	}
	return found
}

func newTestCoordinator(gw gateway.Gateway) (*Coordinator, *eventCollector) {
	bus := event.NewBus(nil)
	col := &eventCollector{}
	bus.SubscribeAll(col.handler)
	return NewCoordinator(gw, bus, nil), col
}

func consentRequest() ConsentRequest {
	return ConsentRequest{
		Subject:   "trade-1",
		Recipient: "cap",
		Prompt:    "Approve?",
		Approve:   gateway.ThumbsUp,
		Reject:    gateway.ThumbsDown,
		Timeout:   time.Hour,
	}
}

func TestCoordinator_Consent(t *testing.T) {
	tests := []struct {
		name      string
		emoji     string
		err       error
		want      Outcome
		responder string
	}{
		{"approve", gateway.ThumbsUp, nil, OutcomeApproved, "cap"},
		{"reject", gateway.ThumbsDown, nil, OutcomeRejected, "cap"},
		{"deadline", "", errors.NewTimeoutError("waiting", time.Hour), OutcomeTimedOut, ""},
		{"shutdown", "", errors.Wrap(errors.ErrCanceled, "waiting"), OutcomeTimedOut, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(MockGateway)
			gw.On("RequestReaction", mock.Anything, gateway.ReactionRequest{
				Recipient: "cap",
				Prompt:    "Approve?",
				Allowed:   []string{gateway.ThumbsUp, gateway.ThumbsDown},
				Timeout:   time.Hour,
			}).Return(tt.emoji, tt.err).Once()

			coord, col := newTestCoordinator(gw)
			d, err := coord.Consent(context.Background(), consentRequest())

			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Outcome)
			assert.Equal(t, ModeConsent, d.Mode)
			assert.Equal(t, tt.responder, d.Responder)
			assert.NotEmpty(t, d.ID)
			assert.Zero(t, coord.PendingCount())
			assert.Len(t, col.findByType(event.TypeApprovalRequested), 1)

			resolved := col.findByType(event.TypeApprovalResolved)
			require.Len(t, resolved, 1)
			assert.Equal(t, string(tt.want), resolved[0].(event.ApprovalResolvedEvent).Outcome)
			gw.AssertExpectations(t)
		})
	}
}

func TestCoordinator_ConsentGatewayFailure(t *testing.T) {
	gw := new(MockGateway)
	gw.On("RequestReaction", mock.Anything, mock.Anything).
		Return("", errors.NewNotFoundError("member", "cap")).Once()

	coord, col := newTestCoordinator(gw)
	_, err := coord.Consent(context.Background(), consentRequest())

	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Empty(t, col.findByType(event.TypeApprovalResolved))
	assert.Zero(t, coord.PendingCount())
}

func TestCoordinator_ConsentValidation(t *testing.T) {
	gw := new(MockGateway)
	coord, _ := newTestCoordinator(gw)

	req := consentRequest()
	req.Recipient = ""
	_, err := coord.Consent(context.Background(), req)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	req = consentRequest()
	req.Reject = req.Approve
	_, err = coord.Consent(context.Background(), req)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	gw.AssertNotCalled(t, "RequestReaction", mock.Anything, mock.Anything)
}

func TestCoordinator_Vote(t *testing.T) {
	tests := []struct {
		name     string
		tally    gateway.Tally
		want     Outcome
		up, down int
	}{
		// Raw counts include the bot's placeholder on each emoji.
		{"majority approves", gateway.Tally{gateway.ThumbsUp: 4, gateway.ThumbsDown: 2}, OutcomeApproved, 3, 1},
		{"tie rejects", gateway.Tally{gateway.ThumbsUp: 3, gateway.ThumbsDown: 3}, OutcomeRejected, 2, 2},
		{"single vote approves", gateway.Tally{gateway.ThumbsUp: 2, gateway.ThumbsDown: 1}, OutcomeApproved, 1, 0},
		{"no votes rejects", gateway.Tally{gateway.ThumbsUp: 1, gateway.ThumbsDown: 1}, OutcomeRejected, 0, 0},
		{"placeholder removed", gateway.Tally{}, OutcomeRejected, 0, 0},
		{"minority rejects", gateway.Tally{gateway.ThumbsUp: 2, gateway.ThumbsDown: 5}, OutcomeRejected, 1, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(MockGateway)
			gw.On("OpenPoll", mock.Anything, gateway.PollRequest{
				Channel: "general",
				Prompt:  "Vote!",
				Allowed: []string{gateway.ThumbsUp, gateway.ThumbsDown},
				Window:  20 * time.Second,
			}).Return(tt.tally, nil).Once()

			coord, _ := newTestCoordinator(gw)
			d, err := coord.Vote(context.Background(), VoteRequest{
				Subject: "trade-1",
				Channel: "general",
				Prompt:  "Vote!",
				Approve: gateway.ThumbsUp,
				Reject:  gateway.ThumbsDown,
				Window:  20 * time.Second,
			})

			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Outcome)
			assert.Equal(t, tt.up, d.Up)
			assert.Equal(t, tt.down, d.Down)
			gw.AssertExpectations(t)
		})
	}
}

func TestCoordinator_VoteCanceled(t *testing.T) {
	gw := new(MockGateway)
	gw.On("OpenPoll", mock.Anything, mock.Anything).
		Return(nil, errors.Wrap(errors.ErrCanceled, "poll")).Once()

	coord, _ := newTestCoordinator(gw)
	d, err := coord.Vote(context.Background(), VoteRequest{
		Channel: "general",
		Approve: gateway.ThumbsUp,
		Reject:  gateway.ThumbsDown,
	})

	require.NoError(t, err)
	assert.Equal(t, OutcomeTimedOut, d.Outcome)
}

func TestCoordinator_PendingTracksInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	gw := new(MockGateway)
	gw.On("RequestReaction", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(gateway.ThumbsUp, nil).Once()

	coord, _ := newTestCoordinator(gw)
	done := make(chan Decision, 1)
	go func() {
		d, _ := coord.Consent(context.Background(), consentRequest())
		done <- d
	}()

	<-started
	pending := coord.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, ModeConsent, pending[0].Mode)
	assert.Equal(t, "trade-1", pending[0].Subject)
	assert.Equal(t, "cap", pending[0].Target)
	assert.Equal(t, time.Hour, pending[0].Deadline.Sub(pending[0].Started))

	close(release)
	d := <-done
	assert.Equal(t, OutcomeApproved, d.Outcome)
	assert.Empty(t, coord.Pending())
}

func TestDecide(t *testing.T) {
	assert.Equal(t, OutcomeApproved, Decide(1, 0))
	assert.Equal(t, OutcomeRejected, Decide(0, 0))
	assert.Equal(t, OutcomeRejected, Decide(2, 2))
	assert.Equal(t, OutcomeRejected, Decide(1, 2))
}

func TestVotes(t *testing.T) {
	tally := gateway.Tally{gateway.ThumbsUp: 3}
	assert.Equal(t, 2, Votes(tally, gateway.ThumbsUp))
	assert.Equal(t, 0, Votes(tally, gateway.ThumbsDown))
}
