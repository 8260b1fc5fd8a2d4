package approval

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lkmninja/aaflbot/internal/gateway"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Send(ctx context.Context, channel, text string) (gateway.Message, error) {
	args := m.Called(ctx, channel, text)
	return args.Get(0).(gateway.Message), args.Error(1)
}

func (m *MockGateway) RequestText(ctx context.Context, req gateway.TextRequest) (gateway.Message, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(gateway.Message), args.Error(1)
}

func (m *MockGateway) RequestReaction(ctx context.Context, req gateway.ReactionRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) OpenPoll(ctx context.Context, req gateway.PollRequest) (gateway.Tally, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(gateway.Tally), args.Error(1)
}

func (m *MockGateway) GrantRole(ctx context.Context, userID, role string) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockGateway) RevokeRole(ctx context.Context, userID, role string) error {
	args := m.Called(ctx, userID, role)
	return args.Error(0)
}

func (m *MockGateway) ResolveMember(ctx context.Context, userID string) (gateway.Member, bool) {
	args := m.Called(ctx, userID)
	return args.Get(0).(gateway.Member), args.Bool(1)
}

func (m *MockGateway) Members(ctx context.Context) []gateway.Member {
	args := m.Called(ctx)
	return args.Get(0).([]gateway.Member)
}
