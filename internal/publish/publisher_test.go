package publish

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lkmninja/aaflbot/internal/config"
	"github.com/lkmninja/aaflbot/internal/errors"
	"github.com/lkmninja/aaflbot/internal/event"
	"github.com/lkmninja/aaflbot/internal/testutil"
)

type fakeWriter struct {
	mu      sync.Mutex
	batches [][]kafka.Message
	err     error
	closed  bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.batches = append(w.batches, msgs)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) messages() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []kafka.Message
	for _, b := range w.batches {
		out = append(out, b...)
	}
	return out
}

func TestPublisher_ForwardsOutcomes(t *testing.T) {
	w := &fakeWriter{}
	p := New(w, nil)
	bus := event.NewBus(nil)
	detach := p.Attach(bus)
	defer detach()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	fin := event.NewTradeFinishedEvent("t1", "P2", "completed")
	fin.TeamA, fin.TeamB = "Hawks", "Owls"
	bus.Publish(fin)
	bus.Publish(event.NewSigningFinishedEvent("s1", "CAP", "NEW", "Owls", "signed"))
	bus.Publish(event.NewCapExceededEvent("Hawks", 11, 10))
	bus.Publish(event.NewCommandExecutedEvent("roster", "P1", ""))

	testutil.WaitFor(t, time.Second, func() bool { return len(w.messages()) == 3 })
	cancel()
	<-done

	msgs := w.messages()
	assert.Equal(t, "Hawks", string(msgs[0].Key))
	assert.Equal(t, "Owls", string(msgs[1].Key))
	assert.Equal(t, "Hawks", string(msgs[2].Key))

	var rec struct {
		Type string `json:"type"`
		Data struct {
			ProposalID string `json:"proposal_id"`
			State      string `json:"state"`
			TeamB      string `json:"team_b"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &rec))
	assert.Equal(t, event.TypeTradeFinished, rec.Type)
	assert.Equal(t, "t1", rec.Data.ProposalID)
	assert.Equal(t, "completed", rec.Data.State)
	assert.Equal(t, "Owls", rec.Data.TeamB)

	published, dropped := p.Stats()
	assert.Equal(t, int64(3), published)
	assert.Zero(t, dropped)
}

func TestPublisher_FlushesOnShutdown(t *testing.T) {
	w := &fakeWriter{}
	p := New(w, nil, WithBatchSize(2))
	for i := 0; i < 5; i++ {
		p.Handle(event.NewRosterChangedEvent("Hawks", event.ActionStarsSet, "P1"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)

	assert.Len(t, w.messages(), 5)
	for _, b := range w.batches {
		assert.LessOrEqual(t, len(b), 2)
	}
}

func TestPublisher_DropsWhenQueueFull(t *testing.T) {
	p := New(&fakeWriter{}, nil, WithQueueSize(2))

	for i := 0; i < 5; i++ {
		p.Handle(event.NewCapExceededEvent("Hawks", 11, 10))
	}

	_, dropped := p.Stats()
	assert.Equal(t, int64(3), dropped)
}

func TestPublisher_WriteFailureIsNotFatal(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := New(w, nil)
	p.Handle(event.NewCapExceededEvent("Hawks", 11, 10))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Run(ctx)

	published, _ := p.Stats()
	assert.Zero(t, published)
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKeyOf(t *testing.T) {
	assert.Equal(t, "t9", KeyOf(event.NewTradeFinishedEvent("t9", "P2", "timed_out")))
	assert.Equal(t, "Owls", KeyOf(event.NewTeamCreatedEvent("Owls", 10)))
	assert.Equal(t, event.TypeApprovalResolved, KeyOf(event.NewApprovalResolvedEvent("a", "vote", "approved", time.Second)))
}

func TestNewKafkaWriter(t *testing.T) {
	_, err := NewKafkaWriter(config.KafkaConfig{Topic: "league"})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = NewKafkaWriter(config.KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	w, err := NewKafkaWriter(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "league"})
	require.NoError(t, err)
	assert.Equal(t, "league", w.Topic)
	require.NoError(t, w.Close())
}
