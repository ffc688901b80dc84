package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/santa-draw-backend/internal/engine"
	"github.com/DoyleJ11/santa-draw-backend/internal/lobby"
	"github.com/DoyleJ11/santa-draw-backend/internal/types"
)

type fakePublisher struct {
	mu       sync.Mutex
	versions []int
	err      error
}

func (f *fakePublisher) Publish(_ context.Context, snap lobby.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, snap.Version)
	return f.err
}

func TestRelay_PublishesInOrderToEveryPublisher(t *testing.T) {
	a := &fakePublisher{}
	b := &fakePublisher{err: errors.New("down")}
	r := NewRelay(nil, 16, a, b)

	for v := 1; v <= 5; v++ {
		r.Forward(lobby.Snapshot{Version: v})
	}
	r.Close()

	assert.Equal(t, []int{1, 2, 3, 4, 5}, a.versions)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, b.versions, "a failing publisher still sees every message")
}

func TestRelay_CloseIsIdempotent(t *testing.T) {
	r := NewRelay(nil, 1)
	r.Close()
	r.Close()
}

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	}
	return cmd
}

func TestRedisPublisher_EncodesServerMessage(t *testing.T) {
	fake := &fakeRedis{}
	p := &RedisPublisher{client: fake, channel: "secret-santa-game"}

	res := engine.DrawResult{DrawerID: "A", GifteeID: "C", GifteeName: "Cris"}
	snap := lobby.Snapshot{
		Version: 7,
		Exists:  true,
		Event:   &engine.Event{Type: engine.EvtDrawExecuted, DrawerID: "A", Result: &res},
		State:   engine.State{CurrentDrawerIndex: 1, Assignments: map[string]string{"A": "C"}},
	}
	require.NoError(t, p.Publish(context.Background(), snap))
	assert.Equal(t, "secret-santa-game", fake.channel)

	var msg types.ServerMessage
	require.NoError(t, json.Unmarshal(fake.payload, &msg))
	assert.Equal(t, "draw-executed", msg.Type)
	assert.Equal(t, 7, msg.Version)
	require.NotNil(t, msg.Event)
	assert.Equal(t, res, *msg.Event.Result)
	require.NotNil(t, msg.State)
	assert.Equal(t, "C", msg.State.Assignments["A"])
}

func TestRedisPublisher_WrapsError(t *testing.T) {
	boom := errors.New("connection refused")
	p := &RedisPublisher{client: &fakeRedis{err: boom}, channel: "c"}

	err := p.Publish(context.Background(), lobby.Snapshot{Version: 1})
	require.ErrorIs(t, err, boom)
}
