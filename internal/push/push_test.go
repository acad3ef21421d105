package push

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"titlelink/api/internal/links"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case event, ok := <-ch:
		require.True(t, ok, "channel closed")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestHubBroadcastReachesEverySubscriber(t *testing.T) {
	t.Parallel()
	hub := NewHub(4)
	a, cancelA := hub.Subscribe("a")
	defer cancelA()
	b, cancelB := hub.Subscribe("b")
	defer cancelB()

	event := Event{Type: EventTitleResolved, URL: "https://x.atlassian.net/browse/A-1", Title: "A-1: Done", ItemType: links.TypeTask}
	require.NoError(t, hub.Publish(context.Background(), event))

	assert.Equal(t, event, receive(t, a))
	assert.Equal(t, event, receive(t, b))
}

func TestHubUnsubscribe(t *testing.T) {
	t.Parallel()
	hub := NewHub(1)
	ch, cancel := hub.Subscribe("a")
	assert.Equal(t, 1, hub.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, hub.Subscribers())
	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Broadcast(Event{Type: EventAuthRequired}))
}

func TestHubResubscribeClosesOldStream(t *testing.T) {
	t.Parallel()
	hub := NewHub(1)
	old, cancelOld := hub.Subscribe("a")
	fresh, cancelFresh := hub.Subscribe("a")
	defer cancelFresh()

	_, ok := <-old
	assert.False(t, ok)
	cancelOld() // must not remove the newer stream
	assert.Equal(t, 1, hub.Subscribers())
	hub.Broadcast(Event{Type: EventAuthRequired, Service: links.KindAsana})
	assert.Equal(t, links.KindAsana, receive(t, fresh).Service)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	t.Parallel()
	hub := NewHub(1)
	_, cancel := hub.Subscribe("slow")
	defer cancel()

	assert.Equal(t, 1, hub.Broadcast(Event{Type: EventAuthRequired}))
	assert.Equal(t, 0, hub.Broadcast(Event{Type: EventAuthRequired}))
}

func TestRedisRelayDeliversThroughPubSub(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()

	hub := NewHub(4)
	ch, cancel := hub.Subscribe("instance-1")
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	relay := NewRedisRelay(client, hub)
	require.NoError(t, relay.Start(ctx))

	event := Event{Type: EventTitleResolved, URL: "https://app.asana.com/0/1/2", Title: "Ship v2", ItemType: links.TypeAsanaTask}
	require.NoError(t, relay.Publish(ctx, event))

	assert.Equal(t, event, receive(t, ch))
}
