package consumer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wardenchat/warden/automod/engine"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectProcessor struct {
	mu   sync.Mutex
	msgs []*engine.MessageEvent
}

func (p *collectProcessor) ProcessMessage(ctx context.Context, msg *engine.MessageEvent) (*engine.Verdict, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return &engine.Verdict{}, nil
}

func (p *collectProcessor) Messages() []*engine.MessageEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*engine.MessageEvent, len(p.msgs))
	copy(out, p.msgs)
	return out
}

// gateway which writes the given frames to each connection, then holds it open until the client leaves
func fakeGateway(t *testing.T, frames []string, cursors chan<- string) *httptest.Server {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cursors != nil {
			cursors <- r.URL.Query().Get("cursor")
		}
		con, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer con.Close()
		for _, f := range frames {
			if err := con.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := con.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

var testFrames = []string{
	`{"op":"hello","seq":0,"d":{}}`,
	`{"op":"message_create","seq":11,"d":{"id":"m1","guild_id":"guild1","channel_id":"c1","author":{"id":"u1","roles":["member"]},"content":"hello","attachments":[{"id":"a1"},{"id":"a2"}],"timestamp":"2024-03-01T10:00:00.000Z"}}`,
	`not json`,
	`{"op":"message_create","seq":12,"d":{"id":"m2","guild_id":"","channel_id":"c1","author":{"id":"u1"},"content":"no tenant"}}`,
	`{"op":"presence_update","seq":13,"d":{}}`,
	`{"op":"message_create","seq":14,"d":{"id":"m3","guild_id":"guild1","channel_id":"c2","author":{"id":"bot1","bot":true},"content":"beep"}}`,
}

func TestGatewayConsumer(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	srv := fakeGateway(t, testFrames, nil)
	proc := &collectProcessor{}
	gc := &GatewayConsumer{
		Host:      "ws" + strings.TrimPrefix(srv.URL, "http"),
		Processor: proc,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- gc.Run(ctx)
	}()

	require.Eventually(func() bool {
		return len(proc.Messages()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(func() bool {
		return gc.LastSeq() == 14
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(<-done)

	msgs := proc.Messages()
	byID := map[string]*engine.MessageEvent{}
	for _, m := range msgs {
		byID[m.MessageID] = m
	}
	require.Contains(byID, "m1")
	assert.Equal("guild1", byID["m1"].TenantID)
	assert.Equal([]string{"member"}, byID["m1"].AuthorRoles)
	assert.Equal(10, byID["m1"].Timestamp.Hour())
	assert.Equal(2, byID["m1"].AttachmentCount)
	require.Contains(byID, "m3")
	assert.True(byID["m3"].AuthorIsBot)
	assert.NotContains(byID, "m2")
}

func TestGatewayCursor(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	require.NoError(rdb.Set(context.Background(), gatewayCursorKey, 9, 0).Err())

	cursors := make(chan string, 10)
	srv := fakeGateway(t, testFrames[:2], cursors)
	gc := &GatewayConsumer{
		Host:        srv.URL,
		RedisClient: rdb,
		Processor:   &collectProcessor{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- gc.Run(ctx)
	}()
	assert.Equal("9", <-cursors)
	require.Eventually(func() bool {
		return gc.LastSeq() == 11
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(<-done)

	require.NoError(gc.PersistCursor(context.Background()))
	val, err := rdb.Get(context.Background(), gatewayCursorKey).Int64()
	require.NoError(err)
	assert.Equal(int64(11), val)
}

func TestGatewayReconnect(t *testing.T) {
	assert := assert.New(t)

	cursors := make(chan string, 1000)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursors <- r.URL.Query().Get("cursor")
		con, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		// one frame, then drop the connection
		con.WriteMessage(websocket.TextMessage, []byte(testFrames[1]))
		con.Close()
	}))
	defer srv.Close()

	gc := &GatewayConsumer{
		Host:           srv.URL,
		Processor:      &collectProcessor{},
		ReconnectDelay: 10 * time.Millisecond,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- gc.Run(ctx)
	}()

	assert.Equal("", <-cursors)
	// without redis, the reconnect resumes from the in-process sequence
	assert.Equal("11", <-cursors)
	cancel()
	assert.NoError(<-done)
}

func TestGatewayNilProcessor(t *testing.T) {
	gc := &GatewayConsumer{Host: "ws://localhost:1"}
	assert.Error(t, gc.Run(context.Background()))
}
