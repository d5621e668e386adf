// Consumes chat message events from a gateway websocket and feeds them to the moderation engine.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/wardenchat/warden/automod/engine"
	"github.com/wardenchat/warden/util"

	"github.com/carlmjohnson/versioninfo"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
)

var gatewayCursorKey = "warden/gateway-seq"

const (
	DefaultMaxConcurrent  = 64
	DefaultReconnectDelay = 5 * time.Second

	OpMessageCreate = "message_create"
)

type MessageProcessor interface {
	ProcessMessage(ctx context.Context, msg *engine.MessageEvent) (*engine.Verdict, error)
}

var _ MessageProcessor = (*engine.Engine)(nil)

// One frame on the gateway stream. Data is op-specific.
type Frame struct {
	Op   string          `json:"op"`
	Seq  int64           `json:"seq"`
	Data json.RawMessage `json:"d"`
}

type MessageAuthor struct {
	ID    string   `json:"id"`
	Bot   bool     `json:"bot"`
	Admin bool     `json:"admin"`
	Roles []string `json:"roles"`
}

// Payload of a message_create frame.
type MessagePayload struct {
	ID        string        `json:"id"`
	GuildID   string        `json:"guild_id"`
	ChannelID string        `json:"channel_id"`
	Author    MessageAuthor `json:"author"`
	Content   string        `json:"content"`
	// only counted; attachment contents are not inspected
	Attachments []json.RawMessage `json:"attachments"`
	Timestamp   string            `json:"timestamp"`
}

func (p *MessagePayload) MessageEvent() (*engine.MessageEvent, error) {
	evt := &engine.MessageEvent{
		TenantID:      p.GuildID,
		ChannelID:     p.ChannelID,
		MessageID:     p.ID,
		AuthorID:      p.Author.ID,
		AuthorRoles:   p.Author.Roles,
		AuthorIsAdmin: p.Author.Admin,
		AuthorIsBot:   p.Author.Bot,
		Content:       p.Content,

		AttachmentCount: len(p.Attachments),
	}
	if p.Timestamp != "" {
		ts, err := util.ParseTimestamp(p.Timestamp)
		if err != nil {
			return nil, err
		}
		evt.Timestamp = ts
	}
	return evt, evt.Validate()
}

type GatewayConsumer struct {
	// websocket URL (or bare host) of the gateway
	Host           string
	Logger         *slog.Logger
	RedisClient    *redis.Client
	Processor      MessageProcessor
	// number of workers; messages from one author in one tenant are always handled in arrival order by a single worker at a time
	MaxConcurrent  int
	// messages read ahead of processing; the stream is not read while this many are pending
	MaxQueue       int
	ReconnectDelay time.Duration

	// lastSeq is the most recent frame sequence number we've received and begun to handle.
	// This number is periodically persisted to redis, if redis is present.
	// Messages are handled concurrently, so this is best-effort, and must be accessed with atomics.
	lastSeq int64
}

// Runs the consumer until the context is cancelled, reconnecting after stream errors.
func (gc *GatewayConsumer) Run(ctx context.Context) error {
	if gc.Processor == nil {
		return fmt.Errorf("nil message processor")
	}
	if gc.Logger == nil {
		gc.Logger = slog.Default()
	}
	delay := gc.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}

	for {
		err := gc.runOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		gatewayReconnects.Inc()
		gc.Logger.Warn("gateway stream ended, reconnecting", "err", err, "delay", delay)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (gc *GatewayConsumer) runOnce(ctx context.Context) error {
	cur, err := gc.ReadLastCursor(ctx)
	if err != nil {
		return err
	}

	u, err := url.Parse(util.WebsocketUrlForHost(gc.Host))
	if err != nil {
		return fmt.Errorf("invalid gateway host URI: %w", err)
	}
	if cur > 0 {
		q := u.Query()
		q.Set("cursor", strconv.FormatInt(cur, 10))
		u.RawQuery = q.Encode()
	}
	gc.Logger.Info("subscribing to gateway message stream", "upstream", gc.Host, "cursor", cur)
	con, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), http.Header{
		"User-Agent": []string{fmt.Sprintf("warden/%s", versioninfo.Short())},
	})
	if err != nil {
		return fmt.Errorf("subscribing to gateway failed (dialing): %w", err)
	}
	defer con.Close()

	// unblock ReadMessage on shutdown
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-streamCtx.Done()
		con.Close()
	}()

	workers := gc.MaxConcurrent
	if workers <= 0 {
		workers = DefaultMaxConcurrent
	}
	maxQueue := gc.MaxQueue
	if maxQueue <= 0 {
		maxQueue = DefaultMaxQueue
	}
	sched := newScheduler(workers, maxQueue, gc.Logger, gc.handleTask)
	// wait for queued messages before returning
	defer sched.Shutdown()

	for {
		_, raw, err := con.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading gateway frame: %w", err)
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			gc.Logger.Warn("skipping malformed gateway frame", "err", err)
			continue
		}
		if frame.Seq > 0 {
			atomic.StoreInt64(&gc.lastSeq, frame.Seq)
		}
		if frame.Op != OpMessageCreate {
			continue
		}
		framesReceived.Inc()

		var payload MessagePayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			gc.Logger.Warn("skipping malformed message payload", "seq", frame.Seq, "err", err)
			continue
		}
		evt, err := payload.MessageEvent()
		if err != nil {
			gc.Logger.Warn("skipping invalid message", "seq", frame.Seq, "err", err)
			continue
		}

		if err := sched.AddWork(ctx, frame.Seq, evt); err != nil {
			return nil
		}
	}
}

// processing is not cut short by consumer shutdown; the engine drains in-flight messages itself
func (gc *GatewayConsumer) handleTask(ctx context.Context, t *task) {
	if _, err := gc.Processor.ProcessMessage(ctx, t.evt); err != nil && !errors.Is(err, engine.ErrEngineClosed) {
		gc.Logger.Error("engine failed to process message", "seq", t.seq, "tenant", t.evt.TenantID, "message", t.evt.MessageID, "err", err)
	}
	framesProcessed.Inc()
}

func (gc *GatewayConsumer) LastSeq() int64 {
	return atomic.LoadInt64(&gc.lastSeq)
}

func (gc *GatewayConsumer) ReadLastCursor(ctx context.Context) (int64, error) {
	// if redis isn't configured, resume from the in-process value
	if gc.RedisClient == nil {
		return gc.LastSeq(), nil
	}

	val, err := gc.RedisClient.Get(ctx, gatewayCursorKey).Int64()
	if errors.Is(err, redis.Nil) {
		gc.Logger.Info("no pre-existing cursor in redis")
		return gc.LastSeq(), nil
	} else if err != nil {
		return 0, err
	}
	gc.Logger.Info("successfully found prior subscription cursor seq in redis", "seq", val)
	if local := gc.LastSeq(); local > val {
		return local, nil
	}
	return val, nil
}

func (gc *GatewayConsumer) PersistCursor(ctx context.Context) error {
	// if redis isn't configured, just skip
	if gc.RedisClient == nil {
		return nil
	}
	lastSeq := gc.LastSeq()
	if lastSeq <= 0 {
		return nil
	}
	return gc.RedisClient.Set(ctx, gatewayCursorKey, lastSeq, 14*24*time.Hour).Err()
}

// this method runs in a loop, persisting the current cursor state every 5 seconds
func (gc *GatewayConsumer) RunPersistCursor(ctx context.Context) error {

	// if redis isn't configured, just skip
	if gc.RedisClient == nil {
		return nil
	}
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			lastSeq := gc.LastSeq()
			if lastSeq >= 1 {
				gc.Logger.Info("persisting final cursor seq value", "seq", lastSeq)
				// parent context is already cancelled
				if err := gc.PersistCursor(context.Background()); err != nil {
					gc.Logger.Error("failed to persist cursor", "err", err, "seq", lastSeq)
				}
			}
			return nil
		case <-ticker.C:
			lastSeq := gc.LastSeq()
			if lastSeq >= 1 {
				if err := gc.PersistCursor(ctx); err != nil {
					gc.Logger.Error("failed to persist cursor", "err", err, "seq", lastSeq)
				}
			}
		}
	}
}
