// Package gateway turns inbound room events into engine calls and renders
// the results as chat replies.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tejzpr/filerequest-bot/internal/request"
)

// Engine is the request lifecycle the gateway drives.
type Engine interface {
	CreateRequest(ctx context.Context, roomID, requester, target, label, reference string) (request.Request, error)
	ListPending(ctx context.Context, roomID string) ([]request.Request, error)
	GetRequest(ctx context.Context, roomID, id string) (request.Request, error)
	ResolveOnUpload(ctx context.Context, roomID, uploaderID, uploaderHandle string) (request.Request, error)
}

// NotificationKind names a lifecycle change.
type NotificationKind string

const (
	RequestCreated   NotificationKind = "request-created"
	RequestCompleted NotificationKind = "request-completed"
)

// Notification is published after a request is created or completed.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	Request request.Request  `json:"request"`
	At      time.Time        `json:"at"`
}

// Notifier receives lifecycle notifications. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// Reply is the text to post back into the room.
type Reply struct {
	Text string `json:"text"`
}

// Gateway dispatches events to an Engine.
type Gateway struct {
	engine   Engine
	notifier Notifier
	logger   *slog.Logger
	botName  string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithNotifier publishes lifecycle changes to n.
func WithNotifier(n Notifier) Option {
	return func(g *Gateway) {
		g.notifier = n
	}
}

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = l
	}
}

// WithBotName sets the name shown in the welcome text.
func WithBotName(name string) Option {
	return func(g *Gateway) {
		g.botName = name
	}
}

// New creates a Gateway over engine.
func New(engine Engine, opts ...Option) *Gateway {
	g := &Gateway{
		engine:  engine,
		logger:  slog.New(slog.DiscardHandler),
		botName: "File Request Bot",
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Handle processes one event. A nil Reply means nothing is posted back.
// When err is non-nil the Reply, if any, is a generic failure message
// suitable for the room.
func (g *Gateway) Handle(ctx context.Context, ev Event) (*Reply, error) {
	room := ev.EventRoom()
	g.logger.DebugContext(ctx, "gateway.event", "room", room.ID, "kind", room.Kind, "sender", ev.EventSender().ID)

	switch ev := ev.(type) {
	case CommandEvent:
		return g.handleCommand(ctx, ev)
	case UploadEvent:
		return g.handleUpload(ctx, ev)
	default:
		return nil, nil
	}
}

func (g *Gateway) handleCommand(ctx context.Context, ev CommandEvent) (*Reply, error) {
	switch ev.Name {
	case CommandStart:
		return reply(renderStart(g.botName)), nil
	case CommandHelp:
		return reply(renderHelp()), nil
	case CommandRequest, CommandQueue, CommandStatus:
		if !ev.Room.GroupLike() {
			return reply(msgGroupsOnly), nil
		}
	default:
		g.logger.DebugContext(ctx, "gateway.command.unknown", "room", ev.Room.ID, "command", ev.Name)
		return nil, nil
	}

	switch ev.Name {
	case CommandRequest:
		return g.createRequest(ctx, ev)
	case CommandQueue:
		return g.listPending(ctx, ev)
	default:
		return g.status(ctx, ev)
	}
}

func (g *Gateway) createRequest(ctx context.Context, ev CommandEvent) (*Reply, error) {
	if len(ev.Args) < 3 {
		return reply(msgRequestUsage), nil
	}
	target, label, url := ev.Args[0], ev.Args[1], ev.Args[2]

	created, err := g.engine.CreateRequest(ctx, ev.Room.ID, ev.Sender.ID, target, label, url)
	if err != nil {
		var verr *request.ValidationError
		if errors.As(err, &verr) {
			g.logger.DebugContext(ctx, "gateway.request.rejected", "room", ev.Room.ID, "field", verr.Field, "reason", verr.Reason)
			if verr.Field == "target" {
				return reply(msgMentionNeeded), nil
			}
			return reply(msgRequestUsage), nil
		}
		return g.fail(ctx, "gateway.request.failed", ev.Room, err)
	}

	g.logger.InfoContext(ctx, "gateway.request.created", "room", created.RoomID, "id", created.ID, "target", created.Target)
	g.notify(RequestCreated, created)
	return reply(renderCreated(created, ev.Sender)), nil
}

func (g *Gateway) listPending(ctx context.Context, ev CommandEvent) (*Reply, error) {
	pending, err := g.engine.ListPending(ctx, ev.Room.ID)
	if err != nil {
		return g.fail(ctx, "gateway.queue.failed", ev.Room, err)
	}
	return reply(renderQueue(pending)), nil
}

func (g *Gateway) status(ctx context.Context, ev CommandEvent) (*Reply, error) {
	if len(ev.Args) < 1 {
		return reply(msgStatusUsage), nil
	}
	id := ev.Args[0]

	r, err := g.engine.GetRequest(ctx, ev.Room.ID, id)
	if errors.Is(err, request.ErrNotFound) {
		return reply(renderNotFound(id)), nil
	}
	if err != nil {
		return g.fail(ctx, "gateway.status.failed", ev.Room, err)
	}
	return reply(renderStatus(r)), nil
}

func (g *Gateway) handleUpload(ctx context.Context, ev UploadEvent) (*Reply, error) {
	if !ev.Room.GroupLike() {
		return nil, nil
	}

	done, err := g.engine.ResolveOnUpload(ctx, ev.Room.ID, ev.Sender.ID, ev.Sender.Handle)
	if errors.Is(err, request.ErrNoMatch) {
		g.logger.DebugContext(ctx, "gateway.upload.unmatched", "room", ev.Room.ID, "sender", ev.Sender.ID)
		return nil, nil
	}
	if err != nil {
		return g.fail(ctx, "gateway.upload.failed", ev.Room, err)
	}

	g.logger.InfoContext(ctx, "gateway.request.completed", "room", done.RoomID, "id", done.ID, "fulfiller", done.Fulfiller)
	g.notify(RequestCompleted, done)
	return reply(renderCompleted(done, ev.Sender)), nil
}

func (g *Gateway) fail(ctx context.Context, msg string, room Room, err error) (*Reply, error) {
	g.logger.ErrorContext(ctx, msg, "room", room.ID, "error", err)
	return reply(msgInternal), err
}

func (g *Gateway) notify(kind NotificationKind, r request.Request) {
	if g.notifier == nil {
		return
	}
	g.notifier.Notify(Notification{Kind: kind, Request: r, At: time.Now()})
}

func reply(text string) *Reply {
	return &Reply{Text: text}
}
