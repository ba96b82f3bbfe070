// Package handler exposes the room gateway as MCP tools so that an agent
// relaying a chat room can drive file requests.
package handler

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tejzpr/filerequest-bot/internal/gateway"
)

// EventHandler processes one room event.
type EventHandler interface {
	Handle(ctx context.Context, ev gateway.Event) (*gateway.Reply, error)
}

// NoReplyText is returned when the gateway posts nothing back, for example
// for an upload that matches no pending request.
const NoReplyText = "(no reply)"

// Tools builds MCP tool results from gateway replies.
type Tools struct {
	events EventHandler
}

// New creates Tools dispatching to events, which is either the local
// gateway or a client of the primary instance.
func New(events EventHandler) *Tools {
	return &Tools{events: events}
}

func roomOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("room_id",
			mcp.Required(),
			mcp.Description("Identifier of the chat room"),
		),
		mcp.WithString("room_kind",
			mcp.Description("Room type: private, group, supergroup or channel (default group)"),
		),
		mcp.WithString("sender_id",
			mcp.Required(),
			mcp.Description("Stable identity of the member who sent the message"),
		),
		mcp.WithString("sender_handle",
			mcp.Description("Username of the sender without the leading @"),
		),
	}
}

func tool(name, description string, extra ...mcp.ToolOption) mcp.Tool {
	opts := append([]mcp.ToolOption{mcp.WithDescription(description)}, roomOptions()...)
	return mcp.NewTool(name, append(opts, extra...)...)
}

// Register adds every tool to s.
func (t *Tools) Register(s *server.MCPServer) {
	s.AddTool(tool("room_message",
		"Deliver a raw slash command posted in a room, such as /start, /help, /request, /queue or /status.",
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text starting with /")),
	), t.RoomMessage)

	s.AddTool(tool("file_request",
		"Ask a room member to upload a file. The target must be mentioned with @.",
		mcp.WithString("target", mcp.Required(), mcp.Description("Mention of the member expected to upload, e.g. @bob")),
		mcp.WithString("label", mcp.Required(), mcp.Description("Short name of the requested file")),
		mcp.WithString("url", mcp.Required(), mcp.Description("Link describing the requested file")),
	), t.FileRequest)

	s.AddTool(tool("file_queue",
		"List pending file requests of a room.",
	), t.FileQueue)

	s.AddTool(tool("file_status",
		"Show the state of one file request.",
		mcp.WithString("request_id", mcp.Required(), mcp.Description("Request ID as shown by the queue")),
	), t.FileStatus)

	s.AddTool(tool("file_upload",
		"Report that a member uploaded a file in a room. Completes their oldest pending request, if any.",
		mcp.WithString("file_name", mcp.Description("Name of the uploaded file")),
	), t.FileUpload)
}

func roomAndSender(request mcp.CallToolRequest) (gateway.Room, gateway.Sender, error) {
	roomID, err := request.RequireString("room_id")
	if err != nil {
		return gateway.Room{}, gateway.Sender{}, fmt.Errorf("room_id is required")
	}
	senderID, err := request.RequireString("sender_id")
	if err != nil {
		return gateway.Room{}, gateway.Sender{}, fmt.Errorf("sender_id is required")
	}
	room := gateway.Room{
		ID:   roomID,
		Kind: gateway.RoomKind(request.GetString("room_kind", string(gateway.RoomGroup))),
	}
	sender := gateway.Sender{
		ID:     senderID,
		Handle: request.GetString("sender_handle", ""),
	}
	return room, sender, nil
}

func (t *Tools) dispatch(ctx context.Context, ev gateway.Event) (*mcp.CallToolResult, error) {
	reply, err := t.events.Handle(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("failed to handle event: %w", err)
	}
	if reply == nil {
		return mcp.NewToolResultText(NoReplyText), nil
	}
	return mcp.NewToolResultText(reply.Text), nil
}

func (t *Tools) command(ctx context.Context, request mcp.CallToolRequest, name string, args ...string) (*mcp.CallToolResult, error) {
	room, sender, err := roomAndSender(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return t.dispatch(ctx, gateway.CommandEvent{Room: room, Sender: sender, Name: name, Args: args})
}

func (t *Tools) RoomMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	room, sender, err := roomAndSender(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	ev, ok := gateway.NewCommandEvent(room, sender, text)
	if !ok {
		return mcp.NewToolResultError("text must be a slash command"), nil
	}
	return t.dispatch(ctx, ev)
}

func (t *Tools) FileRequest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target, err := request.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError("target is required"), nil
	}
	label, err := request.RequireString("label")
	if err != nil {
		return mcp.NewToolResultError("label is required"), nil
	}
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	return t.command(ctx, request, gateway.CommandRequest, target, label, url)
}

func (t *Tools) FileQueue(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return t.command(ctx, request, gateway.CommandQueue)
}

func (t *Tools) FileStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("request_id")
	if err != nil {
		return mcp.NewToolResultError("request_id is required"), nil
	}
	return t.command(ctx, request, gateway.CommandStatus, id)
}

func (t *Tools) FileUpload(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	room, sender, err := roomAndSender(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return t.dispatch(ctx, gateway.UploadEvent{
		Room:     room,
		Sender:   sender,
		FileName: request.GetString("file_name", ""),
	})
}
