package webserver

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/tejzpr/filerequest-bot/internal/gateway"
)

const (
	EventTypeCommand = "command"
	EventTypeUpload  = "upload"
)

// EventPayload is the JSON body of POST /api/rooms/{room}/events. A command
// is given either as raw Text or as Command plus Args.
type EventPayload struct {
	Type     string           `json:"type"`
	RoomKind gateway.RoomKind `json:"room_kind"`
	Sender   gateway.Sender   `json:"sender"`
	Text     string           `json:"text,omitempty"`
	Command  string           `json:"command,omitempty"`
	Args     []string         `json:"args,omitempty"`
	FileName string           `json:"file_name,omitempty"`
}

// EventResponse is the JSON answer to an event post.
type EventResponse struct {
	Replied bool   `json:"replied"`
	Reply   string `json:"reply,omitempty"`
}

// Event converts the payload into a gateway event for roomID.
func (p EventPayload) Event(roomID string) (gateway.Event, error) {
	if roomID == "" {
		return nil, errors.New("room id is required")
	}
	if p.Sender.ID == "" {
		return nil, errors.New("sender.id is required")
	}
	room := gateway.Room{ID: roomID, Kind: p.RoomKind}

	switch p.Type {
	case EventTypeCommand:
		if p.Text != "" {
			ev, ok := gateway.NewCommandEvent(room, p.Sender, p.Text)
			if !ok {
				return nil, fmt.Errorf("not a command: %q", p.Text)
			}
			return ev, nil
		}
		if p.Command == "" {
			return nil, errors.New("text or command is required")
		}
		return gateway.CommandEvent{
			Room:   room,
			Sender: p.Sender,
			Name:   strings.ToLower(strings.TrimPrefix(p.Command, "/")),
			Args:   p.Args,
		}, nil
	case EventTypeUpload:
		return gateway.UploadEvent{Room: room, Sender: p.Sender, FileName: p.FileName}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", p.Type)
	}
}

// PayloadFor is the inverse of EventPayload.Event.
func PayloadFor(ev gateway.Event) EventPayload {
	p := EventPayload{
		RoomKind: ev.EventRoom().Kind,
		Sender:   ev.EventSender(),
	}
	switch ev := ev.(type) {
	case gateway.CommandEvent:
		p.Type = EventTypeCommand
		p.Command = ev.Name
		p.Args = ev.Args
	case gateway.UploadEvent:
		p.Type = EventTypeUpload
		p.FileName = ev.FileName
	}
	return p
}

// BaseURL turns a listen address such as ":8080" into a URL that reaches
// the server from the local host.
func BaseURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}
