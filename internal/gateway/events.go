package gateway

import "strings"

// RoomKind is the chat type of a room.
type RoomKind string

const (
	RoomPrivate    RoomKind = "private"
	RoomGroup      RoomKind = "group"
	RoomSupergroup RoomKind = "supergroup"
	RoomChannel    RoomKind = "channel"
)

// Room identifies the conversation an event came from.
type Room struct {
	ID   string   `json:"id"`
	Kind RoomKind `json:"kind"`
}

// GroupLike reports whether file requests may be used in the room.
func (r Room) GroupLike() bool {
	return r.Kind == RoomGroup || r.Kind == RoomSupergroup
}

// Sender is the member who triggered an event. Handle is the mention name
// without the leading "@" and may be empty.
type Sender struct {
	ID          string `json:"id"`
	Handle      string `json:"handle,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Mention renders the sender for reply text.
func (s Sender) Mention() string {
	switch {
	case s.Handle != "":
		return "@" + s.Handle
	case s.DisplayName != "":
		return s.DisplayName
	default:
		return s.ID
	}
}

// Event is an inbound room event. The set of implementations is closed:
// CommandEvent and UploadEvent.
type Event interface {
	EventRoom() Room
	EventSender() Sender
	event()
}

// CommandEvent is a slash command such as "/request @bob photo http://x".
type CommandEvent struct {
	Room   Room
	Sender Sender
	Name   string
	Args   []string
}

func (e CommandEvent) EventRoom() Room     { return e.Room }
func (e CommandEvent) EventSender() Sender { return e.Sender }
func (CommandEvent) event()                {}

// UploadEvent reports that Sender posted a document in Room.
type UploadEvent struct {
	Room     Room
	Sender   Sender
	FileName string
}

func (e UploadEvent) EventRoom() Room     { return e.Room }
func (e UploadEvent) EventSender() Sender { return e.Sender }
func (UploadEvent) event()                {}

// Command names understood by the gateway.
const (
	CommandStart   = "start"
	CommandHelp    = "help"
	CommandRequest = "request"
	CommandQueue   = "queue"
	CommandStatus  = "status"
)

// ParseCommand splits message text into a command name and its
// whitespace-delimited arguments. A "@botname" suffix on the command is
// dropped. ok is false when text is not a command.
func ParseCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}
	name = strings.TrimPrefix(fields[0], "/")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", nil, false
	}
	return strings.ToLower(name), fields[1:], true
}

// NewCommandEvent parses text into a CommandEvent.
func NewCommandEvent(room Room, sender Sender, text string) (CommandEvent, bool) {
	name, args, ok := ParseCommand(text)
	if !ok {
		return CommandEvent{}, false
	}
	return CommandEvent{Room: room, Sender: sender, Name: name, Args: args}, true
}
