package agent

import "github.com/bottylabs/botty/pkg/tools"

// EventType classifies one output event of a conversation run.
type EventType string

const (
	EventText  EventType = "text"
	EventPoll  EventType = "poll"
	EventImage EventType = "image_data"
)

// Event is one element of the lazy output stream produced by Respond.
// ChannelID is the delivery target, which for cross-channel tool deliveries
// differs from the conversation the run belongs to.
type Event struct {
	Type      EventType
	ChannelID string
	Text      string
	Poll      *tools.Poll
	Image     []byte
	// ImageContentType is the MIME type of Image on image events.
	ImageContentType string
}
