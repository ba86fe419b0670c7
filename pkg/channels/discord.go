// Package channels delivers conversations between chat platforms and the
// turn engine. Discord is the only surface.
package channels

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/bottylabs/botty/pkg/agent"
	"github.com/bottylabs/botty/pkg/logger"
)

const (
	// Discord allows 2000 characters per message; leave headroom for the
	// splitter to find a natural boundary.
	discordMessageLimit = 1900

	sendTimeout = 10 * time.Second
)

// DiscordConfig configures the Discord surface.
type DiscordConfig struct {
	Token string

	// AutoRespondChannels lists channel ids the bot answers without being
	// mentioned.
	AutoRespondChannels []string

	// DMWhitelist lists user ids allowed to DM the bot.
	DMWhitelist []string
}

// Discord connects a discordgo session to the turn engine.
type Discord struct {
	session     *discordgo.Session
	engine      *agent.Engine
	limiter     *rate.Limiter
	autoRespond map[string]bool
	dmWhitelist map[string]bool
	ctx         context.Context
}

// NewDiscord builds the Discord channel. The session is not opened until
// Start.
func NewDiscord(cfg DiscordConfig, engine *agent.Engine) (*Discord, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentMessageContent

	return &Discord{
		session:     session,
		engine:      engine,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 5),
		autoRespond: toSet(cfg.AutoRespondChannels),
		dmWhitelist: toSet(cfg.DMWhitelist),
		ctx:         context.Background(),
	}, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = true
		}
	}
	return set
}

// Start opens the gateway connection and begins handling messages.
func (d *Discord) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	d.ctx = ctx
	d.session.AddHandler(d.handleMessage)

	if err := d.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	botUser, err := d.session.User("@me")
	if err != nil {
		return fmt.Errorf("fetch bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

// Stop closes the gateway connection.
func (d *Discord) Stop() error {
	logger.InfoC("discord", "Stopping Discord bot")
	if err := d.session.Close(); err != nil {
		return fmt.Errorf("close discord session: %w", err)
	}
	return nil
}

func (d *Discord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil || s.State.User == nil {
		return
	}
	if m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}
	if !d.shouldRespond(s.State.User.ID, m) {
		return
	}

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		logger.DebugCF("discord", "Failed to send typing indicator", map[string]any{
			"error": err.Error(),
		})
	}

	req := agent.Request{
		ConversationID: m.ChannelID,
		Text:           strings.TrimSpace(m.Content),
		Username:       m.Author.Username,
		MediaURLs:      imageAttachmentURLs(m.Attachments),
	}
	if req.Text == "" && len(req.MediaURLs) == 0 {
		return
	}

	logger.DebugCF("discord", "Received message", map[string]any{
		"channel_id": m.ChannelID,
		"username":   req.Username,
	})

	for ev := range d.engine.Respond(d.ctx, req) {
		if err := d.deliver(ev); err != nil {
			logger.ErrorCF("discord", "Failed to deliver event", map[string]any{
				"type":       string(ev.Type),
				"channel_id": ev.ChannelID,
				"error":      err.Error(),
			})
		}
	}
}

// shouldRespond applies the admission policy: auto-respond channels answer
// everything, DMs require the sender to be whitelisted, and anywhere else
// the bot must be mentioned.
func (d *Discord) shouldRespond(botID string, m *discordgo.MessageCreate) bool {
	if d.autoRespond[m.ChannelID] {
		return true
	}
	if m.GuildID == "" {
		return d.dmWhitelist[m.Author.ID]
	}
	for _, u := range m.Mentions {
		if u != nil && u.ID == botID {
			return true
		}
	}
	return false
}

func imageAttachmentURLs(attachments []*discordgo.MessageAttachment) []string {
	var urls []string
	for _, a := range attachments {
		if a == nil {
			continue
		}
		if strings.HasPrefix(a.ContentType, "image/") {
			urls = append(urls, a.URL)
		}
	}
	return urls
}

func (d *Discord) deliver(ev agent.Event) error {
	ctx, cancel := context.WithTimeout(d.ctx, sendTimeout)
	defer cancel()

	switch ev.Type {
	case agent.EventText:
		return d.sendText(ctx, ev.ChannelID, ev.Text)
	case agent.EventPoll:
		return d.sendPoll(ctx, ev)
	case agent.EventImage:
		return d.sendImage(ctx, ev)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (d *Discord) sendText(ctx context.Context, channelID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	for _, chunk := range SplitMessage(text, discordMessageLimit) {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := d.session.ChannelMessageSend(channelID, chunk); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}

func (d *Discord) sendPoll(ctx context.Context, ev agent.Event) error {
	if ev.Poll == nil {
		return fmt.Errorf("poll event without poll payload")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	answers := make([]discordgo.PollAnswer, 0, len(ev.Poll.Options))
	for _, opt := range ev.Poll.Options {
		answers = append(answers, discordgo.PollAnswer{
			Media: &discordgo.PollMedia{Text: opt},
		})
	}

	_, err := d.session.ChannelMessageSendComplex(ev.ChannelID, &discordgo.MessageSend{
		Poll: &discordgo.Poll{
			Question:         discordgo.PollMedia{Text: ev.Poll.Question},
			Answers:          answers,
			Duration:         ev.Poll.DurationHours,
			AllowMultiselect: ev.Poll.AllowMultiple,
		},
	})
	if err != nil {
		return fmt.Errorf("send poll: %w", err)
	}
	return nil
}

func (d *Discord) sendImage(ctx context.Context, ev agent.Event) error {
	if len(ev.Image) == 0 {
		return fmt.Errorf("image event without data")
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	contentType := ev.ImageContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}
	_, err := d.session.ChannelMessageSendComplex(ev.ChannelID, &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        "generated" + attachmentExtension(contentType),
			ContentType: contentType,
			Reader:      bytes.NewReader(ev.Image),
		}},
	})
	if err != nil {
		return fmt.Errorf("send image: %w", err)
	}
	return nil
}

func attachmentExtension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
