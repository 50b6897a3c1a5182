// Package discord feeds Discord messages into the capture command
// interpreter.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/command"
)

// Prefix marks messages addressed to the bot.
const Prefix = "!"

// Commands executes text commands.
type Commands interface {
	Execute(ctx context.Context, req command.Request) string
}

// Photos captures images.
type Photos interface {
	AttachImage(ctx context.Context, ownerID, name string, data []byte, caption string, meta map[string]string) (*capture.Item, error)
}

// Fetcher downloads a file by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Bot wraps the Discord session and dependencies
type Bot struct {
	Session  *discordgo.Session
	commands Commands
	photos   Photos
	fetcher  Fetcher
	owners   map[string]string
	logger   *slog.Logger
}

// NewBot creates a new Discord bot. owners maps Discord user IDs to capture
// owners.
func NewBot(token string, owners map[string]string, commands Commands, photos Photos, fetcher Fetcher, logger *slog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating Discord session: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	bot := &Bot{
		Session:  dg,
		commands: commands,
		photos:   photos,
		fetcher:  fetcher,
		owners:   owners,
		logger:   logger,
	}

	dg.AddHandler(bot.messageCreate)

	return bot, nil
}

// Start opens the websocket connection
func (b *Bot) Start() error {
	return b.Session.Open()
}

// Stop closes the websocket connection
func (b *Bot) Stop() error {
	return b.Session.Close()
}

func (b *Bot) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// Ignore messages from self
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	reply := b.handle(context.Background(), m.Message)
	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		b.logger.Warn("failed to send Discord reply", "channel", m.ChannelID, "error", err)
	}
}

// handle returns the reply for m, or "" when the message is not for the bot.
func (b *Bot) handle(ctx context.Context, m *discordgo.Message) string {
	text, ok := CommandText(m.Content)
	if !ok {
		return ""
	}
	owner, linked := b.owners[m.Author.ID]
	if !linked {
		return "Your Discord account is not linked to a family planner account."
	}
	meta := map[string]string{"discord_channel": m.ChannelID}

	if img := firstImage(m.Attachments); img != nil {
		return b.handlePhoto(ctx, owner, img, text, meta)
	}
	if text == "" {
		return command.HelpText
	}
	return b.commands.Execute(ctx, command.Request{
		OwnerID:  owner,
		Channel:  capture.ChannelText,
		Text:     text,
		Metadata: meta,
	})
}

func (b *Bot) handlePhoto(ctx context.Context, owner string, img *discordgo.MessageAttachment, caption string, meta map[string]string) string {
	if b.photos == nil || b.fetcher == nil {
		return "Photos are not supported here yet."
	}
	data, err := b.fetcher.Fetch(ctx, img.URL)
	if err != nil {
		b.logger.Warn("failed to download Discord attachment", "error", err)
		return "Sorry, I couldn't process the photo. Please try again."
	}
	item, err := b.photos.AttachImage(ctx, owner, img.Filename, data, caption, meta)
	if err != nil {
		b.logger.Warn("photo capture failed", "owner", owner, "error", err)
		return "Sorry, I couldn't process the photo. Please try again."
	}
	return fmt.Sprintf("✅ Photo added to inbox (urgency %d, %s)", item.UrgencyScore, item.Category)
}

func firstImage(atts []*discordgo.MessageAttachment) *discordgo.MessageAttachment {
	for _, a := range atts {
		if strings.HasPrefix(a.ContentType, "image/") {
			return a
		}
	}
	return nil
}

// CommandText strips the bot prefix. "!inbox x" is a quick add of x and
// "!task x" becomes "task: x". ok is false for messages without the prefix.
func CommandText(content string) (text string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, Prefix) {
		return "", false
	}
	content = strings.TrimPrefix(content, Prefix)
	head, rest, _ := strings.Cut(content, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(head) {
	case "inbox":
		return rest, true
	case "task", "event", "add", "delete", "update":
		if rest == "" {
			return strings.ToLower(head), true
		}
		return strings.ToLower(head) + ": " + rest, true
	}
	return content, true
}
