// Package telegram feeds Telegram chat messages into the capture command
// interpreter.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/scottring/family-planner-sub006/pkg/capture"
	"github.com/scottring/family-planner-sub006/pkg/command"
)

const replyUnlinked = "This chat is not linked to a family planner account."

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

// Bot wraps the Telegram bot API and dependencies
type Bot struct {
	API      *tgbotapi.BotAPI
	commands Commands
	photos   Photos
	fetcher  Fetcher
	owners   map[int64]string
	logger   *slog.Logger
	stopCh   chan struct{}
}

// NewBot creates a new Telegram bot. owners maps chat IDs to capture owners.
func NewBot(token string, owners map[int64]string, commands Commands, photos Photos, fetcher Fetcher, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("error creating Telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Bot{
		API:      api,
		commands: commands,
		photos:   photos,
		fetcher:  fetcher,
		owners:   owners,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins polling for updates in a goroutine
func (b *Bot) Start() error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.API.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-b.stopCh:
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil {
					b.reply(update.Message.Chat.ID, b.handleMessage(context.Background(), update.Message))
				}
			}
		}
	}()

	return nil
}

// Stop stops polling for updates
func (b *Bot) Stop() {
	close(b.stopCh)
	b.API.StopReceivingUpdates()
}

func (b *Bot) reply(chatID int64, text string) {
	if text == "" {
		return
	}
	if _, err := b.API.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Warn("failed to send Telegram reply", "chat", chatID, "error", err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) string {
	owner, ok := b.owners[msg.Chat.ID]
	if !ok {
		return replyUnlinked
	}
	meta := map[string]string{"telegram_chat": fmt.Sprint(msg.Chat.ID)}

	if len(msg.Photo) > 0 {
		return b.handlePhoto(ctx, owner, msg, meta)
	}
	text := CommandText(msg.Text)
	if text == "" {
		return ""
	}
	return b.commands.Execute(ctx, command.Request{
		OwnerID:  owner,
		Channel:  capture.ChannelText,
		Text:     text,
		Metadata: meta,
	})
}

func (b *Bot) handlePhoto(ctx context.Context, owner string, msg *tgbotapi.Message, meta map[string]string) string {
	if b.photos == nil || b.fetcher == nil {
		return "Photos are not supported here yet."
	}
	// Telegram lists sizes smallest first.
	photo := msg.Photo[len(msg.Photo)-1]
	url, err := b.API.GetFileDirectURL(photo.FileID)
	if err != nil {
		b.logger.Warn("failed to resolve Telegram file", "error", err)
		return "Sorry, I couldn't process the photo. Please try again."
	}
	data, err := b.fetcher.Fetch(ctx, url)
	if err != nil {
		b.logger.Warn("failed to download Telegram photo", "error", err)
		return "Sorry, I couldn't process the photo. Please try again."
	}
	item, err := b.photos.AttachImage(ctx, owner, photo.FileUniqueID+".jpg", data, msg.Caption, meta)
	if err != nil {
		b.logger.Warn("photo capture failed", "owner", owner, "error", err)
		return "Sorry, I couldn't process the photo. Please try again."
	}
	return fmt.Sprintf("Photo added to inbox (urgency %d, %s).", item.UrgencyScore, item.Category)
}

// slashCommands maps bot commands to interpreter keywords. An empty keyword
// means the rest of the message is a quick add.
var slashCommands = map[string]string{
	"/inbox":  "",
	"/add":    "add:",
	"/task":   "task:",
	"/event":  "event:",
	"/list":   "list",
	"/status": "status",
	"/help":   "help",
	"/start":  "help",
	"/delete": "delete:",
	"/update": "update:",
}

// CommandText rewrites a Telegram slash command into interpreter text.
// "/task@family_bot buy milk" becomes "task: buy milk". Plain text and
// unknown commands pass through unchanged.
func CommandText(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return text
	}
	head, rest, _ := strings.Cut(text, " ")
	name, _, _ := strings.Cut(head, "@")
	keyword, ok := slashCommands[strings.ToLower(name)]
	if !ok {
		return text
	}
	rest = strings.TrimSpace(rest)
	switch {
	case keyword == "":
		return rest
	case rest == "":
		return strings.TrimSuffix(keyword, ":")
	}
	return keyword + " " + rest
}
