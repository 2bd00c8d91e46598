package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"anydown/pkg/channel"
	"anydown/pkg/config"
	"anydown/pkg/pipeline"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// Upload read/write budgets; a stalled transfer in either direction must not
// hang a request indefinitely.
const defaultUploadTimeout = 60 * time.Second

const welcomeText = `🎥 Video Download Bot

Send me a link from:
- YouTube
- Facebook
- Instagram
- Twitter/X

I'll download and send you the video!`

// Adapter bridges Telegram updates into download requests and implements
// the pipeline transport for replies, uploads, and progress messages.
type Adapter struct {
	cfg           config.TelegramConfig
	bot           *telego.Bot
	allowFrom     map[string]struct{}
	uploadTimeout time.Duration
	onStarted     func()
	log           *slog.Logger
}

// NewAdapter validates Telegram configuration and constructs an adapter instance.
func NewAdapter(cfg config.TelegramConfig, deliveryCfg config.DeliveryConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("telegram.token is required")
	}

	if log == nil {
		log = slog.Default()
	}

	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	uploadTimeout := defaultUploadTimeout
	if deliveryCfg.UploadTimeoutSeconds > 0 {
		uploadTimeout = time.Duration(deliveryCfg.UploadTimeoutSeconds) * time.Second
	}

	return &Adapter{
		cfg:           cfg,
		bot:           bot,
		allowFrom:     allowFromSet(cfg.AllowFrom),
		uploadTimeout: uploadTimeout,
		log:           log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in logs.
func (a *Adapter) Name() string {
	return channelName
}

// OnStarted registers a callback invoked once long polling is established.
// Readiness reporting hooks in here rather than guessing from the outside.
func (a *Adapter) OnStarted(fn func()) {
	a.onStarted = fn
}

func (a *Adapter) markStarted() {
	if a.onStarted != nil {
		a.onStarted()
	}
}

// Run starts Telegram long polling and hands each link to the sink in its
// own goroutine, so a long download never blocks other chats.
func (a *Adapter) Run(ctx context.Context, sink channel.Sink) error {
	if sink == nil {
		return errors.New("sink is required")
	}

	updates, err := a.bot.UpdatesViaLongPolling(ctx, nil)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	a.log.Info("Telegram channel started")
	a.markStarted()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			message := update.Message
			if message == nil {
				continue
			}

			content := strings.TrimSpace(message.Text)
			if content == "" {
				// Ignore non-text updates; only links are actionable.
				continue
			}
			if message.From == nil {
				a.log.Debug("Ignoring message without sender")
				continue
			}

			senderID := strconv.FormatInt(message.From.ID, 10)
			if !a.senderAllowed(senderID) {
				a.log.Debug("Ignoring message from unauthorized sender", "sender_id", senderID)
				continue
			}

			chatID := strconv.FormatInt(message.Chat.ID, 10)

			if strings.HasPrefix(content, "/") {
				a.handleCommand(ctx, chatID, content)
				continue
			}

			a.log.Info("Received link", "chat_id", chatID, "sender_id", senderID, "content", previewText(content))

			go sink(ctx, pipeline.Request{URL: content, ChatID: chatID})
		}
	}
}

// handleCommand answers /start with the capability text; other commands are ignored.
func (a *Adapter) handleCommand(ctx context.Context, chatID string, content string) {
	command := strings.Fields(content)[0]
	if command != "/start" {
		a.log.Debug("Ignoring unknown command", "chat_id", chatID, "command", command)
		return
	}

	if err := a.SendText(ctx, chatID, welcomeText); err != nil {
		a.log.Error("Failed to send welcome message", "chat_id", chatID, "error", err)
	}
}

// SendText sends a plain text message to the chat.
func (a *Adapter) SendText(ctx context.Context, chatID string, text string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	if _, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(id), text)); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

// SendActivity sends a chat action indicator (typing, uploading video).
func (a *Adapter) SendActivity(ctx context.Context, chatID string, activity string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	if err := a.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(id), chatAction(activity))); err != nil {
		return fmt.Errorf("send chat action: %w", err)
	}

	return nil
}

// SendProgress sends a progress notice and returns a handle for later deletion.
func (a *Adapter) SendProgress(ctx context.Context, chatID string, text string) (pipeline.MessageRef, error) {
	id, err := parseChatID(chatID)
	if err != nil {
		return pipeline.MessageRef{}, err
	}

	sent, err := a.bot.SendMessage(ctx, tu.Message(tu.ID(id), text))
	if err != nil {
		return pipeline.MessageRef{}, fmt.Errorf("send progress message: %w", err)
	}

	return pipeline.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// SendVideo uploads the file as a streamable video under the upload timeout budget.
func (a *Adapter) SendVideo(ctx context.Context, chatID string, path string, caption string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open video file: %w", err)
	}
	defer file.Close()

	uploadCtx, cancel := a.uploadContext(ctx)
	defer cancel()

	params := &telego.SendVideoParams{
		ChatID:            tu.ID(id),
		Video:             tu.File(file),
		Caption:           caption,
		SupportsStreaming: true,
	}
	if _, err := a.bot.SendVideo(uploadCtx, params); err != nil {
		return fmt.Errorf("send video: %w", err)
	}

	return nil
}

// SendDocument uploads the file as a generic document under the upload timeout budget.
func (a *Adapter) SendDocument(ctx context.Context, chatID string, path string, caption string) error {
	id, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open document file: %w", err)
	}
	defer file.Close()

	uploadCtx, cancel := a.uploadContext(ctx)
	defer cancel()

	params := &telego.SendDocumentParams{
		ChatID:   tu.ID(id),
		Document: tu.File(file),
		Caption:  caption,
	}
	if _, err := a.bot.SendDocument(uploadCtx, params); err != nil {
		return fmt.Errorf("send document: %w", err)
	}

	return nil
}

// DeleteMessage removes a previously sent message by handle.
func (a *Adapter) DeleteMessage(ctx context.Context, ref pipeline.MessageRef) error {
	id, err := parseChatID(ref.ChatID)
	if err != nil {
		return err
	}

	params := &telego.DeleteMessageParams{ChatID: tu.ID(id), MessageID: ref.MessageID}
	if err := a.bot.DeleteMessage(ctx, params); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	return nil
}

// uploadContext bounds one upload with separate send and acknowledgment
// budgets collapsed into a single deadline.
func (a *Adapter) uploadContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*a.uploadTimeout)
}

// chatAction maps pipeline activity names onto Telegram chat actions.
func chatAction(activity string) string {
	switch activity {
	case pipeline.ActivityUploadVideo:
		return telego.ChatActionUploadVideo
	default:
		return telego.ChatActionTyping
	}
}

// parseChatID converts the opaque channel identifier back to Telegram's int64.
func parseChatID(chatID string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid chat id %q: %w", chatID, err)
	}

	return id, nil
}

// senderAllowed checks whether a sender is permitted by allow_from config.
//
// When no allow list is configured, all senders are accepted.
func (a *Adapter) senderAllowed(senderID string) bool {
	if len(a.allowFrom) == 0 {
		return true
	}

	_, ok := a.allowFrom[strings.TrimSpace(senderID)]
	return ok
}

// allowFromSet normalizes allow_from values into a lookup set.
func allowFromSet(allowFrom []string) map[string]struct{} {
	if len(allowFrom) == 0 {
		return nil
	}

	allowed := make(map[string]struct{}, len(allowFrom))
	for _, value := range allowFrom {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		allowed[trimmed] = struct{}{}
	}

	if len(allowed) == 0 {
		return nil
	}

	return allowed
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) <= messagePreviewLimit {
		return trimmed
	}

	return trimmed[:messagePreviewLimit] + "..."
}
