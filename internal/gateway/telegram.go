package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/workdesk/internal/agent"
	"github.com/rahul/workdesk/internal/observability"
	"go.uber.org/zap"
)

// maxMessageLength is Telegram's limit for one text message.
const maxMessageLength = 4096

const helpText = "Ask me about your documents, for example:\n" +
	"• Summarize my onboarding and create a checklist\n" +
	"• List my documents\n" +
	"• Create a task to review the benefits policy"

// Assistant answers one query. *agent.Orchestrator implements it.
type Assistant interface {
	ProcessQuery(ctx context.Context, query string) agent.QueryResult
}

// botAPI is the part of *tgbotapi.BotAPI the gateway uses.
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

type TelegramGateway struct {
	Bot       botAPI
	Assistant Assistant
	logger    *observability.Logger
}

var _ Messenger = (*TelegramGateway)(nil)

func NewTelegramGateway(token string, assistant Assistant, logger *observability.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	logger.Zap().Info("telegram authorized", zap.String("account", bot.Self.UserName))
	return newTelegramGateway(bot, assistant, logger), nil
}

func newTelegramGateway(bot botAPI, assistant Assistant, logger *observability.Logger) *TelegramGateway {
	return &TelegramGateway{Bot: bot, Assistant: assistant, logger: logger}
}

// Start answers messages one at a time until ctx ends or the update stream closes.
func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := tg.Bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			tg.Bot.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || update.Message.Chat == nil {
				continue
			}
			tg.handle(ctx, update.Message)
		}
	}
}

func (tg *TelegramGateway) handle(ctx context.Context, m *tgbotapi.Message) {
	text := strings.TrimSpace(m.Text)
	user := ""
	if m.From != nil {
		user = m.From.UserName
	}
	tg.logger.Zap().Info("telegram message", zap.String("user", user), zap.Int64("chat_id", m.Chat.ID), zap.String("text", text))

	var reply string
	switch text {
	case "":
		return
	case "/start", "/help":
		reply = helpText
	default:
		res := tg.Assistant.ProcessQuery(ctx, text)
		reply = agent.Describe(res)
	}

	if _, err := tg.Bot.Send(tgbotapi.NewMessage(m.Chat.ID, truncate(reply))); err != nil {
		tg.logger.Zap().Warn("telegram send failed", zap.Int64("chat_id", m.Chat.ID), zap.Error(err))
	}
}

func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	msg := tgbotapi.NewMessage(id, truncate(text))
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err = tg.Bot.Send(msg)
	return err
}

func (tg *TelegramGateway) Stop() error {
	tg.Bot.StopReceivingUpdates()
	return nil
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxMessageLength {
		return s
	}
	r := []rune(s)
	return string(r[:maxMessageLength-3]) + "..."
}
