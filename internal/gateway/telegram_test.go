package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rahul/workdesk/internal/agent"
	"github.com/rahul/workdesk/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeBot struct {
	updates  chan tgbotapi.Update
	stopOnce sync.Once
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	sendErr  error
}

func newFakeBot() *fakeBot {
	return &fakeBot{updates: make(chan tgbotapi.Update, 8)}
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return b.updates
}

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		b.sent = append(b.sent, msg)
	}
	return tgbotapi.Message{}, b.sendErr
}

func (b *fakeBot) StopReceivingUpdates() {
	b.stopOnce.Do(func() { close(b.updates) })
}

func (b *fakeBot) messages() []tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), b.sent...)
}

type fakeAssistant struct {
	mu      sync.Mutex
	queries []string
}

func (a *fakeAssistant) ProcessQuery(_ context.Context, query string) agent.QueryResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.queries = append(a.queries, query)
	if query == "break" {
		return agent.QueryResult{Error: "Planning failed"}
	}
	return agent.QueryResult{
		SessionID:    "session_0000abcd",
		Success:      true,
		FinalSummary: &agent.FinalSummary{KeyAchievements: []string{"Created task: " + query}},
	}
}

func message(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: chatID},
		From: &tgbotapi.User{UserName: "ana"},
	}}
}

func TestTelegramGateway_AnswersUntilStopped(t *testing.T) {
	defer goleak.VerifyNone(t)

	bot := newFakeBot()
	assistant := &fakeAssistant{}
	gw := newTelegramGateway(bot, assistant, observability.NewNopLogger())

	bot.updates <- message(7, "/start")
	bot.updates <- tgbotapi.Update{}
	bot.updates <- message(7, "   ")
	bot.updates <- message(7, "Review benefits")
	bot.updates <- message(9, "break")

	done := make(chan error, 1)
	go func() { done <- gw.Start(context.Background()) }()

	require.Eventually(t, func() bool { return len(bot.messages()) == 3 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, gw.Stop())
	require.NoError(t, <-done)

	sent := bot.messages()
	assert.Equal(t, helpText, sent[0].Text)
	assert.Equal(t, int64(7), sent[1].ChatID)
	assert.Contains(t, sent[1].Text, "📄 View full results in session: session_0000abcd")
	assert.Contains(t, sent[1].Text, "  • Created task: Review benefits")
	assert.Equal(t, int64(9), sent[2].ChatID)
	assert.Equal(t, "❌ Processing failed: Planning failed\n", sent[2].Text)
	assert.Equal(t, []string{"Review benefits", "break"}, assistant.queries)
}

func TestTelegramGateway_StopsOnContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	bot := newFakeBot()
	gw := newTelegramGateway(bot, &fakeAssistant{}, observability.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("gateway did not stop")
	}
}

func TestTelegramGateway_SendErrorsDoNotStopLoop(t *testing.T) {
	bot := newFakeBot()
	bot.sendErr = errors.New("flood control")
	gw := newTelegramGateway(bot, &fakeAssistant{}, observability.NewNopLogger())

	bot.updates <- message(1, "/help")
	bot.updates <- message(1, "/help")
	bot.StopReceivingUpdates()

	require.NoError(t, gw.Start(context.Background()))
	assert.Len(t, bot.messages(), 2)
}

func TestTelegramGateway_Send(t *testing.T) {
	bot := newFakeBot()
	gw := newTelegramGateway(bot, &fakeAssistant{}, observability.NewNopLogger())

	require.NoError(t, gw.Send("42", "*done*"))
	sent := bot.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdown, sent[0].ParseMode)

	assert.EqualError(t, gw.Send("abc", "x"), "invalid chat ID: abc")
	assert.EqualError(t, gw.Send("0", "x"), "invalid chat ID: 0")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short"))
	long := strings.Repeat("é", maxMessageLength+10)
	got := truncate(long)
	assert.Equal(t, maxMessageLength, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}
