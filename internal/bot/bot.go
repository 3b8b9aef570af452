package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okhomyn/eventbot/config"
	"github.com/okhomyn/eventbot/internal/domain"
	"github.com/okhomyn/eventbot/internal/service"
	"github.com/okhomyn/eventbot/internal/storage"
)

type Bot struct {
	api           *tgbotapi.BotAPI
	cfg           *config.Config
	storage       *storage.Storage
	eventService  *service.EventService
	exportService *service.ExportService
	statsService  *service.StatsService

	// Drafts awaiting "create anyway" confirmation after a conflict
	// warning, keyed by chat.
	pendingMu     sync.Mutex
	pendingCreate map[int64]*domain.Event
}

func New(cfg *config.Config, storage *storage.Storage, eventSvc *service.EventService, exportSvc *service.ExportService, statsSvc *service.StatsService) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(cfg.TelegramToken, tgbotapi.APIEndpoint, &http.Client{
		// Bounded so a hung Telegram call cannot stall a reminder tick.
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("Authorized as @%s", api.Self.UserName)

	bot := &Bot{
		api:           api,
		cfg:           cfg,
		storage:       storage,
		eventService:  eventSvc,
		exportService: exportSvc,
		statsService:  statsSvc,
		pendingCreate: make(map[int64]*domain.Event),
	}

	bot.setCommands()

	return bot, nil
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "add", Description: "➕ Добавить событие"},
		{Command: "list", Description: "📋 Все события"},
		{Command: "today", Description: "📅 События на сегодня"},
		{Command: "week", Description: "🗓 События на неделю"},
		{Command: "done", Description: "✅ Завершить событие"},
		{Command: "delete", Description: "🗑 Удалить событие"},
		{Command: "edit", Description: "✏️ Изменить событие"},
		{Command: "stats", Description: "📊 Статистика"},
		{Command: "export", Description: "📤 Экспорт (csv/ics)"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-updates:
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop(ctx context.Context) error {
	b.api.StopReceivingUpdates()
	return nil
}

// SendMessage delivers a rendered message to a chat. This is the dispatch
// boundary the scheduler uses; the error is opaque to callers.
func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) SendMessageWithKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	msg.ReplyMarkup = keyboard
	_, err := b.api.Send(msg)
	return err
}

// SendDocument delivers an in-memory file to a chat.
func (b *Bot) SendDocument(chatID int64, filename string, data []byte) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: filename, Bytes: data})
	_, err := b.api.Send(doc)
	return err
}
