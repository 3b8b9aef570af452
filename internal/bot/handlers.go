package bot

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/okhomyn/eventbot/internal/domain"
	"github.com/okhomyn/eventbot/internal/service"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message != nil {
		b.handleMessage(update.Message)
	} else if update.CallbackQuery != nil {
		b.handleCallback(update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	user, err := b.storage.GetUserByTelegramID(msg.From.ID)
	if err != nil {
		log.Printf("Error getting user: %v", err)
		return
	}

	if user == nil {
		user = b.registerUser(msg.From)
		if user == nil {
			return
		}
		b.SendMessage(chatID, fmt.Sprintf("👋 Привет, %s! Я буду напоминать о твоих событиях.\n\n/help — список команд", user.DisplayName()))
	}

	if msg.Document != nil {
		b.handleDocument(msg, user)
		return
	}

	if !msg.IsCommand() {
		return
	}

	switch msg.Command() {
	case "start":
		b.SendMessage(chatID, "📅 Я бот-напоминалка. /help — список команд")
	case "help":
		b.sendHelp(chatID)
	case "add":
		b.handleAdd(chatID, user, msg.CommandArguments())
	case "list":
		b.showList(chatID, user)
	case "today":
		b.showUpcoming(chatID, user, 0)
	case "week":
		b.showUpcoming(chatID, user, 7)
	case "done":
		b.handleDone(chatID, user, msg.CommandArguments())
	case "delete":
		b.handleDelete(chatID, user, msg.CommandArguments())
	case "edit":
		b.handleEdit(chatID, user, msg.CommandArguments())
	case "stats":
		b.handleStats(chatID, user, msg.CommandArguments())
	case "export":
		b.handleExport(chatID, user, msg.CommandArguments())
	default:
		b.SendMessage(chatID, "Не знаю такую команду. /help")
	}
}

func (b *Bot) registerUser(from *tgbotapi.User) *domain.User {
	newUser := &domain.User{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	}

	if err := b.storage.CreateUser(newUser); err != nil {
		log.Printf("Error registering user: %v", err)
		return nil
	}

	log.Printf("Registered user %s (ID: %d)", newUser.DisplayName(), from.ID)
	return newUser
}

func (b *Bot) sendHelp(chatID int64) {
	b.SendMessage(chatID, `<b>Команды:</b>
/add ДД.ММ.ГГГГ [ЧЧ:ММ] название — добавить событие
/list — все события
/today — события на сегодня
/week — события на неделю
/done N — завершить событие
/delete N — удалить событие
/edit N поле значение — изменить (title/date/time/remind/category/tag/repeat)
/stats week|month|year|all — статистика
/export csv|ics — выгрузка файла

Пришли .ics файл — импортирую события из него.`)
}

// handleAdd parses "/add DD.MM.YYYY [HH:MM] title". On a schedule conflict
// the draft is parked and the user is asked to confirm.
func (b *Bot) handleAdd(chatID int64, user *domain.User, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.SendMessage(chatID, "Формат: /add ДД.ММ.ГГГГ [ЧЧ:ММ] название")
		return
	}

	date, err := time.Parse("02.01.2006", fields[0])
	if err != nil {
		b.SendMessage(chatID, "⚠️ Неверная дата, нужен формат ДД.ММ.ГГГГ")
		return
	}
	fields = fields[1:]

	var timeOfDay *string
	if t, err := time.Parse("15:04", fields[0]); err == nil {
		s := t.Format("15:04")
		timeOfDay = &s
		fields = fields[1:]
	}

	title := strings.TrimSpace(strings.Join(fields, " "))
	if title == "" {
		b.SendMessage(chatID, "⚠️ У события должно быть название")
		return
	}

	draft := &domain.Event{
		UserID:       user.ID,
		Title:        title,
		Date:         date,
		TimeOfDay:    timeOfDay,
		RemindBefore: b.cfg.DefaultRemindBefore,
		Repeat:       domain.RepeatNone,
	}

	report, err := b.eventService.CheckConflicts(user.ID, draft)
	if err != nil {
		log.Printf("Error checking conflicts: %v", err)
		b.SendMessage(chatID, "⚠️ Не получилось проверить расписание, попробуй ещё раз")
		return
	}

	if report.HasConflict() {
		b.pendingMu.Lock()
		b.pendingCreate[chatID] = draft
		b.pendingMu.Unlock()

		text := "⏱ Рядом уже есть события:\n"
		for _, e := range report.Conflicting {
			text += fmt.Sprintf("• %s в %s\n", e.Title, e.FormatTime())
		}
		text += "\nВсё равно создать?"

		kb := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Создать", "create_confirm"),
				tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "create_cancel"),
			),
		)
		b.SendMessageWithKeyboard(chatID, text, kb)
		return
	}

	b.createEvent(chatID, user, draft, report)
}

func (b *Bot) createEvent(chatID int64, user *domain.User, draft *domain.Event, report *service.ConflictReport) {
	created, err := b.eventService.Create(user.ID, draft)
	if err != nil {
		log.Printf("Error creating event: %v", err)
		b.SendMessage(chatID, "⚠️ Не получилось сохранить событие")
		return
	}

	text := fmt.Sprintf("✅ Событие #%d сохранено: <b>%s</b> %s %s", created.ID, created.Title, created.FormatDate(), created.FormatTime())

	var advice []string
	if report != nil && report.BusyDay {
		advice = append(advice, "⚠️ На этот день уже много событий")
	}
	if report != nil && report.DuplicateRecurring {
		advice = append(advice, "🔁 Похожее повторяющееся событие уже есть")
	}
	if len(advice) > 0 {
		text += "\n\n📌 <b>Советы:</b>\n" + strings.Join(advice, "\n")
	}

	b.SendMessage(chatID, text)
}

func (b *Bot) handleCallback(callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID

	user, err := b.storage.GetUserByTelegramID(callback.From.ID)
	if err != nil || user == nil {
		return
	}

	switch callback.Data {
	case "create_confirm":
		b.pendingMu.Lock()
		draft := b.pendingCreate[chatID]
		delete(b.pendingCreate, chatID)
		b.pendingMu.Unlock()

		if draft == nil {
			b.SendMessage(chatID, "Нечего подтверждать")
			break
		}
		b.createEvent(chatID, user, draft, nil)

	case "create_cancel":
		b.pendingMu.Lock()
		delete(b.pendingCreate, chatID)
		b.pendingMu.Unlock()
		b.SendMessage(chatID, "Отменено")
	}

	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("Error answering callback: %v", err)
	}
}

func (b *Bot) showList(chatID int64, user *domain.User) {
	events, err := b.eventService.List(user.ID)
	if err != nil {
		log.Printf("Error listing events: %v", err)
		return
	}
	b.SendMessage(chatID, b.eventService.FormatEventList(events))
}

func (b *Bot) showUpcoming(chatID int64, user *domain.User, daysAhead int) {
	events, err := b.eventService.ListUpcoming(user.ID, time.Now(), daysAhead)
	if err != nil {
		log.Printf("Error listing upcoming events: %v", err)
		return
	}
	b.SendMessage(chatID, b.eventService.FormatEventList(events))
}

func (b *Bot) handleDone(chatID int64, user *domain.User, args string) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		b.SendMessage(chatID, "Формат: /done N")
		return
	}

	if err := b.eventService.MarkDone(id, user.ID); err != nil {
		b.sendEventError(chatID, err)
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("✅ Событие #%d завершено", id))
}

func (b *Bot) handleDelete(chatID int64, user *domain.User, args string) {
	id, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil {
		b.SendMessage(chatID, "Формат: /delete N")
		return
	}

	if err := b.eventService.Delete(id, user.ID); err != nil {
		b.sendEventError(chatID, err)
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("🗑 Событие #%d удалено", id))
}

// handleEdit parses "/edit N field value" and applies the matching typed
// edit. The field token only selects the variant; parsing and validation
// live with each variant.
func (b *Bot) handleEdit(chatID int64, user *domain.User, args string) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 3)
	if len(parts) < 3 {
		b.SendMessage(chatID, "Формат: /edit N поле значение")
		return
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		b.SendMessage(chatID, "Формат: /edit N поле значение")
		return
	}

	var edit domain.EventEdit
	switch parts[1] {
	case "title":
		edit, err = domain.ParseTitleEdit(parts[2])
	case "date":
		edit, err = domain.ParseDateEdit(parts[2])
	case "time":
		edit, err = domain.ParseTimeEdit(parts[2])
	case "remind":
		edit, err = domain.ParseRemindEdit(parts[2])
	case "category":
		edit, err = domain.ParseCategoryEdit(parts[2])
	case "tag":
		edit, err = domain.ParseTagEdit(parts[2])
	case "repeat":
		edit, err = domain.ParseRepeatEdit(parts[2])
	default:
		b.SendMessage(chatID, "Поле: title, date, time, remind, category, tag или repeat")
		return
	}
	if err != nil {
		b.SendMessage(chatID, "⚠️ "+err.Error())
		return
	}

	e, err := b.eventService.Edit(id, user.ID, edit)
	if err != nil {
		b.sendEventError(chatID, err)
		return
	}
	b.SendMessage(chatID, fmt.Sprintf("✏️ Событие #%d обновлено: <b>%s</b> %s %s", e.ID, e.Title, e.FormatDate(), e.FormatTime()))
}

func (b *Bot) handleStats(chatID int64, user *domain.User, args string) {
	period := service.StatsPeriod(strings.TrimSpace(args))
	switch period {
	case service.PeriodWeek, service.PeriodMonth, service.PeriodYear:
	default:
		period = service.PeriodAll
	}

	report, err := b.statsService.Report(user.ID, period, time.Now())
	if err != nil {
		log.Printf("Error building stats: %v", err)
		return
	}
	b.SendMessage(chatID, b.statsService.FormatReport(report, period))
}

func (b *Bot) handleExport(chatID int64, user *domain.User, args string) {
	format := strings.TrimSpace(args)

	var data []byte
	var filename string
	var err error
	switch format {
	case "ics":
		data, err = b.exportService.ExportICS(user.ID)
		filename = "events.ics"
	case "", "csv":
		data, err = b.exportService.ExportCSV(user.ID)
		filename = "events.csv"
	default:
		b.SendMessage(chatID, "Формат: /export csv или /export ics")
		return
	}
	if err != nil {
		log.Printf("Error exporting events: %v", err)
		b.SendMessage(chatID, "⚠️ Не получилось собрать файл")
		return
	}

	if err := b.SendDocument(chatID, filename, data); err != nil {
		log.Printf("Error sending export: %v", err)
	}
}

// handleDocument imports events from an uploaded .ics file.
func (b *Bot) handleDocument(msg *tgbotapi.Message, user *domain.User) {
	chatID := msg.Chat.ID

	if !strings.HasSuffix(strings.ToLower(msg.Document.FileName), ".ics") {
		b.SendMessage(chatID, "Импортирую только .ics файлы")
		return
	}

	url, err := b.api.GetFileDirectURL(msg.Document.FileID)
	if err != nil {
		log.Printf("Error resolving file URL: %v", err)
		return
	}

	resp, err := http.Get(url)
	if err != nil {
		log.Printf("Error downloading file: %v", err)
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Printf("Error reading file: %v", err)
		return
	}

	imported, err := b.exportService.ImportICS(user.ID, data, b.cfg.DefaultRemindBefore)
	if err != nil {
		log.Printf("Error importing events: %v", err)
	}
	b.SendMessage(chatID, fmt.Sprintf("📥 Импортировано событий: %d", imported))
}

func (b *Bot) sendEventError(chatID int64, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		b.SendMessage(chatID, "⚠️ Событие не найдено")
	case errors.Is(err, domain.ErrNotOwned):
		b.SendMessage(chatID, "⛔ Это не твоё событие")
	default:
		log.Printf("Event operation error: %v", err)
		b.SendMessage(chatID, "⚠️ Что-то пошло не так, попробуй ещё раз")
	}
}
