package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	app "inspection-brain/internal/application"
	"inspection-brain/internal/domain/entity"
	"inspection-brain/internal/domain/port"
)

const (
	msgHelp = `ℹ️ Бот управления линией контроля.

📋 Команды:
/scan <граммы> — запустить скан вручную
/status — состояние триггера и счётчики сканов
/help — справка`

	msgUnknownCommand = "❓ Неизвестная команда. Используйте /help для справки."
	msgForbidden      = "⛔ Этот чат не может управлять линией."
	msgScanUsage      = "⚠️ Укажите вес в граммах: /scan 150"
	msgScanAccepted   = "⏳ Скан запущен (%.1f г)."
	msgScanCooldown   = "🕒 Скан отклонён: линия на паузе после предыдущего скана."
	msgScanInFlight   = "🔄 Скан отклонён: предыдущий скан ещё идёт."
	msgScanError      = "⚠️ Не удалось запустить скан."
	msgStatusError    = "⚠️ Не удалось получить статус."
)

// Scanner принимает ручные запросы на скан
type Scanner interface {
	Submit(ctx context.Context, req entity.ScanRequest) error
	Busy() bool
}

// TriggerView текущее состояние автомата триггера
type TriggerView interface {
	Snapshot() entity.TriggerSnapshot
}

// Bot представляет Telegram-бота оператора
type Bot struct {
	api     *tgbotapi.BotAPI
	scanner Scanner
	trigger TriggerView
	status  port.StatusRepository
	allowed map[int64]struct{}
	logger  *slog.Logger
}

// NewBot создаёт нового бота. Пустой allowedChats разрешает все чаты.
func NewBot(token string, scanner Scanner, trigger TriggerView, status port.StatusRepository, allowedChats []int64, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	b := newBot(scanner, trigger, status, allowedChats, logger)
	b.api = api
	b.logger.Info("authorized on account", "username", api.Self.UserName)
	return b, nil
}

func newBot(scanner Scanner, trigger TriggerView, status port.StatusRepository, allowedChats []int64, logger *slog.Logger) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[int64]struct{}, len(allowedChats))
	for _, id := range allowedChats {
		allowed[id] = struct{}{}
	}
	return &Bot{
		scanner: scanner,
		trigger: trigger,
		status:  status,
		allowed: allowed,
		logger:  logger.With("component", "telegram"),
	}
}

// Run запускает основной цикл обработки сообщений до отмены ctx
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			msg := update.Message
			reply := b.handleCommand(ctx, msg.Chat.ID, msg.Command(), msg.CommandArguments())
			b.sendMessage(msg.Chat.ID, reply)
		}
	}
}

// handleCommand выполняет команду и возвращает текст ответа
func (b *Bot) handleCommand(ctx context.Context, chatID int64, command, args string) string {
	if !b.chatAllowed(chatID) {
		b.logger.Warn("command from unknown chat", "chat_id", chatID, "command", command)
		return msgForbidden
	}

	switch command {
	case "start", "help":
		return msgHelp
	case "scan":
		return b.scan(ctx, args)
	case "status":
		return b.statusText(ctx)
	default:
		return msgUnknownCommand
	}
}

func (b *Bot) chatAllowed(chatID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[chatID]
	return ok
}

func (b *Bot) scan(ctx context.Context, args string) string {
	weight, err := parseScanArgs(args)
	if err != nil {
		return msgScanUsage
	}
	req, err := entity.NewScanRequest(weight, entity.SourceManual, time.Now())
	if err != nil {
		return msgScanUsage
	}

	err = b.scanner.Submit(ctx, req)
	switch {
	case err == nil:
		b.logger.Info("manual scan accepted", "weight", weight)
		return fmt.Sprintf(msgScanAccepted, weight)
	case errors.Is(err, app.ErrCooldown):
		return msgScanCooldown
	case errors.Is(err, app.ErrScanInFlight):
		return msgScanInFlight
	default:
		b.logger.Error("manual scan submit failed", "error", err)
		return msgScanError
	}
}

// parseScanArgs разбирает "150" или "150.5 г" в граммы.
func parseScanArgs(args string) (float64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, errors.New("weight required")
	}
	weight, err := strconv.ParseFloat(strings.Replace(fields[0], ",", ".", 1), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid weight %q", fields[0])
	}
	if weight <= 0 {
		return 0, fmt.Errorf("weight must be positive, got %v", weight)
	}
	return weight, nil
}

func (b *Bot) statusText(ctx context.Context) string {
	stats, err := b.status.Stats(ctx)
	if err != nil {
		b.logger.Error("stats", "error", err)
		return msgStatusError
	}
	snap := b.trigger.Snapshot()

	var sb strings.Builder
	fmt.Fprintf(&sb, "⚖️ Триггер: %s, стабильный вес %.1f г\n", snap.State, snap.LastStableWeight)
	if b.scanner.Busy() {
		sb.WriteString("🔄 Скан идёт\n")
	}
	fmt.Fprintf(&sb, "📊 Сканов: %d, успешно: %d, с ошибкой: %d, отклонено: %d",
		stats.Started, stats.Completed, stats.Failed, stats.Rejected)
	if stats.LastScanID != "" {
		fmt.Fprintf(&sb, "\n🧾 Последний: %s (%s)", stats.LastScanID, stats.LastOutcome)
	}
	return sb.String()
}

// sendMessage отправляет текстовое сообщение
func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", "chat_id", chatID, "error", err)
	}
}
