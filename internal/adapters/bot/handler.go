package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"manga-bookmark-bot/internal/adapters/telegram"
	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/metrics"
	"manga-bookmark-bot/internal/usecase/credentials"
	"manga-bookmark-bot/internal/usecase/schedule"
)

// API описывает часть Bot API, которой пользуется обработчик.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// BookmarkReader отдаёт закладки пользователя.
type BookmarkReader interface {
	ListBookmarks(ctx context.Context, chatID int64, websiteID *int64) ([]domain.Bookmark, error)
	RecentBookmarks(ctx context.Context, chatID int64, window time.Duration) ([]domain.Bookmark, error)
}

// CredentialSaver сохраняет учётные данные аккаунта.
type CredentialSaver interface {
	SaveCredentials(ctx context.Context, chatID, websiteID int64, login, password domain.Secret) (domain.Account, error)
}

// Updater запускает ручную синхронизацию пользователя.
type Updater interface {
	ManualUpdate(ctx context.Context, chatID int64) (domain.RunReport, error)
}

// NotificationTimeSetter сохраняет время уведомлений.
type NotificationTimeSetter interface {
	UpdateNotificationTime(ctx context.Context, chatID int64, raw string) error
}

// Deps собирает зависимости обработчика.
type Deps struct {
	Users     domain.UserRepo
	Websites  domain.WebsiteRepo
	Bookmarks BookmarkReader
	Creds     CredentialSaver
	Updater   Updater
	Schedule  NotificationTimeSetter
}

type loginStep int

const (
	stepLogin loginStep = iota + 1
	stepPassword
)

// loginState хранит незавершённый диалог /login. Логин живёт только в памяти до получения пароля.
type loginState struct {
	website domain.Website
	step    loginStep
	login   domain.Secret
}

// Handler обслуживает вебхук бота.
type Handler struct {
	bot     API
	log     zerolog.Logger
	deps    Deps
	mu      sync.Mutex
	pending map[int64]*loginState
}

// NewHandler создаёт обработчик.
func NewHandler(bot API, log zerolog.Logger, deps Deps) *Handler {
	return &Handler{
		bot:     bot,
		log:     log.With().Str("component", "bot").Logger(),
		deps:    deps,
		pending: make(map[int64]*loginState),
	}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message != nil {
		h.handleMessage(ctx, upd.Message)
	} else if upd.CallbackQuery != nil {
		h.handleCallback(ctx, upd.CallbackQuery)
	}
}

func (h *Handler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	if text != "/cancel" && h.continueLogin(ctx, msg) {
		return
	}
	if !strings.HasPrefix(text, "/") {
		h.reply(chatID, "Unknown command. Use /help", nil)
		return
	}

	command, payload := splitCommand(text)
	if command != "/login" {
		h.dropLogin(chatID)
	}
	switch command {
	case "/start":
		h.handleStart(ctx, chatID)
	case "/help":
		h.reply(chatID, helpMessage, mainKeyboard())
	case "/bookmarks":
		h.handleBookmarks(ctx, chatID, payload)
	case "/recent":
		h.handleRecent(ctx, chatID)
	case "/update":
		h.handleUpdateNow(ctx, chatID)
	case "/login":
		h.handleLogin(ctx, chatID, payload)
	case "/cancel":
		h.reply(chatID, "Cancelled.", nil)
	case "/enable":
		h.handleActive(ctx, chatID, true)
	case "/disable":
		h.handleActive(ctx, chatID, false)
	case "/time":
		h.handleTime(ctx, chatID, payload)
	case "/sites":
		h.handleSites(ctx, chatID)
	default:
		h.reply(chatID, "Unknown command. Use /help", nil)
	}
}

func (h *Handler) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	switch cb.Data {
	case "bookmarks":
		h.handleBookmarks(ctx, chatID, "")
	case "recent":
		h.handleRecent(ctx, chatID)
	case "update":
		h.handleUpdateNow(ctx, chatID)
	case "help":
		h.reply(chatID, helpMessage, mainKeyboard())
	}
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewCallback(cb.ID, ""))
	metrics.ObserveNetworkRequest("telegram_bot", "answer_callback", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		h.log.Error().Err(err).Msg("не удалось ответить на callback")
	}
}

func (h *Handler) handleStart(ctx context.Context, chatID int64) {
	user, created, err := h.deps.Users.UpsertUser(ctx, chatID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось сохранить пользователя")
		h.reply(chatID, "Something went wrong, try again later.", nil)
		return
	}
	greeting := "Welcome back! Notifications are enabled again.\n" + lastUpdateLine(user)
	if created {
		greeting = "Welcome! I track your manga bookmarks and tell you about new chapters."
	}
	h.reply(chatID, greeting+"\n\n"+helpMessage, mainKeyboard())
}

func (h *Handler) handleBookmarks(ctx context.Context, chatID int64, siteName string) {
	var websiteID *int64
	header := "Your bookmarks"
	if siteName != "" {
		site, err := h.deps.Websites.GetWebsiteByName(ctx, siteName)
		if err != nil {
			h.replyWebsiteError(chatID, err)
			return
		}
		websiteID = &site.ID
		header = "Your bookmarks on " + site.Name
	}
	list, err := h.deps.Bookmarks.ListBookmarks(ctx, chatID, websiteID)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось получить закладки")
		h.reply(chatID, "Something went wrong, try again later.", nil)
		return
	}
	if len(list) == 0 {
		h.reply(chatID, "No bookmarks yet. Connect an account with /login <site> and run /update.", nil)
		return
	}
	h.replyHTML(chatID, telegram.FormatBookmarks(header, list))
}

func (h *Handler) handleRecent(ctx context.Context, chatID int64) {
	list, err := h.deps.Bookmarks.RecentBookmarks(ctx, chatID, 0)
	if err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось получить свежие закладки")
		h.reply(chatID, "Something went wrong, try again later.", nil)
		return
	}
	if len(list) == 0 {
		h.reply(chatID, "No new chapters in the last 24 hours.", nil)
		return
	}
	h.replyHTML(chatID, telegram.FormatBookmarks("New chapters", list))
}

func (h *Handler) handleUpdateNow(ctx context.Context, chatID int64) {
	h.reply(chatID, "Updating your bookmarks, this can take a minute...", nil)
	report, err := h.deps.Updater.ManualUpdate(ctx, chatID)
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		h.reply(chatID, "Send /start first.", nil)
		return
	case err != nil:
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("ручное обновление не выполнено")
		h.reply(chatID, updateFailedMessage, nil)
		return
	}
	if len(report.Accounts) == 0 {
		h.reply(chatID, "You have no connected accounts. Use /login <site>.", nil)
		return
	}
	if report.Succeeded == 0 {
		if report.Skipped > 0 && report.Failed == 0 {
			h.reply(chatID, "An update is already running, try again in a few minutes.", nil)
			return
		}
		h.reply(chatID, updateFailedMessage, nil)
		return
	}

	summary := fmt.Sprintf("Updated %d of %d account(s).", report.Succeeded, len(report.Accounts))
	if report.Failed > 0 {
		summary += " Some accounts failed, try again later."
	}
	h.reply(chatID, summary, nil)
	h.handleRecent(ctx, chatID)
}

func (h *Handler) handleLogin(ctx context.Context, chatID int64, siteName string) {
	if siteName == "" {
		h.reply(chatID, "Usage: /login <site>. Supported sites: /sites", nil)
		return
	}
	site, err := h.deps.Websites.GetWebsiteByName(ctx, siteName)
	if err != nil {
		h.replyWebsiteError(chatID, err)
		return
	}
	h.mu.Lock()
	h.pending[chatID] = &loginState{website: site, step: stepLogin}
	h.mu.Unlock()
	h.reply(chatID, fmt.Sprintf("Send your login for %s. Use /cancel to stop.", site.Name), nil)
}

// continueLogin обрабатывает ответы диалога /login. Возвращает false, если диалога нет.
// На шаге пароля любой текст считается паролем, даже если начинается с «/».
func (h *Handler) continueLogin(ctx context.Context, msg *tgbotapi.Message) bool {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)
	h.mu.Lock()
	state, ok := h.pending[chatID]
	if !ok || (state.step == stepLogin && strings.HasPrefix(text, "/")) {
		h.mu.Unlock()
		return false
	}
	value := domain.NewSecret(text)
	if state.step == stepLogin {
		state.login = value
		state.step = stepPassword
		h.mu.Unlock()
		h.reply(chatID, "Now send your password. I will delete the message right away.", nil)
		return true
	}
	delete(h.pending, chatID)
	h.mu.Unlock()

	h.deleteMessage(chatID, msg.MessageID)
	_, err := h.deps.Creds.SaveCredentials(ctx, chatID, state.website.ID, state.login, value)
	switch {
	case err == nil:
		h.reply(chatID, fmt.Sprintf("Account for %s saved. Run /update to fetch your bookmarks.", state.website.Name), nil)
	case errors.Is(err, credentials.ErrEmptyCredentials):
		h.reply(chatID, "Login and password must not be empty. Start again with /login.", nil)
	case errors.Is(err, domain.ErrUserNotFound):
		h.reply(chatID, "Send /start first.", nil)
	default:
		h.log.Error().Err(err).Int64("chat_id", chatID).Str("website", state.website.Name).Msg("не удалось сохранить учётные данные")
		h.reply(chatID, "Could not save the account, try again later.", nil)
	}
	return true
}

func (h *Handler) dropLogin(chatID int64) {
	h.mu.Lock()
	delete(h.pending, chatID)
	h.mu.Unlock()
}

func (h *Handler) handleActive(ctx context.Context, chatID int64, active bool) {
	if err := h.deps.Users.SetActive(ctx, chatID, active); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			h.reply(chatID, "Send /start first.", nil)
			return
		}
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось изменить статус пользователя")
		h.reply(chatID, "Something went wrong, try again later.", nil)
		return
	}
	if active {
		h.reply(chatID, "Scheduled updates enabled.", nil)
		return
	}
	h.reply(chatID, "Scheduled updates disabled. /update still works.", nil)
}

func (h *Handler) handleTime(ctx context.Context, chatID int64, payload string) {
	if payload == "" {
		h.reply(chatID, "Usage: /time HH:MM", nil)
		return
	}
	err := h.deps.Schedule.UpdateNotificationTime(ctx, chatID, payload)
	switch {
	case err == nil:
		h.reply(chatID, "Notification time saved.", nil)
	case errors.Is(err, schedule.ErrInvalidNotificationTime):
		h.reply(chatID, "Use the HH:MM format, for example /time 09:30", nil)
	case errors.Is(err, domain.ErrUserNotFound):
		h.reply(chatID, "Send /start first.", nil)
	default:
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось сохранить время уведомлений")
		h.reply(chatID, "Something went wrong, try again later.", nil)
	}
}

func (h *Handler) handleSites(ctx context.Context, chatID int64) {
	sites, err := h.deps.Websites.ListWebsites(ctx)
	if err != nil || len(sites) == 0 {
		h.reply(chatID, "No supported sites right now.", nil)
		return
	}
	lines := make([]string, 0, len(sites)+1)
	lines = append(lines, "Supported sites:")
	for _, site := range sites {
		lines = append(lines, fmt.Sprintf("• %s (%s)", site.Name, site.Link))
	}
	h.reply(chatID, strings.Join(lines, "\n"), nil)
}

func (h *Handler) replyWebsiteError(chatID int64, err error) {
	if errors.Is(err, domain.ErrWebsiteNotFound) {
		h.reply(chatID, "Unknown site. See /sites for the supported list.", nil)
		return
	}
	h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось найти сайт")
	h.reply(chatID, "Something went wrong, try again later.", nil)
}

func (h *Handler) reply(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	parts := telegram.SplitMessage(text)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == 0 && keyboard != nil {
			msg.ReplyMarkup = keyboard
		}
		start := time.Now()
		_, err := h.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(chatID, 10), start, err)
		if err != nil {
			metrics.BotSendErrors.Inc()
			h.log.Error().Err(err).Msg("не удалось отправить сообщение")
			return
		}
	}
}

func (h *Handler) replyHTML(chatID int64, text string) {
	if err := telegram.SendHTML(context.Background(), h.bot, chatID, text); err != nil {
		h.log.Error().Err(err).Msg("не удалось отправить сообщение")
	}
}

func (h *Handler) deleteMessage(chatID int64, messageID int) {
	start := time.Now()
	_, err := h.bot.Request(tgbotapi.NewDeleteMessage(chatID, messageID))
	metrics.ObserveNetworkRequest("telegram_bot", "delete_message", strconv.FormatInt(chatID, 10), start, err)
	if err != nil {
		h.log.Warn().Err(err).Int64("chat_id", chatID).Msg("не удалось удалить сообщение с паролем")
	}
}

func lastUpdateLine(user domain.User) string {
	if user.LastUpdate == nil {
		return "Last update: not yet, run /update."
	}
	return "Last update: " + user.LastUpdate.UTC().Format("2006-01-02 15:04 UTC")
}

func splitCommand(text string) (string, string) {
	command, payload, _ := strings.Cut(text, " ")
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	return strings.ToLower(command), strings.TrimSpace(payload)
}

const updateFailedMessage = "Update failed, try again later."

const helpMessage = `Commands:
/login <site> – connect an account
/sites – supported sites
/bookmarks [site] – all bookmarks
/recent – chapters from the last 24 hours
/update – refresh now
/enable, /disable – scheduled updates
/time HH:MM – preferred notification time
/cancel – stop the current dialog`

func mainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	buttons := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 Bookmarks", "bookmarks"),
			tgbotapi.NewInlineKeyboardButtonData("🆕 Recent", "recent"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Update", "update"),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Help", "help"),
		),
	)
	return &buttons
}
