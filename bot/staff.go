package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"campus-cafe/models"
	"campus-cafe/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	cbStaffOrders    = "staff:orders"
	cbStaffDashboard = "staff:dashboard"
	cbStaffAddItem   = "staff:additem"
	cbStaffClear     = "staff:clear"
	cbAddItemCat     = "additem_cat:"
)

// CustomerNotifier is the customer bot as seen from the kitchen.
type CustomerNotifier interface {
	OrderNotifier
	NotifyReady(ctx context.Context, orderID string)
}

type loginState struct {
	Step  string // "email", "password"
	Email string
}

type adderState struct {
	Step  string // "category", "name", "price", "description", "ingredients"
	Input models.MenuItemInput
}

// StaffBot is the kitchen bot (STAFF_TOKEN). Staff log in with their
// back-office email and password, then receive new orders as cards and move
// them along; they can also add menu items.
type StaffBot struct {
	client    *tgbotapi.BotAPI
	api       botAPI
	shop      *services.Shop
	log       *zap.Logger
	loc       *time.Location
	customers CustomerNotifier
	cards     *cardWriter

	mu       sync.Mutex
	sessions map[int64]string // chat -> admin session token
	logins   map[int64]*loginState
	adders   map[int64]*adderState
}

func NewStaffBot(token string, shop *services.Shop, log *zap.Logger) (*StaffBot, error) {
	if token == "" {
		return nil, fmt.Errorf("STAFF_TOKEN not set")
	}
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("staff bot: %w", err)
	}
	a := newStaffBot(client, shop, log)
	a.client = client
	return a, nil
}

func newStaffBot(api botAPI, shop *services.Shop, log *zap.Logger) *StaffBot {
	return &StaffBot{
		api:      api,
		shop:     shop,
		log:      log,
		loc:      time.Local,
		cards:    &cardWriter{api: api, cards: shop.Cards, log: log},
		sessions: make(map[int64]string),
		logins:   make(map[int64]*loginState),
		adders:   make(map[int64]*adderState),
	}
}

// SetCustomerNotifier sets the customer bot so status changes reach customers.
func (a *StaffBot) SetCustomerNotifier(n CustomerNotifier) {
	a.customers = n
}

func (a *StaffBot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.client.GetUpdatesChan(u)
	a.log.Info("staff bot started", zap.String("username", a.client.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			a.client.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			a.handleUpdate(ctx, update)
		}
	}
}

// authenticated resolves the chat's session token; expired sessions are dropped.
func (a *StaffBot) authenticated(ctx context.Context, chatID int64) (string, bool) {
	a.mu.Lock()
	token, ok := a.sessions[chatID]
	a.mu.Unlock()
	if !ok {
		return "", false
	}
	email, ok, err := a.shop.Credentials.Authenticate(ctx, token)
	if err != nil {
		a.log.Warn("authenticate staff chat", zap.Int64("chat_id", chatID), zap.Error(err))
		return "", false
	}
	if !ok {
		a.mu.Lock()
		delete(a.sessions, chatID)
		a.mu.Unlock()
		return "", false
	}
	return email, true
}

func (a *StaffBot) cancelFlows(chatID int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, inLogin := a.logins[chatID]
	_, inAdder := a.adders[chatID]
	delete(a.logins, chatID)
	delete(a.adders, chatID)
	return inLogin || inAdder
}

func (a *StaffBot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		a.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	if text == "/cancel" {
		if a.cancelFlows(chatID) {
			a.cards.send(chatID, "Cancelled.")
		}
		return
	}

	if _, ok := a.authenticated(ctx, chatID); !ok {
		a.handleLoginStep(ctx, msg, text)
		return
	}

	if a.handleAdderStep(ctx, chatID, text) {
		return
	}

	switch text {
	case "/orders":
		a.sendOpenOrders(ctx, chatID)
	case "/dashboard":
		a.sendDashboard(ctx, chatID)
	case "/additem":
		a.startAdder(chatID)
	case "/clear":
		a.clearTerminal(ctx, chatID)
	case "/logout":
		a.logout(ctx, chatID)
	default:
		a.sendPanel(chatID)
	}
}

// handleLoginStep: email -> password. The password message is deleted from the chat.
func (a *StaffBot) handleLoginStep(ctx context.Context, msg *tgbotapi.Message, text string) {
	chatID := msg.Chat.ID
	a.mu.Lock()
	st := a.logins[chatID]
	if st == nil || text == "/start" {
		st = &loginState{Step: "email"}
		a.logins[chatID] = st
		a.mu.Unlock()
		a.cards.send(chatID, "🔒 Staff panel. Send your email to log in.")
		return
	}
	a.mu.Unlock()

	switch st.Step {
	case "email":
		if text == "" {
			a.cards.send(chatID, "Send your email to log in.")
			return
		}
		st.Email = text
		st.Step = "password"
		a.cards.send(chatID, "Now send your password.")
	case "password":
		if _, err := a.api.Request(tgbotapi.NewDeleteMessage(chatID, msg.MessageID)); err != nil {
			a.log.Debug("delete password message", zap.Error(err))
		}
		token, err := a.shop.Credentials.Login(ctx, st.Email, text)
		var te *services.ThrottledError
		switch {
		case errors.As(err, &te):
			a.cards.send(chatID, fmt.Sprintf("⏳ Too many failed attempts. Try again in %d seconds.", te.WaitSeconds))
			return
		case errors.Is(err, services.ErrUnauthorized):
			st.Step = "email"
			st.Email = ""
			a.cards.send(chatID, "❌ Wrong email or password. Send your email to try again.")
			return
		case err != nil:
			a.log.Error("staff login", zap.Error(err))
			a.cards.send(chatID, "Something went wrong, please try again.")
			return
		}
		a.mu.Lock()
		a.sessions[chatID] = token
		delete(a.logins, chatID)
		a.mu.Unlock()
		a.cards.send(chatID, "✅ Logged in. New orders will show up here.")
		a.sendPanel(chatID)
	}
}

func (a *StaffBot) logout(ctx context.Context, chatID int64) {
	a.mu.Lock()
	token := a.sessions[chatID]
	delete(a.sessions, chatID)
	a.mu.Unlock()
	if err := a.shop.Credentials.Logout(ctx, token); err != nil {
		a.log.Warn("staff logout", zap.Error(err))
	}
	a.cards.send(chatID, "👋 Logged out.")
}

func (a *StaffBot) sendPanel(chatID int64) {
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Open orders", cbStaffOrders),
			tgbotapi.NewInlineKeyboardButtonData("📊 Dashboard", cbStaffDashboard),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Add menu item", cbStaffAddItem),
			tgbotapi.NewInlineKeyboardButtonData("🧹 Clear finished", cbStaffClear),
		),
	)
	a.cards.sendWithInline(chatID, "Staff panel", kb)
}

// sendOpenOrders posts a card for every pending or ready order, oldest first.
func (a *StaffBot) sendOpenOrders(ctx context.Context, chatID int64) {
	groups, err := a.shop.Backoffice.Orders(ctx, services.ListFilter{})
	if err != nil {
		a.log.Error("list orders", zap.Error(err))
		a.cards.send(chatID, "Orders are unavailable right now.")
		return
	}
	var open []services.OrderGroup
	for _, g := range groups {
		if g.Status == models.StatusPending || g.Status == models.StatusReady {
			open = append(open, g)
		}
	}
	if len(open) == 0 {
		a.cards.send(chatID, "No open orders. 🎉")
		return
	}
	sort.SliceStable(open, func(i, j int) bool { return open[i].OrderTime.Before(open[j].OrderTime) })
	audience := services.StaffAudience(chatID)
	for _, g := range open {
		unlock := a.cards.lock(g.ID)
		a.cards.post(ctx, g.ID, audience, chatID, services.BuildStaffCard(g, a.loc))
		unlock()
	}
}

func (a *StaffBot) sendDashboard(ctx context.Context, chatID int64) {
	d, err := a.shop.Backoffice.Dashboard(ctx)
	if err != nil {
		a.log.Error("dashboard", zap.Error(err))
		a.cards.send(chatID, "Dashboard is unavailable right now.")
		return
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 Orders: %d (pending %d, ready %d)\n", d.TotalOrders, d.PendingOrders, d.ReadyOrders)
	fmt.Fprintf(&sb, "💵 Revenue: KSh %s\n", d.Revenue)
	fmt.Fprintf(&sb, "🍽 Menu items: %d\n", d.MenuItems)
	for _, c := range d.Categories {
		fmt.Fprintf(&sb, "   %s: %d\n", models.CategoryLabel(c.Category), c.Count)
	}
	fmt.Fprintf(&sb, "✉️ Unread messages: %d", d.UnreadMessages)
	a.cards.send(chatID, sb.String())
}

func (a *StaffBot) clearTerminal(ctx context.Context, chatID int64) {
	groups, err := a.shop.Backoffice.Orders(ctx, services.ListFilter{})
	if err != nil {
		a.log.Error("list orders", zap.Error(err))
		a.cards.send(chatID, "Orders are unavailable right now.")
		return
	}
	n, err := a.shop.Backoffice.ClearTerminal(ctx)
	if err != nil {
		a.log.Error("clear orders", zap.Error(err))
		a.cards.send(chatID, "Could not clear orders, please try again.")
		return
	}
	for _, g := range groups {
		if !services.IsTerminal(g.Status) {
			continue
		}
		if err := a.shop.Cards.Forget(ctx, g.ID); err != nil {
			a.log.Warn("forget card pointers", zap.String("order_id", g.ID), zap.Error(err))
		}
	}
	a.cards.send(chatID, fmt.Sprintf("🧹 Removed %d completed or cancelled order records.", n))
}

func (a *StaffBot) startAdder(chatID int64) {
	a.mu.Lock()
	a.adders[chatID] = &adderState{Step: "category"}
	a.mu.Unlock()
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range models.Categories {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(models.CategoryLabel(c), cbAddItemCat+c)))
	}
	a.cards.sendWithInline(chatID, "Pick a category for the new item (/cancel to stop).", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// handleAdderStep runs category -> name -> price -> description -> ingredients.
func (a *StaffBot) handleAdderStep(ctx context.Context, chatID int64, text string) bool {
	a.mu.Lock()
	st := a.adders[chatID]
	a.mu.Unlock()
	if st == nil || st.Step == "category" {
		return false
	}

	switch st.Step {
	case "name":
		if text == "" {
			a.cards.send(chatID, "Send the item name.")
			return true
		}
		st.Input.Name = text
		st.Step = "price"
		a.cards.send(chatID, "💰 Price in KSh (e.g. 120):")
	case "price":
		p, err := decimal.NewFromString(text)
		if err != nil || p.IsNegative() {
			a.cards.send(chatID, "Please send a valid price, e.g. 120 or 85.50.")
			return true
		}
		st.Input.Price = text
		st.Step = "description"
		a.cards.send(chatID, "📝 Short description:")
	case "description":
		if text == "" {
			a.cards.send(chatID, "Send a short description.")
			return true
		}
		st.Input.Description = text
		st.Step = "ingredients"
		a.cards.send(chatID, "🥕 Ingredients, one per line, or /skip.")
	case "ingredients":
		if text != "/skip" {
			st.Input.Ingredients = text
		}
		a.mu.Lock()
		delete(a.adders, chatID)
		a.mu.Unlock()
		item, err := a.shop.Menu.Create(ctx, st.Input)
		var ve *models.ValidationError
		switch {
		case errors.As(err, &ve):
			a.cards.send(chatID, "⚠️ "+ve.Message+". Use /additem to start again.")
		case err != nil:
			a.log.Error("create menu item", zap.Error(err))
			a.cards.send(chatID, "Could not save the item, please try again.")
		default:
			a.log.Info("menu item added from staff bot", zap.String("item_id", item.ID), zap.Int64("chat_id", chatID))
			a.cards.send(chatID, fmt.Sprintf("✅ Added %s (KSh %s) to %s.", item.Name, services.FormatAmount(item.PriceDecimal()), models.CategoryLabel(item.Category)))
		}
	}
	return true
}

func (a *StaffBot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	chatID, data := cq.Message.Chat.ID, cq.Data
	if _, ok := a.authenticated(ctx, chatID); !ok {
		a.cards.answer(cq.ID, "Please log in first.")
		return
	}

	switch {
	case data == cbStaffOrders:
		a.cards.answer(cq.ID, "")
		a.sendOpenOrders(ctx, chatID)
	case data == cbStaffDashboard:
		a.cards.answer(cq.ID, "")
		a.sendDashboard(ctx, chatID)
	case data == cbStaffAddItem:
		a.cards.answer(cq.ID, "")
		a.startAdder(chatID)
	case data == cbStaffClear:
		a.cards.answer(cq.ID, "")
		a.clearTerminal(ctx, chatID)
	case strings.HasPrefix(data, cbAddItemCat):
		category := strings.TrimPrefix(data, cbAddItemCat)
		a.mu.Lock()
		st := a.adders[chatID]
		if st != nil && st.Step == "category" && models.ValidCategory(category) {
			st.Input.Category = category
			st.Step = "name"
		} else {
			st = nil
		}
		a.mu.Unlock()
		a.cards.answer(cq.ID, "")
		if st != nil {
			a.cards.send(chatID, "🍽 "+models.CategoryLabel(category)+". Send the item name:")
		}
	case strings.HasPrefix(data, services.CallbackOrderStatus):
		a.handleStatusCallback(ctx, cq)
	default:
		a.cards.answer(cq.ID, "")
	}
}

func (a *StaffBot) handleStatusCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	id, status, ok := services.ParseStaffCallback(cq.Data)
	if !ok {
		a.cards.answer(cq.ID, "Unknown action.")
		return
	}
	var fn func(ctx context.Context, id string) (*services.OrderGroup, bool, error)
	switch status {
	case models.StatusReady:
		fn = a.shop.Backoffice.MarkReady
	case models.StatusCancelled:
		fn = a.shop.Backoffice.Cancel
	case models.StatusCompleted:
		fn = a.shop.Backoffice.Complete
	default:
		a.cards.answer(cq.ID, "Unknown action.")
		return
	}

	_, found, err := fn(ctx, id)
	switch {
	case errors.Is(err, services.ErrInvalidTransition):
		a.cards.answer(cq.ID, "This order was already updated.")
		a.NotifyOrder(ctx, id)
		return
	case err != nil:
		a.log.Error("update order status", zap.String("order_id", id), zap.String("status", string(status)), zap.Error(err))
		a.cards.answer(cq.ID, "Something went wrong, please try again.")
		return
	case !found:
		a.cards.answer(cq.ID, "Order not found. It may have been cleared.")
		edit := tgbotapi.NewEditMessageReplyMarkup(cq.Message.Chat.ID, cq.Message.MessageID, *emptyMarkup())
		if _, err := a.api.Send(edit); err != nil {
			a.log.Debug("drop stale buttons", zap.Error(err))
		}
		return
	}
	a.cards.answer(cq.ID, services.StatusLabel(status))
	a.NotifyOrder(ctx, id)
	if a.customers != nil {
		a.customers.NotifyOrder(ctx, id)
		if status == models.StatusReady {
			a.customers.NotifyReady(ctx, id)
		}
	}
}

// staffChats returns chats with a live staff session.
func (a *StaffBot) staffChats(ctx context.Context) []int64 {
	a.mu.Lock()
	chats := make([]int64, 0, len(a.sessions))
	for chatID := range a.sessions {
		chats = append(chats, chatID)
	}
	a.mu.Unlock()
	live := chats[:0]
	for _, chatID := range chats {
		if _, ok := a.authenticated(ctx, chatID); ok {
			live = append(live, chatID)
		}
	}
	return live
}

// NotifyOrder shows the order's current card in every logged-in staff chat:
// a new card for a new order, an edit for a known one.
func (a *StaffBot) NotifyOrder(ctx context.Context, orderID string) {
	g, ok, err := a.shop.Backoffice.Order(ctx, orderID)
	if err != nil || !ok {
		return
	}
	content := services.BuildStaffCard(*g, a.loc)
	unlock := a.cards.lock(orderID)
	defer unlock()
	for _, chatID := range a.staffChats(ctx) {
		a.cards.upsert(ctx, orderID, services.StaffAudience(chatID), chatID, content)
	}
}
