package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"campus-cafe/models"
	"campus-cafe/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Customer-side callback data besides the order card ones in services.
const (
	cbCategory  = "cat:"
	cbAdd       = "add:"
	cbCartInc   = "cart_inc:"
	cbCartDec   = "cart_dec:"
	cbCartRm    = "cart_rm:"
	cbCartClear = "cart_clear"
	cbCheckout  = "checkout"

	categoryAll      = "all"
	categoryFeatured = "featured"
)

const helpText = "/menu - browse the menu\n/cart - your cart\n/checkout - place your order\n/orders - your orders\n/cancel - stop checkout"

type checkoutState struct {
	Step      string // "name", "admission", "notes"
	Code      string
	Name      string
	Admission string
}

// Bot is the customer bot (TOKEN): menu, cart, checkout and order tracking.
// Each Telegram user gets their own session in the shop.
type Bot struct {
	client          *tgbotapi.BotAPI
	api             botAPI
	shop            *services.Shop
	log             *zap.Logger
	loc             *time.Location
	refreshInterval time.Duration
	staff           OrderNotifier
	cards           *cardWriter

	mu         sync.Mutex
	checkouts  map[int64]*checkoutState
	refreshers map[int64]*services.Refresher
}

func New(token string, shop *services.Shop, log *zap.Logger, refreshInterval time.Duration) (*Bot, error) {
	client, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("customer bot: %w", err)
	}
	b := newBot(client, shop, log, refreshInterval)
	b.client = client
	return b, nil
}

func newBot(api botAPI, shop *services.Shop, log *zap.Logger, refreshInterval time.Duration) *Bot {
	return &Bot{
		api:             api,
		shop:            shop,
		log:             log,
		loc:             time.Local,
		refreshInterval: refreshInterval,
		cards:           &cardWriter{api: api, cards: shop.Cards, log: log},
		checkouts:       make(map[int64]*checkoutState),
		refreshers:      make(map[int64]*services.Refresher),
	}
}

// SetStaffNotifier sets where new and changed orders are pushed (the staff bot).
func (b *Bot) SetStaffNotifier(n OrderNotifier) {
	b.staff = n
}

func customerRef(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

func (b *Bot) session(userID int64) *services.Session {
	return b.shop.Session(customerRef(userID))
}

func (b *Bot) setBotCommands() error {
	cfg := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "menu", Description: "Browse the menu"},
		tgbotapi.BotCommand{Command: "cart", Description: "Your cart"},
		tgbotapi.BotCommand{Command: "checkout", Description: "Place your order"},
		tgbotapi.BotCommand{Command: "orders", Description: "Your orders"},
	)
	_, err := b.api.Request(cfg)
	return err
}

// Run polls updates until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.setBotCommands(); err != nil {
		b.log.Warn("set bot commands", zap.Error(err))
	}
	defer b.stopRefreshers()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.client.GetUpdatesChan(u)
	b.log.Info("customer bot started", zap.String("username", b.client.Self.UserName))
	for {
		select {
		case <-ctx.Done():
			b.client.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}
	msg := update.Message
	chatID, userID := msg.Chat.ID, msg.From.ID
	text := strings.TrimSpace(msg.Text)

	if text == "/cancel" {
		if b.clearCheckout(userID) {
			b.cards.send(chatID, "Checkout cancelled. Your cart is unchanged.")
		}
		return
	}
	if b.handleCheckoutStep(ctx, chatID, userID, text) {
		return
	}

	switch text {
	case "/start":
		b.handleStart(ctx, chatID)
	case "/menu":
		b.stopRefresher(chatID)
		b.sendCategories(chatID)
	case "/cart":
		b.stopRefresher(chatID)
		b.sendCart(ctx, chatID, userID, 0)
	case "/checkout":
		b.beginCheckout(ctx, chatID, userID)
	case "/orders":
		b.handleOrders(ctx, chatID, userID)
	default:
		b.cards.send(chatID, helpText)
	}
}

func (b *Bot) handleStart(ctx context.Context, chatID int64) {
	text := "👋 Welcome to Campus Café!\nOrder ahead, pay with M-Pesa and pick up at the counter."
	if st, err := b.shop.Stats.Get(ctx); err == nil {
		text += fmt.Sprintf("\n\n🍽 %d customers served today, %d all time.", st.CustomersServedToday, st.CustomersEverServed)
	}
	text += fmt.Sprintf("\n💸 KSh %s off every order above KSh %s.\n\n", services.DiscountAmount.StringFixed(0), services.DiscountThreshold.StringFixed(0)) + helpText
	b.cards.send(chatID, text)
}

func (b *Bot) sendCategories(chatID int64) {
	var rows [][]tgbotapi.InlineKeyboardButton
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⭐ Featured", cbCategory+categoryFeatured),
		tgbotapi.NewInlineKeyboardButtonData("📋 Everything", cbCategory+categoryAll),
	))
	var row []tgbotapi.InlineKeyboardButton
	for _, c := range models.Categories {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(models.CategoryLabel(c), cbCategory+c))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	b.cards.sendWithInline(chatID, "What would you like?", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) sendCategory(ctx context.Context, chatID int64, category string) {
	var (
		items []models.MenuItem
		err   error
		title string
	)
	switch category {
	case categoryFeatured:
		items, err = b.shop.Menu.Featured(ctx)
		title = "Featured"
	default:
		items, err = b.shop.Menu.ListByCategory(ctx, category)
		title = models.CategoryLabel(category)
		if category == categoryAll {
			title = "Full menu"
		}
	}
	if err != nil {
		b.log.Error("load menu", zap.String("category", category), zap.Error(err))
		b.cards.send(chatID, "The menu is unavailable right now, please try again.")
		return
	}
	if len(items) == 0 {
		b.cards.send(chatID, "Nothing in "+title+" yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString(title + "\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, it := range items {
		price := services.FormatAmount(it.PriceDecimal())
		fmt.Fprintf(&sb, "\n%s · KSh %s\n%s\n", it.Name, price, it.Description)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ "+it.Name, cbAdd+it.ID),
		))
	}
	b.cards.sendWithInline(chatID, strings.TrimRight(sb.String(), "\n"), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func cartView(s services.CartSummary) (string, *tgbotapi.InlineKeyboardMarkup) {
	if len(s.Lines) == 0 {
		return "🛒 Your cart is empty. Use /menu to add items.", nil
	}
	var sb strings.Builder
	sb.WriteString("🛒 Your cart\n\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, l := range s.Lines {
		fmt.Fprintf(&sb, "• %s × %d = KSh %s\n", l.Item.Name, l.Quantity, l.Subtotal)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➖ "+l.Item.Name, cbCartDec+l.Item.ID),
			tgbotapi.NewInlineKeyboardButtonData("➕", cbCartInc+l.Item.ID),
			tgbotapi.NewInlineKeyboardButtonData("🗑", cbCartRm+l.Item.ID),
		))
	}
	fmt.Fprintf(&sb, "\nSubtotal: KSh %s\n", s.Subtotal)
	if s.DiscountApplied {
		fmt.Fprintf(&sb, "Discount: -KSh %s\n", s.Discount)
	}
	fmt.Fprintf(&sb, "Total: KSh %s", s.Total)
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🧹 Clear", cbCartClear),
		tgbotapi.NewInlineKeyboardButtonData("✅ Checkout", cbCheckout),
	))
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return sb.String(), &kb
}

// sendCart shows the cart; with messageID set the existing cart message is edited.
func (b *Bot) sendCart(ctx context.Context, chatID, userID int64, messageID int) {
	summary, err := b.session(userID).Cart.Summary(ctx)
	if err != nil {
		b.log.Error("load cart", zap.Int64("user_id", userID), zap.Error(err))
		b.cards.send(chatID, "Your cart is unavailable right now, please try again.")
		return
	}
	text, kb := cartView(summary)
	if messageID == 0 {
		msg := tgbotapi.NewMessage(chatID, text)
		if kb != nil {
			msg.ReplyMarkup = *kb
		}
		if _, err := b.api.Send(msg); err != nil {
			b.log.Warn("send cart", zap.Error(err))
		}
		return
	}
	if kb == nil {
		kb = emptyMarkup()
	}
	if _, err := b.api.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, *kb)); err != nil && !strings.Contains(err.Error(), "not modified") {
		b.log.Warn("edit cart", zap.Error(err))
	}
}

func (b *Bot) changeQuantity(ctx context.Context, cart *services.Cart, itemID string, delta int) error {
	lines, err := cart.Lines(ctx)
	if err != nil {
		return err
	}
	for _, l := range lines {
		if l.Item.ID != itemID {
			continue
		}
		if q := l.Quantity + delta; q >= 1 {
			_, err = cart.SetQuantity(ctx, itemID, q)
		} else {
			_, err = cart.Remove(ctx, itemID)
		}
		return err
	}
	return nil
}

func (b *Bot) clearCheckout(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.checkouts[userID]
	delete(b.checkouts, userID)
	return ok
}

func (b *Bot) beginCheckout(ctx context.Context, chatID, userID int64) {
	code, err := b.session(userID).Checkout.Begin(ctx)
	if errors.Is(err, services.ErrEmptyCart) {
		b.cards.send(chatID, "🛒 Your cart is empty. Use /menu to add items.")
		return
	}
	if err != nil {
		b.log.Error("begin checkout", zap.Int64("user_id", userID), zap.Error(err))
		b.cards.send(chatID, "Something went wrong, please try again.")
		return
	}
	b.mu.Lock()
	b.checkouts[userID] = &checkoutState{Step: "name", Code: code}
	b.mu.Unlock()
	b.cards.send(chatID, fmt.Sprintf("Your pickup code will be %s.\n\nWhat name should we call at the counter? (/cancel to stop)", code))
}

// handleCheckoutStep runs the name -> admission -> notes dialog. Returns false
// when the user is not in checkout. Any command other than /skip leaves it.
func (b *Bot) handleCheckoutStep(ctx context.Context, chatID, userID int64, text string) bool {
	b.mu.Lock()
	st := b.checkouts[userID]
	b.mu.Unlock()
	if st == nil {
		return false
	}
	if strings.HasPrefix(text, "/") && text != "/skip" {
		b.clearCheckout(userID)
		return false
	}

	switch st.Step {
	case "name":
		if text == "" || text == "/skip" {
			b.cards.send(chatID, "Please enter your name.")
			return true
		}
		st.Name = text
		st.Step = "admission"
		b.cards.send(chatID, "Your 5-digit admission number?")
	case "admission":
		in := services.CheckoutInput{CustomerName: st.Name, AdmissionNumber: text}
		var ve *models.ValidationError
		if err := in.Validate(); errors.As(err, &ve) {
			b.cards.send(chatID, "⚠️ "+ve.Message)
			return true
		}
		st.Admission = text
		st.Step = "notes"
		b.cards.send(chatID, "Any notes for the kitchen? Send them, or /skip.")
	case "notes":
		notes := text
		if text == "/skip" {
			notes = ""
		}
		b.clearCheckout(userID)
		b.placeOrder(ctx, chatID, userID, services.CheckoutInput{CustomerName: st.Name, AdmissionNumber: st.Admission, Notes: notes})
	}
	return true
}

func (b *Bot) placeOrder(ctx context.Context, chatID, userID int64, in services.CheckoutInput) {
	s := b.session(userID)
	conf, err := s.Checkout.Checkout(ctx, in)
	var ve *models.ValidationError
	switch {
	case errors.Is(err, services.ErrEmptyCart):
		b.cards.send(chatID, "🛒 Your cart is empty. Use /menu to add items.")
		return
	case errors.As(err, &ve):
		b.cards.send(chatID, "⚠️ "+ve.Message+"\nUse /checkout to try again.")
		return
	case err != nil:
		b.log.Error("checkout", zap.Int64("user_id", userID), zap.Error(err))
		b.cards.send(chatID, "Something went wrong, please try again.")
		return
	}

	b.cards.send(chatID, fmt.Sprintf("✅ Order placed!\nPickup code: %s\nTotal: KSh %s\nReady around %s. Pay with M-Pesa at the counter.",
		conf.OrderCode, conf.TotalAmount, conf.EstimatedPickupTime.In(b.loc).Format("15:04")))
	if g, ok, err := s.Orders.Detail(ctx, conf.OrderID); err == nil && ok {
		unlock := b.cards.lock(conf.OrderID)
		b.cards.post(ctx, conf.OrderID, services.AudienceCustomer, chatID, services.BuildCustomerCard(*g, b.loc))
		unlock()
	}
	if b.staff != nil {
		b.staff.NotifyOrder(ctx, conf.OrderID)
	}
}

func ordersListSubject(chatID int64) string {
	return "orders_list:" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) refreshOrdersList(ctx context.Context, chatID, userID int64) {
	groups, err := b.session(userID).Orders.List(ctx, "", false)
	if err != nil {
		b.log.Warn("refresh orders list", zap.Int64("user_id", userID), zap.Error(err))
		return
	}
	subject := ordersListSubject(chatID)
	unlock := b.cards.lock(subject)
	defer unlock()
	b.cards.upsert(ctx, subject, services.AudienceCustomer, chatID, services.BuildOrdersListCard(groups, b.loc))
}

// handleOrders posts a fresh "my orders" card and keeps it refreshed until
// the user moves to the menu or the cart. Only chats looking at the card
// hold a refresh goroutine.
func (b *Bot) handleOrders(ctx context.Context, chatID, userID int64) {
	groups, err := b.session(userID).Orders.List(ctx, "", false)
	if err != nil {
		b.log.Error("list orders", zap.Int64("user_id", userID), zap.Error(err))
		b.cards.send(chatID, "Your orders are unavailable right now, please try again.")
		return
	}
	subject := ordersListSubject(chatID)
	unlock := b.cards.lock(subject)
	b.cards.post(ctx, subject, services.AudienceCustomer, chatID, services.BuildOrdersListCard(groups, b.loc))
	unlock()

	b.mu.Lock()
	r := b.refreshers[chatID]
	if r == nil {
		r = services.NewRefresher(b.refreshInterval, func(ctx context.Context) {
			b.refreshOrdersList(ctx, chatID, userID)
		})
		b.refreshers[chatID] = r
	}
	b.mu.Unlock()
	r.Start(ctx)
	r.Resume()
}

// stopRefresher ends the chat's refresh loop once the orders card is out of
// sight; the next /orders starts a new one.
func (b *Bot) stopRefresher(chatID int64) {
	b.mu.Lock()
	r := b.refreshers[chatID]
	delete(b.refreshers, chatID)
	b.mu.Unlock()
	if r != nil {
		r.Stop()
	}
}

func (b *Bot) stopRefreshers() {
	b.mu.Lock()
	rs := b.refreshers
	b.refreshers = make(map[int64]*services.Refresher)
	b.mu.Unlock()
	for _, r := range rs {
		r.Stop()
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil || cq.From == nil {
		return
	}
	chatID, userID, data := cq.Message.Chat.ID, cq.From.ID, cq.Data
	s := b.session(userID)

	switch {
	case strings.HasPrefix(data, cbCategory):
		b.cards.answer(cq.ID, "")
		b.sendCategory(ctx, chatID, strings.TrimPrefix(data, cbCategory))

	case strings.HasPrefix(data, cbAdd):
		item, ok, err := b.shop.Menu.Get(ctx, strings.TrimPrefix(data, cbAdd))
		if err != nil || !ok {
			b.cards.answer(cq.ID, "This item is no longer available.")
			return
		}
		lines, err := s.Cart.Add(ctx, item, 1)
		if err != nil {
			b.log.Warn("add to cart", zap.String("item_id", item.ID), zap.Error(err))
			b.cards.answer(cq.ID, "Could not add this item.")
			return
		}
		n := 0
		for _, l := range lines {
			n += l.Quantity
		}
		b.cards.answer(cq.ID, fmt.Sprintf("Added %s (%d in cart)", item.Name, n))

	case strings.HasPrefix(data, cbCartInc), strings.HasPrefix(data, cbCartDec), strings.HasPrefix(data, cbCartRm), data == cbCartClear:
		var err error
		switch {
		case strings.HasPrefix(data, cbCartInc):
			err = b.changeQuantity(ctx, s.Cart, strings.TrimPrefix(data, cbCartInc), 1)
		case strings.HasPrefix(data, cbCartDec):
			err = b.changeQuantity(ctx, s.Cart, strings.TrimPrefix(data, cbCartDec), -1)
		case strings.HasPrefix(data, cbCartRm):
			_, err = s.Cart.Remove(ctx, strings.TrimPrefix(data, cbCartRm))
		default:
			err = s.Cart.Clear(ctx)
		}
		if err != nil {
			b.log.Warn("update cart", zap.String("data", data), zap.Error(err))
		}
		b.cards.answer(cq.ID, "")
		b.sendCart(ctx, chatID, userID, cq.Message.MessageID)

	case data == cbCheckout:
		b.cards.answer(cq.ID, "")
		b.beginCheckout(ctx, chatID, userID)

	case strings.HasPrefix(data, services.CallbackOrderDetail):
		id := strings.TrimPrefix(data, services.CallbackOrderDetail)
		g, ok, err := s.Orders.Detail(ctx, id)
		if err != nil || !ok {
			b.cards.answer(cq.ID, "Order not found.")
			return
		}
		b.cards.answer(cq.ID, "")
		unlock := b.cards.lock(id)
		b.cards.post(ctx, id, services.AudienceCustomer, chatID, services.BuildCustomerCard(*g, b.loc))
		unlock()

	case strings.HasPrefix(data, services.CallbackCancel):
		b.orderAction(ctx, cq, strings.TrimPrefix(data, services.CallbackCancel), s.Orders.Cancel, "Order cancelled. Items are back in your cart.")
	case strings.HasPrefix(data, services.CallbackRestore):
		b.orderAction(ctx, cq, strings.TrimPrefix(data, services.CallbackRestore), s.Orders.Restore, "Order restored.")
	case strings.HasPrefix(data, services.CallbackPickup):
		b.orderAction(ctx, cq, strings.TrimPrefix(data, services.CallbackPickup), s.Orders.ConfirmPickup, "Enjoy your meal! 🍽")

	default:
		b.cards.answer(cq.ID, "")
	}
}

type orderActionFunc func(ctx context.Context, id string) (*services.OrderGroup, bool, error)

func (b *Bot) orderAction(ctx context.Context, cq *tgbotapi.CallbackQuery, id string, fn orderActionFunc, done string) {
	chatID := cq.Message.Chat.ID
	unlock := b.cards.lock(id)
	g, ok, err := fn(ctx, id)
	switch {
	case errors.Is(err, services.ErrInvalidTransition):
		unlock()
		b.cards.answer(cq.ID, "This order can no longer be changed.")
		b.NotifyOrder(ctx, id)
		return
	case err != nil:
		unlock()
		b.log.Error("order action", zap.String("order_id", id), zap.Error(err))
		b.cards.answer(cq.ID, "Something went wrong, please try again.")
		return
	case !ok:
		unlock()
		b.cards.answer(cq.ID, "Order not found.")
		return
	}
	b.cards.upsert(ctx, id, services.AudienceCustomer, chatID, services.BuildCustomerCard(*g, b.loc))
	unlock()
	b.cards.answer(cq.ID, done)
	if b.staff != nil {
		b.staff.NotifyOrder(ctx, id)
	}
}

// NotifyOrder refreshes the customer's card for an order changed elsewhere
// (by the kitchen) and tells them when it is ready.
func (b *Bot) NotifyOrder(ctx context.Context, orderID string) {
	unlock := b.cards.lock(orderID)
	defer unlock()
	chatID, _, ok, err := b.shop.Cards.Get(ctx, orderID, services.AudienceCustomer)
	if err != nil || !ok {
		return
	}
	g, ok, err := b.shop.Backoffice.Order(ctx, orderID)
	if err != nil || !ok {
		return
	}
	b.cards.upsert(ctx, orderID, services.AudienceCustomer, chatID, services.BuildCustomerCard(*g, b.loc))
}

// NotifyReady is sent once when the kitchen marks an order ready.
func (b *Bot) NotifyReady(ctx context.Context, orderID string) {
	chatID, _, ok, err := b.shop.Cards.Get(ctx, orderID, services.AudienceCustomer)
	if err != nil || !ok {
		return
	}
	g, ok, err := b.shop.Backoffice.Order(ctx, orderID)
	if err != nil || !ok {
		return
	}
	b.cards.send(chatID, fmt.Sprintf("🔔 Your order %s is ready! Show code %s at the counter.", g.ID, g.OrderCode))
}
