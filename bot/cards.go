package bot

import (
	"context"
	"strings"
	"sync"

	"campus-cafe/services"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// botAPI is the part of *tgbotapi.BotAPI the bots talk to.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// OrderNotifier is told when an order was placed or changed status.
type OrderNotifier interface {
	NotifyOrder(ctx context.Context, orderID string)
}

// cardMarkup converts OrderCardContent.Buttons to Telegram inline keyboard (URL vs callback).
func cardMarkup(c services.OrderCardContent) *tgbotapi.InlineKeyboardMarkup {
	if len(c.Buttons) == 0 {
		return nil
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, row := range c.Buttons {
		var btns []tgbotapi.InlineKeyboardButton
		for _, btn := range row {
			if btn.URL != "" {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			} else {
				btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.CallbackData))
			}
		}
		rows = append(rows, btns)
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &kb
}

func emptyMarkup() *tgbotapi.InlineKeyboardMarkup {
	return &tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
}

// cardWriter sends and edits cards for one bot, remembering message ids in
// services.CardPointers.
type cardWriter struct {
	api   botAPI
	cards *services.CardPointers
	log   *zap.Logger
	locks sync.Map // map[subject]*sync.Mutex
}

// lock serializes edits of one subject's cards and returns the unlock function.
func (w *cardWriter) lock(subject string) func() {
	v, _ := w.locks.LoadOrStore(subject, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// upsert edits the existing card message if we have a pointer; otherwise sends new and saves pointer.
// On "message not found" (e.g. deleted): send new message and upsert pointer.
// On "message is not modified": ignore.
func (w *cardWriter) upsert(ctx context.Context, subject, audience string, chatID int64, content services.OrderCardContent) {
	ptrChatID, messageID, ok, err := w.cards.Get(ctx, subject, audience)
	if err != nil {
		w.log.Warn("card pointer lookup", zap.String("subject", subject), zap.String("audience", audience), zap.Error(err))
		return
	}
	if ok {
		edit := tgbotapi.NewEditMessageText(ptrChatID, messageID, content.Text)
		if kb := cardMarkup(content); kb != nil {
			edit.ReplyMarkup = kb
		} else {
			edit.ReplyMarkup = emptyMarkup()
		}
		_, err := w.api.Send(edit)
		if err == nil {
			return
		}
		errStr := err.Error()
		if strings.Contains(errStr, "not modified") {
			return
		}
		if !strings.Contains(errStr, "not found") {
			w.log.Warn("edit card", zap.String("subject", subject), zap.String("audience", audience), zap.Error(err))
			return
		}
		chatID = ptrChatID
	}
	w.post(ctx, subject, audience, chatID, content)
}

// post always sends a new card message and points the subject at it.
func (w *cardWriter) post(ctx context.Context, subject, audience string, chatID int64, content services.OrderCardContent) {
	msg := tgbotapi.NewMessage(chatID, content.Text)
	if kb := cardMarkup(content); kb != nil {
		msg.ReplyMarkup = *kb
	}
	sent, err := w.api.Send(msg)
	if err != nil {
		w.log.Warn("send card", zap.String("subject", subject), zap.String("audience", audience), zap.Error(err))
		return
	}
	if err := w.cards.Upsert(ctx, subject, audience, chatID, sent.MessageID); err != nil {
		w.log.Warn("save card pointer", zap.String("subject", subject), zap.Error(err))
	}
}

func (w *cardWriter) send(chatID int64, text string) {
	if _, err := w.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		w.log.Warn("send", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (w *cardWriter) sendWithInline(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	if _, err := w.api.Send(msg); err != nil {
		w.log.Warn("send", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// answer sends a short toast for the callback (no new message).
func (w *cardWriter) answer(callbackID, text string) {
	if _, err := w.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		w.log.Debug("answer callback", zap.Error(err))
	}
}
