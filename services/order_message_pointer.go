package services

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"campus-cafe/store"

	"go.uber.org/zap"
)

const (
	AudienceCustomer = "customer"
	AudienceStaff    = "staff"
)

type cardPointer struct {
	ChatID    int64 `json:"chatId"`
	MessageID int   `json:"messageId"`
}

// CardPointers remembers which chat message shows a card, so updates edit
// it in place instead of posting a new one. Keyed by (subject, audience);
// subject is an order id or a per-chat card name.
type CardPointers struct {
	kv  store.Store
	log *zap.Logger
	mu  sync.Mutex
}

func NewCardPointers(kv store.Store, log *zap.Logger) *CardPointers {
	return &CardPointers{kv: kv, log: log}
}

func pointerKey(subject, audience string) string {
	return subject + "|" + audience
}

// StaffAudience scopes staff cards to one staff chat.
func StaffAudience(chatID int64) string {
	return AudienceStaff + ":" + strconv.FormatInt(chatID, 10)
}

func (p *CardPointers) load(ctx context.Context) (map[string]cardPointer, error) {
	return store.LoadJSON(ctx, p.kv, KeyCardPointers, map[string]cardPointer{}, p.log)
}

// Get returns the chat_id and message_id of the card for the given audience.
// ok is false if no pointer exists.
func (p *CardPointers) Get(ctx context.Context, subject, audience string) (chatID int64, messageID int, ok bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.load(ctx)
	if err != nil {
		return 0, 0, false, err
	}
	ptr, ok := m[pointerKey(subject, audience)]
	return ptr.ChatID, ptr.MessageID, ok, nil
}

// Upsert inserts or updates the pointer for (subject, audience).
func (p *CardPointers) Upsert(ctx context.Context, subject, audience string, chatID int64, messageID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.load(ctx)
	if err != nil {
		return err
	}
	m[pointerKey(subject, audience)] = cardPointer{ChatID: chatID, MessageID: messageID}
	return store.SaveJSON(ctx, p.kv, KeyCardPointers, m)
}

// Forget drops every pointer of subject, e.g. when orders are cleared.
func (p *CardPointers) Forget(ctx context.Context, subject string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, err := p.load(ctx)
	if err != nil {
		return err
	}
	prefix := subject + "|"
	changed := false
	for k := range m {
		if strings.HasPrefix(k, prefix) {
			delete(m, k)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return store.SaveJSON(ctx, p.kv, KeyCardPointers, m)
}
