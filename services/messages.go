package services

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"campus-cafe/models"
	"campus-cafe/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var contactEmailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (in ContactInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &models.ValidationError{Field: "name", Message: "please enter your name"}
	}
	if !contactEmailRe.MatchString(strings.TrimSpace(in.Email)) {
		return &models.ValidationError{Field: "email", Message: "please enter a valid email address"}
	}
	if strings.TrimSpace(in.Message) == "" {
		return &models.ValidationError{Field: "message", Message: "please enter a message"}
	}
	return nil
}

// MessageService stores contact form submissions under campus_cafe_messages.
type MessageService struct {
	kv  store.Store
	log *zap.Logger
	now func() time.Time
	mu  sync.Mutex
}

func NewMessageService(kv store.Store, log *zap.Logger, now func() time.Time) *MessageService {
	return &MessageService{kv: kv, log: log, now: now}
}

func (m *MessageService) load(ctx context.Context) ([]models.ContactMessage, error) {
	return store.LoadJSON(ctx, m.kv, KeyMessages, []models.ContactMessage{}, m.log)
}

func (m *MessageService) Save(ctx context.Context, in ContactInput) (models.ContactMessage, error) {
	if err := in.Validate(); err != nil {
		return models.ContactMessage{}, err
	}
	msg := models.ContactMessage{
		ID:      "msg_" + uuid.NewString(),
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.TrimSpace(in.Email),
		Subject: strings.TrimSpace(in.Subject),
		Message: strings.TrimSpace(in.Message),
		Date:    m.now(),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, err := m.load(ctx)
	if err != nil {
		return models.ContactMessage{}, err
	}
	msgs = append(msgs, msg)
	if err := store.SaveJSON(ctx, m.kv, KeyMessages, msgs); err != nil {
		return models.ContactMessage{}, err
	}
	return msg, nil
}

// List returns messages newest first.
func (m *MessageService) List(ctx context.Context) ([]models.ContactMessage, error) {
	m.mu.Lock()
	msgs, err := m.load(ctx)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].Date.After(msgs[j].Date) })
	return msgs, nil
}

func (m *MessageService) UnreadCount(ctx context.Context) (int, error) {
	msgs, err := m.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, msg := range msgs {
		if !msg.Read {
			n++
		}
	}
	return n, nil
}

// MarkRead flags a message as read; false when no message has that id.
func (m *MessageService) MarkRead(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs, err := m.load(ctx)
	if err != nil {
		return false, err
	}
	for i := range msgs {
		if msgs[i].ID == id {
			msgs[i].Read = true
			return true, store.SaveJSON(ctx, m.kv, KeyMessages, msgs)
		}
	}
	return false, nil
}
