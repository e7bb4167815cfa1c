package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"campus-cafe/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContactInputValidate(t *testing.T) {
	tests := []struct {
		name  string
		in    ContactInput
		field string
	}{
		{"ok", ContactInput{Name: "Amina", Email: "amina@students.ac.ke", Message: "Hello"}, ""},
		{"no subject is fine", ContactInput{Name: "Amina", Email: "a@b.co", Subject: "", Message: "Hi"}, ""},
		{"blank name", ContactInput{Name: " ", Email: "a@b.co", Message: "Hi"}, "name"},
		{"bad email", ContactInput{Name: "Amina", Email: "amina@students", Message: "Hi"}, "email"},
		{"email with space", ContactInput{Name: "Amina", Email: "am ina@b.co", Message: "Hi"}, "email"},
		{"blank message", ContactInput{Name: "Amina", Email: "a@b.co", Message: "\n"}, "message"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.in.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestMessagesSaveListMarkRead(t *testing.T) {
	shop, clock, _ := newTestShop(t)
	ctx := context.Background()

	first, err := shop.Messages.Save(ctx, ContactInput{Name: "Amina", Email: "amina@students.ac.ke", Subject: "Hours", Message: "Open on Sunday?"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.ID, "msg_"))
	assert.False(t, first.Read)

	clock.Advance(time.Minute)
	second, err := shop.Messages.Save(ctx, ContactInput{Name: "Otieno", Email: "otieno@students.ac.ke", Message: "Great chapati"})
	require.NoError(t, err)

	msgs, err := shop.Messages.List(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, second.ID, msgs[0].ID)

	n, _ := shop.Messages.UnreadCount(ctx)
	assert.Equal(t, 2, n)
	ok, err := shop.Messages.MarkRead(ctx, first.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	n, _ = shop.Messages.UnreadCount(ctx)
	assert.Equal(t, 1, n)

	ok, err = shop.Messages.MarkRead(ctx, "msg_missing")
	require.NoError(t, err)
	assert.False(t, ok)
}
