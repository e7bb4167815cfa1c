package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"campus-cafe/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddAdminValidation(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()

	tests := []struct {
		name, email, password, field string
	}{
		{"no at", "admin.campuscafe.com", "supersecret", "email"},
		{"no dot", "admin@campuscafe", "supersecret", "email"},
		{"short password", "admin@campuscafe.com", "1234567", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := shop.Credentials.AddAdmin(ctx, tt.email, tt.password)
			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestAddAdminUpdatesExisting(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()

	created, err := shop.Credentials.AddAdmin(ctx, "Chef@CampusCafe.com", "password-one")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = shop.Credentials.AddAdmin(ctx, "chef@campuscafe.com", "password-two")
	require.NoError(t, err)
	assert.False(t, created)

	admins, _ := shop.Credentials.ListAdmins(ctx)
	assert.Equal(t, []string{"chef@campuscafe.com"}, admins)
	assert.ErrorIs(t, shop.Credentials.Verify(ctx, "chef@campuscafe.com", "password-one"), ErrUnauthorized)
	// The failed attempt above started a cooldown.
	var te *ThrottledError
	require.ErrorAs(t, shop.Credentials.Verify(ctx, "chef@campuscafe.com", "password-two"), &te)
	assert.Equal(t, 2, te.WaitSeconds)
}

func TestLoginAuthenticateLogout(t *testing.T) {
	shop, clock, _ := newTestShop(t)
	ctx := context.Background()
	_, err := shop.Credentials.AddAdmin(ctx, "chef@campuscafe.com", "supersecret")
	require.NoError(t, err)

	token, err := shop.Credentials.Login(ctx, " CHEF@campuscafe.com ", "supersecret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	email, ok, err := shop.Credentials.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "chef@campuscafe.com", email)

	_, ok, _ = shop.Credentials.Authenticate(ctx, "not-a-token")
	assert.False(t, ok)

	require.NoError(t, shop.Credentials.Logout(ctx, token))
	_, ok, _ = shop.Credentials.Authenticate(ctx, token)
	assert.False(t, ok)

	token, err = shop.Credentials.Login(ctx, "chef@campuscafe.com", "supersecret")
	require.NoError(t, err)
	clock.Advance(AdminSessionTTL)
	_, ok, _ = shop.Credentials.Authenticate(ctx, token)
	assert.False(t, ok, "session expired")
}

func TestLoginThrottled(t *testing.T) {
	shop, clock, _ := newTestShop(t)
	ctx := context.Background()
	_, err := shop.Credentials.AddAdmin(ctx, "chef@campuscafe.com", "supersecret")
	require.NoError(t, err)

	_, err = shop.Credentials.Login(ctx, "chef@campuscafe.com", "wrong-password")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	_, err = shop.Credentials.Login(ctx, "chef@campuscafe.com", "supersecret")
	assert.True(t, errors.Is(err, ErrThrottled))

	clock.Advance(2 * time.Second)
	_, err = shop.Credentials.Login(ctx, "chef@campuscafe.com", "supersecret")
	assert.NoError(t, err)

	// Unknown emails fail the same way.
	_, err = shop.Credentials.Login(ctx, "nobody@campuscafe.com", "supersecret")
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestRemoveAdmin(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()
	_, err := shop.Credentials.AddAdmin(ctx, "chef@campuscafe.com", "supersecret")
	require.NoError(t, err)
	_, err = shop.Credentials.AddAdmin(ctx, "owner@campuscafe.com", "supersecret")
	require.NoError(t, err)
	token, err := shop.Credentials.Login(ctx, "chef@campuscafe.com", "supersecret")
	require.NoError(t, err)

	ok, err := shop.Credentials.RemoveAdmin(ctx, "missing@campuscafe.com")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = shop.Credentials.RemoveAdmin(ctx, "chef@campuscafe.com")
	require.NoError(t, err)
	assert.True(t, ok)
	_, authed, _ := shop.Credentials.Authenticate(ctx, token)
	assert.False(t, authed)

	_, err = shop.Credentials.RemoveAdmin(ctx, "owner@campuscafe.com")
	assert.ErrorIs(t, err, ErrLastAdmin)
	admins, _ := shop.Credentials.ListAdmins(ctx)
	assert.Equal(t, []string{"owner@campuscafe.com"}, admins)
}

func TestEnsureSeedAdmin(t *testing.T) {
	shop, _, _ := newTestShop(t)
	ctx := context.Background()

	require.NoError(t, shop.Credentials.EnsureSeedAdmin(ctx, "", ""))
	admins, _ := shop.Credentials.ListAdmins(ctx)
	assert.Empty(t, admins)

	require.NoError(t, shop.Credentials.EnsureSeedAdmin(ctx, "admin@campuscafe.com", "supersecret"))
	require.NoError(t, shop.Credentials.EnsureSeedAdmin(ctx, "second@campuscafe.com", "supersecret"))
	admins, _ = shop.Credentials.ListAdmins(ctx)
	assert.Equal(t, []string{"admin@campuscafe.com"}, admins)
}
