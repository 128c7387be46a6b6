package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadGoogleAuthFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{
		"token": "ya29.access",
		"refresh_token": "1//refresh",
		"token_uri": "https://oauth2.googleapis.com/token",
		"client_id": "client-id.apps.googleusercontent.com",
		"client_secret": "secret",
		"scopes": ["https://www.googleapis.com/auth/calendar.readonly"],
		"universe_domain": "googleapis.com",
		"account": "",
		"expiry": "2024-01-01T10:00:00.123456Z"
	}`), 0o600))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "ya29.access", got.AccessToken)
	assert.Equal(t, "1//refresh", got.RefreshToken)
	assert.Equal(t, []string{CalendarReadonlyScope}, got.Scopes)
	assert.True(t, got.Expiry.Equal(time.Date(2024, 1, 1, 10, 0, 0, 123456000, time.UTC)))

	now := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, StateValid, Classify(got, []string{CalendarReadonlyScope}, now))
}

func TestCredential_UnmarshalPrefersAccessToken(t *testing.T) {
	var c Credential
	require.NoError(t, json.Unmarshal([]byte(`{"access_token":"new","token":"old","token_type":"Bearer"}`), &c))
	assert.Equal(t, "new", c.AccessToken)
	assert.Equal(t, "Bearer", c.TokenType)
}

func TestFileStore_SaveLoad(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "token.json"))

	want := &Credential{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Scopes:       []string{CalendarReadonlyScope},
	}
	require.NoError(t, store.Save(want))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.Equal(t, want.RefreshToken, got.RefreshToken)
	assert.Equal(t, want.TokenType, got.TokenType)
	assert.True(t, want.Expiry.Equal(got.Expiry))
	assert.Equal(t, want.Scopes, got.Scopes)

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	// No temporary files are left behind
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	require.NoError(t, err)
	for _, e := range entries {
		assert.Contains(t, []string{"token.json", "token.json.lock"}, e.Name())
	}
}

func TestFileStore_SaveReplaces(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))

	require.NoError(t, store.Save(&Credential{AccessToken: "first"}))
	require.NoError(t, store.Save(&Credential{AccessToken: "second"}))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "second", got.AccessToken)
}

func TestFileStore_LoadMissing(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))

	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCredential))
}

func TestFileStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{not json"},
		{"no tokens", `{"token_type":"Bearer"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "token.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0600))

			_, err := NewFileStore(path).Load()
			require.Error(t, err)
			assert.False(t, errors.Is(err, ErrNoCredential))
		})
	}
}

func TestFileStore_SaveNil(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))
	assert.Error(t, store.Save(nil))
}

func TestFileStore_Remove(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "token.json"))

	require.NoError(t, store.Save(&Credential{AccessToken: "a"}))
	require.NoError(t, store.Remove())

	_, err := store.Load()
	assert.True(t, errors.Is(err, ErrNoCredential))

	// Removing twice is fine
	assert.NoError(t, store.Remove())
}

func TestFileStore_LockExcludes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	first := NewFileStore(path)
	second := NewFileStore(path)

	unlock, err := first.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	_, err = second.Lock(ctx)
	require.Error(t, err, "second lock must wait while the first is held")

	unlock()

	unlock2, err := second.Lock(context.Background())
	require.NoError(t, err)
	unlock2()
}
