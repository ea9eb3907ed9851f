package auth_test

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftme/liftme-go/internal/auth"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func signedToken(t *testing.T, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})
	raw, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)
	return raw
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store := auth.NewFileTokenStore(path)

	// Missing file is not an error.
	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save("tok-abc"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())
}

func TestSession_RestoreValidToken(t *testing.T) {
	store := auth.NewFileTokenStore(filepath.Join(t.TempDir(), "token"))
	raw := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, store.Save(raw))

	session := auth.NewSession(discardLogger(), store)
	require.NoError(t, session.Restore())

	assert.True(t, session.Authenticated())
	assert.Equal(t, raw, session.Token())
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt(), 5*time.Second)
}

func TestSession_RestoreDiscardsExpired(t *testing.T) {
	store := auth.NewFileTokenStore(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, store.Save(signedToken(t, time.Now().Add(-time.Hour))))

	session := auth.NewSession(discardLogger(), store)
	require.NoError(t, session.Restore())

	assert.False(t, session.Authenticated())
	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, loaded, "expired token must be cleared from disk")
}

func TestSession_RestoreDiscardsMalformed(t *testing.T) {
	store := auth.NewFileTokenStore(filepath.Join(t.TempDir(), "token"))
	require.NoError(t, store.Save("not-a-jwt"))

	session := auth.NewSession(discardLogger(), store)
	require.NoError(t, session.Restore())
	assert.False(t, session.Authenticated())
}

func TestSession_SetTokenAndLogout(t *testing.T) {
	store := auth.NewFileTokenStore(filepath.Join(t.TempDir(), "token"))
	session := auth.NewSession(discardLogger(), store)

	raw := signedToken(t, time.Now().Add(time.Hour))
	require.NoError(t, session.SetToken(raw))
	assert.True(t, session.Authenticated())

	persisted, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, raw, persisted)

	require.NoError(t, session.Logout())
	assert.False(t, session.Authenticated())
	assert.True(t, session.ExpiresAt().IsZero())

	persisted, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, persisted)
}
