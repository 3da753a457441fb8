package portal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/balalab/portal/internal/models"
)

func sessionPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "session.json")
}

func TestSession_LoginPersistsTokenUnderFixedKey(t *testing.T) {
	backend, api := newTestPortal(t)
	backend.addUser("patient@example.com", "pw", models.RoleUser)

	path := sessionPath(t)
	session := NewSession(api, path)

	require.NoError(t, session.Login(context.Background(), "patient@example.com", "pw"))
	assert.True(t, session.Authenticated())
	assert.Equal(t, "patient@example.com", session.User().Email)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	state := make(map[string]string)
	require.NoError(t, json.Unmarshal(data, &state))
	assert.Equal(t, api.Token(), state["labportal_token"])
}

func TestSession_LoginBadCredentials(t *testing.T) {
	backend, api := newTestPortal(t)
	backend.addUser("patient@example.com", "pw", models.RoleUser)

	session := NewSession(api, sessionPath(t))
	err := session.Login(context.Background(), "patient@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.False(t, session.Authenticated())
}

func TestSession_RegisterIsImmediatelyAuthenticated(t *testing.T) {
	_, api := newTestPortal(t)

	session := NewSession(api, sessionPath(t))
	require.NoError(t, session.Register(context.Background(), "fresh@example.com", "pw", models.RoleUser))
	require.True(t, session.Authenticated())

	// a protected fetch works right away, no separate login needed
	reports, err := api.Reports(context.Background())
	require.NoError(t, err)
	assert.Empty(t, reports)
}

func TestSession_RegisterDuplicate(t *testing.T) {
	backend, api := newTestPortal(t)
	backend.addUser("dup@example.com", "pw", models.RoleUser)

	session := NewSession(api, sessionPath(t))
	err := session.Register(context.Background(), "dup@example.com", "pw", models.RoleUser)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.False(t, session.Authenticated())
}

func TestSession_RestoreValidTok(t *testing.T) {
	backend, api := newTestPortal(t)
	backend.addUser("patient@example.com", "pw", models.RoleUser)
	tok := backend.tokenFor("patient@example.com")

	path := sessionPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"labportal_token":"`+tok+`"}`), 0o600))

	session := NewSession(api, path)
	require.NoError(t, session.Restore(context.Background()))
	require.True(t, session.Authenticated())
	assert.Equal(t, "patient@example.com", session.User().Email)
}

func TestSession_RestoreStaleTokenDegradesToUnauthenticated(t *testing.T) {
	_, api := newTestPortal(t)

	path := sessionPath(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"labportal_token":"expired"}`), 0o600))

	session := NewSession(api, path)
	require.NoError(t, session.Restore(context.Background()), "auth failure during restore must not be fatal")
	assert.False(t, session.Authenticated())
	assert.Empty(t, api.Token(), "rejected token must be discarded")
}

func TestSession_RestoreWithoutStateFile(t *testing.T) {
	_, api := newTestPortal(t)

	session := NewSession(api, sessionPath(t))
	require.NoError(t, session.Restore(context.Background()))
	assert.False(t, session.Authenticated())
}

func TestSession_LogoutClearsTokenEverywhere(t *testing.T) {
	backend, api := newTestPortal(t)
	backend.addUser("patient@example.com", "pw", models.RoleUser)

	path := sessionPath(t)
	session := NewSession(api, path)
	require.NoError(t, session.Login(context.Background(), "patient@example.com", "pw"))

	session.Logout()

	assert.False(t, session.Authenticated())
	assert.Empty(t, api.Token())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "state file must be removed on logout")

	// a subsequent protected fetch goes out without an Authorization header
	_, err = api.Reports(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
}
