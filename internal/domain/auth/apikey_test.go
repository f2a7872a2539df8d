package auth

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockKeyRepo struct {
	byHash map[string]*APIKeyInfo
	err    error
}

func (m *mockKeyRepo) FindByHash(_ context.Context, hash string) (*APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.byHash[hash]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return info, nil
}

func TestAuthenticator(t *testing.T) {
	pepper := []byte("pepper")
	hash := HashKey(pepper, "secret-key")
	repo := &mockKeyRepo{byHash: map[string]*APIKeyInfo{
		hash:     {ID: "k1", KeyHash: hash, Name: "web", Scopes: []string{"checkout"}},
		"broken": {ID: "k2", KeyHash: "not-hex"},
	}}
	a := NewAuthenticator(repo, pepper)

	t.Run("valid key", func(t *testing.T) {
		info, err := a.Authenticate(context.Background(), "secret-key")
		require.NoError(t, err)
		assert.Equal(t, "k1", info.ID)
		assert.True(t, info.HasScope("checkout"))
		assert.False(t, info.HasScope("admin"))
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := a.Authenticate(context.Background(), "other")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("empty key", func(t *testing.T) {
		_, err := a.Authenticate(context.Background(), "")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("different pepper", func(t *testing.T) {
		other := NewAuthenticator(repo, []byte("other"))
		_, err := other.Authenticate(context.Background(), "secret-key")
		require.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("repository failure", func(t *testing.T) {
		failing := NewAuthenticator(&mockKeyRepo{err: errors.New("db down")}, pepper)
		_, err := failing.Authenticate(context.Background(), "secret-key")
		require.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestHashKey_Deterministic(t *testing.T) {
	a := HashKey([]byte("p"), "k")
	b := HashKey([]byte("p"), "k")

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, HashKey([]byte("q"), "k"))
}

func TestAPIKeyInfo_WildcardScope(t *testing.T) {
	info := &APIKeyInfo{Scopes: []string{"*"}}
	assert.True(t, info.HasScope("anything"))
}
