package meili

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseTenantToken(t *testing.T, token, secret string) jwt.MapClaims {
	t.Helper()

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (any, error) {
		assert.Equal(t, jwt.SigningMethodHS256, tok.Method)
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	return claims
}

func searchKey(indexes ...string) *Key {
	return &Key{
		UID:     uuid.New(),
		Key:     "a-search-key-value",
		Actions: []string{"search"},
		Indexes: indexes,
	}
}

func TestGenerateTenantToken_DefaultSearchKey(t *testing.T) {
	client, server := newTestClient(t)

	token, err := client.GenerateTenantToken(context.Background(), []string{"*"}, TenantTokenOptions{})
	require.NoError(t, err)

	claims := parseTenantToken(t, token, server.SearchKey())
	assert.Equal(t, []any{"*"}, claims["searchRules"])
	assert.NotEmpty(t, claims["apiKeyUid"])
	assert.NotContains(t, claims, "exp")
}

func TestGenerateTenantToken_RulesAndExpiry(t *testing.T) {
	key := searchKey("movies", "books")
	expires := time.Now().Add(time.Hour)

	rules := map[string]any{
		"movies": map[string]any{"filter": "genre = Drama"},
		"books":  nil,
	}
	token, err := signTenantToken(key, rules, expires)
	require.NoError(t, err)

	claims := parseTenantToken(t, token, key.Key)
	assert.Equal(t, key.UID.String(), claims["apiKeyUid"])
	assert.EqualValues(t, expires.Unix(), claims["exp"])

	searchRules, ok := claims["searchRules"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"filter": "genre = Drama"}, searchRules["movies"])
	assert.Contains(t, searchRules, "books")
}

func TestGenerateTenantToken_Errors(t *testing.T) {
	tests := []struct {
		name    string
		key     *Key
		rules   any
		expires time.Time
		wantErr error
	}{
		{
			name:    "admin key",
			key:     &Key{UID: uuid.New(), Key: "k", Actions: []string{"*"}, Indexes: []string{"*"}},
			rules:   []string{"*"},
			wantErr: ErrInvalidKey,
		},
		{
			name:    "extra action",
			key:     &Key{UID: uuid.New(), Key: "k", Actions: []string{"search", "documents.add"}, Indexes: []string{"*"}},
			rules:   []string{"*"},
			wantErr: ErrInvalidKey,
		},
		{
			name:    "empty key value",
			key:     &Key{UID: uuid.New(), Actions: []string{"search"}, Indexes: []string{"*"}},
			rules:   []string{"*"},
			wantErr: ErrInvalidKey,
		},
		{
			name:    "index outside key",
			key:     searchKey("movies"),
			rules:   []string{"movies", "books"},
			wantErr: ErrInvalidRestriction,
		},
		{
			name:    "map rule outside key",
			key:     searchKey("movies"),
			rules:   map[string]any{"books": nil},
			wantErr: ErrInvalidRestriction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signTenantToken(tt.key, tt.rules, tt.expires)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenerateTenantToken_WildcardKeyAllowsAnyIndex(t *testing.T) {
	_, err := signTenantToken(searchKey("*"), []string{"movies", "books"}, time.Time{})
	assert.NoError(t, err)
}

func TestGenerateTenantToken_ExpiredRejected(t *testing.T) {
	_, err := signTenantToken(searchKey("*"), []string{"*"}, time.Now().Add(-time.Minute))
	assert.Error(t, err)
}

func TestGenerateTenantToken_InvalidRules(t *testing.T) {
	for _, rules := range []any{nil, 42, []any{1}} {
		_, err := signTenantToken(searchKey("*"), rules, time.Time{})
		assert.Error(t, err)
	}
}

func TestGenerateTenantToken_NoSearchKey(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	keys, err := client.GetKeys(ctx)
	require.NoError(t, err)
	for _, k := range keys {
		require.NoError(t, client.DeleteKey(ctx, k.Key))
	}

	_, err = client.GenerateTenantToken(ctx, []string{"*"}, TenantTokenOptions{})
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRuleIndexes(t *testing.T) {
	indexes, err := ruleIndexes(map[string]map[string]any{"b": nil, "*": nil, "a": {"filter": "x"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, indexes)

	indexes, err = ruleIndexes([]any{"movies", "*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"movies"}, indexes)
}
