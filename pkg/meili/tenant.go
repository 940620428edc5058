package meili

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const defaultSearchKeyDescription = "Default Search API Key"

// TenantTokenOptions configures GenerateTenantToken.
type TenantTokenOptions struct {
	// Key signs the token. When nil the server's default search key is used.
	Key *Key
	// ExpiresAt adds an exp claim when non-zero.
	ExpiresAt time.Time
}

// GenerateTenantToken creates a JWT that scopes searches with searchRules.
//
// searchRules is either a list of index names or a map from index name to a
// rule object (or nil). "*" targets every index the key allows. The token can
// never be less restrictive than the signing key: every named index must be
// covered by the key's indexes.
func (c *Client) GenerateTenantToken(ctx context.Context, searchRules any, opts TenantTokenOptions) (string, error) {
	key := opts.Key
	if key == nil {
		found, err := c.defaultSearchKey(ctx)
		if err != nil {
			return "", err
		}
		key = found
	}

	return signTenantToken(key, searchRules, opts.ExpiresAt)
}

func (c *Client) defaultSearchKey(ctx context.Context) (*Key, error) {
	keys, err := c.GetKeys(ctx)
	if err != nil {
		return nil, err
	}
	for i := range keys {
		if strings.Contains(keys[i].Description, defaultSearchKeyDescription) {
			return &keys[i], nil
		}
	}
	return nil, ErrKeyNotFound
}

func signTenantToken(key *Key, searchRules any, expiresAt time.Time) (string, error) {
	if len(key.Actions) != 1 || key.Actions[0] != "search" {
		return "", ErrInvalidKey
	}
	if key.Key == "" {
		return "", fmt.Errorf("%w: key value is empty", ErrInvalidKey)
	}

	indexes, err := ruleIndexes(searchRules)
	if err != nil {
		return "", err
	}
	if !slices.Contains(key.Indexes, "*") {
		for _, index := range indexes {
			if !slices.Contains(key.Indexes, index) {
				return "", fmt.Errorf("%w: index %q", ErrInvalidRestriction, index)
			}
		}
	}

	claims := jwt.MapClaims{
		"searchRules": searchRules,
		"apiKeyUid":   key.UID.String(),
	}
	if !expiresAt.IsZero() {
		if !expiresAt.After(time.Now()) {
			return "", fmt.Errorf("tenant token expiry must be in the future")
		}
		claims["exp"] = expiresAt.Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(key.Key))
	if err != nil {
		return "", fmt.Errorf("failed to sign tenant token: %w", err)
	}
	return signed, nil
}

// ruleIndexes returns the index names referenced by search rules, excluding "*".
func ruleIndexes(searchRules any) ([]string, error) {
	var names []string
	switch rules := searchRules.(type) {
	case []string:
		names = append(names, rules...)
	case []any:
		for _, r := range rules {
			name, ok := r.(string)
			if !ok {
				return nil, fmt.Errorf("invalid search rule %v: index names must be strings", r)
			}
			names = append(names, name)
		}
	case map[string]any:
		for name := range rules {
			names = append(names, name)
		}
	case map[string]map[string]any:
		for name := range rules {
			names = append(names, name)
		}
	case nil:
		return nil, fmt.Errorf("search rules are required")
	default:
		return nil, fmt.Errorf("unsupported search rules type %T", searchRules)
	}

	sort.Strings(names)
	indexes := names[:0]
	for _, name := range names {
		if name != "*" {
			indexes = append(indexes, name)
		}
	}
	return indexes, nil
}
