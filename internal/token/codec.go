package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenType = "Bearer"

// Claims is the payload carried by issued tokens. TokenID is the revocation
// key; the registered jti is a separate random id. IsAdmin is captured at
// issuance and never re-derived, so a later grant/revoke does not affect
// tokens already in flight.
type Claims struct {
	TokenID  string   `json:"tokenId"`
	IsAdmin  bool     `json:"isAdmin"`
	Type     string   `json:"type"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
	jwt.RegisteredClaims
}

// Codec signs and parses tokens. It holds a kid-indexed key set: new tokens
// are signed with the active key, verification accepts any configured key.
type Codec struct {
	keys      map[string][]byte
	activeKID string
	ttl       time.Duration

	// now is swappable in tests to pin expiry boundaries.
	now func() time.Time
}

// NewCodec validates the key set and returns a ready codec.
func NewCodec(keys map[string][]byte, activeKID string, ttl time.Duration) (*Codec, error) {
	if len(keys) == 0 {
		return nil, errors.New("token codec requires at least one signing key")
	}
	if _, ok := keys[activeKID]; !ok {
		return nil, fmt.Errorf("active key id %q not present in key set", activeKID)
	}
	if ttl <= 0 {
		return nil, errors.New("token TTL must be positive")
	}
	for kid, key := range keys {
		if len(key) < 32 {
			return nil, fmt.Errorf("signing key %q is shorter than 32 bytes", kid)
		}
	}
	return &Codec{
		keys:      keys,
		activeKID: activeKID,
		ttl:       ttl,
		now:       time.Now,
	}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Issue builds and signs a token for the given identity. The claim set is
// fixed at issuance; tokens are never mutated afterwards.
func (c *Codec) Issue(username string, isAdmin bool, roles []string) (string, error) {
	now := c.now()
	claims := Claims{
		TokenID:  uuid.New().String(),
		IsAdmin:  isAdmin,
		Type:     tokenType,
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.New().String(),
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["kid"] = c.activeKID

	return tok.SignedString(c.keys[c.activeKID])
}

// Parse verifies the signature and returns the claims. Expiry is NOT
// enforced here: the claims of a structurally valid but expired token stay
// readable, which the invalidation path relies on.
func (c *Codec) Parse(tokenStr string) (*Claims, error) {
	return c.parse(tokenStr, true)
}

// ParseStrict verifies signature and time claims, failing with
// ErrExpiredToken once the token is past its exp.
func (c *Codec) ParseStrict(tokenStr string) (*Claims, error) {
	return c.parse(tokenStr, false)
}

// ExtractUsername reads the subject without enforcing expiry.
func (c *Codec) ExtractUsername(tokenStr string) (string, error) {
	claims, err := c.Parse(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// ExtractTokenID reads the revocation key without enforcing expiry.
func (c *Codec) ExtractTokenID(tokenStr string) (string, error) {
	claims, err := c.Parse(tokenStr)
	if err != nil {
		return "", err
	}
	return claims.TokenID, nil
}

func (c *Codec) parse(tokenStr string, lenient bool) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if lenient {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	parser := jwt.NewParser(options...)
	tok, err := parser.ParseWithClaims(tokenStr, &Claims{}, c.keyFor)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %s", ErrExpiredToken, "past exp")
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenID == "" {
		return nil, fmt.Errorf("%w: missing tokenId claim", ErrInvalidToken)
	}
	return claims, nil
}

func (c *Codec) keyFor(t *jwt.Token) (interface{}, error) {
	kid, _ := t.Header["kid"].(string)
	if kid == "" {
		// Tokens minted before key-id rollout verify against the active key.
		return c.keys[c.activeKID], nil
	}
	key, ok := c.keys[kid]
	if !ok {
		return nil, fmt.Errorf("unknown kid %q", kid)
	}
	return key, nil
}
