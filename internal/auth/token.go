package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the validity window assigned to every issued token.
const DefaultSessionTTL = 7 * 24 * time.Hour

// Claims is the identity payload carried inside a session token. Timestamps
// are epoch seconds; validity is decided entirely by the signature and
// ExpiresAt, there is no server-side revocation list.
type Claims struct {
	AccountID          string `json:"accountId"`
	Email              string `json:"email"`
	Role               Role   `json:"role"`
	MustChangePassword bool   `json:"mustChangePassword,omitempty"`
	IssuedAt           int64  `json:"issuedAt"`
	ExpiresAt          int64  `json:"expiresAt"`
}

// jwt.Claims implementation so the library validates expiry for us.

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) {
	if c.ExpiresAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.ExpiresAt, 0)), nil
}

func (c Claims) GetIssuedAt() (*jwt.NumericDate, error) {
	if c.IssuedAt == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(c.IssuedAt, 0)), nil
}

func (c Claims) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (c Claims) GetIssuer() (string, error)              { return "", nil }
func (c Claims) GetSubject() (string, error)             { return c.AccountID, nil }
func (c Claims) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// TokenCodec signs and verifies session tokens with HS256 over a single
// process-wide secret. Rotating the secret invalidates every outstanding
// token.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec builds a codec. A non-positive ttl falls back to
// DefaultSessionTTL; an empty secret is a construction error so the process
// fails at startup rather than per request.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the validity window assigned at issuance.
func (t *TokenCodec) TTL() time.Duration { return t.ttl }

// Encode signs the claims and returns the compact token. IssuedAt and
// ExpiresAt are always server-assigned; caller-supplied values are ignored
// so a client cannot request a long-lived token.
func (t *TokenCodec) Encode(claims *Claims) (string, error) {
	if claims == nil || strings.TrimSpace(claims.AccountID) == "" {
		return "", errors.New("auth: accountId is required")
	}
	now := t.now().UTC()
	claims.IssuedAt = now.Unix()
	claims.ExpiresAt = now.Add(t.ttl).Unix()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Decode verifies the signature before trusting any claim, then checks
// expiry. A token whose ExpiresAt equals the current second is already
// expired. All failures match ErrTokenInvalid; expiry additionally matches
// ErrTokenExpired for audit text.
func (t *TokenCodec) Decode(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrTokenInvalid
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, ErrTokenInvalid
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, ErrTokenInvalid
	}
	if strings.TrimSpace(claims.AccountID) == "" || !claims.Role.Valid() {
		return Claims{}, ErrTokenInvalid
	}
	return *claims, nil
}
