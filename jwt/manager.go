package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	MethodEd25519 SigningMethod = "ed25519"
	MethodHS256   SigningMethod = "hs256"
)

var (
	// ErrSessionExpired is returned once a token is past exp (Parse) or past
	// its maximum lifetime (Parse and Refresh).
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionInvalid is returned for malformed, forged or foreign tokens.
	ErrSessionInvalid = errors.New("session invalid")
)

// Config controls token issuance and verification.
type Config struct {
	RefreshInterval time.Duration
	MaxLifetime     time.Duration
	SigningMethod   SigningMethod
	PrivateKey      []byte
	PublicKey       []byte
	Issuer          string
	Audience        string
	Leeway          time.Duration
	MaxFutureIAT    time.Duration
	KeyID           string
	VerifyKeys      map[string][]byte
}

// Manager signs and verifies session tokens. It is safe for concurrent use.
type Manager struct {
	config Config
}

// Identity is the account snapshot embedded in a session.
type Identity struct {
	AccountID string
	Email     string
	Name      string
	Role      string
}

// SessionClaims is the JWT payload.
type SessionClaims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Token is a signed session with its validity bounds.
type Token struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.RefreshInterval <= 0 || cfg.MaxLifetime <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshInterval > cfg.MaxLifetime {
		return nil, errors.New("refresh interval exceeds max lifetime")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.MaxFutureIAT == 0 {
		cfg.MaxFutureIAT = time.Minute
	}
	if cfg.MaxFutureIAT < 0 || cfg.MaxFutureIAT > time.Hour {
		return nil, errors.New("invalid MaxFutureIAT configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < 32 {
			return nil, errors.New("hs256 requires a key of at least 32 bytes")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	return &Manager{config: cfg}, nil
}

// Issue signs a new session for id authenticated at now.
func (j *Manager) Issue(id Identity, now time.Time) (Token, *SessionClaims, error) {
	claims := &SessionClaims{
		Email: id.Email,
		Name:  id.Name,
		Role:  id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.AccountID,
			Issuer:   j.config.Issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if j.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{j.config.Audience}
	}
	return j.sign(claims, now)
}

// Parse fully validates a session token at now: signature, issuer,
// audience, exp and maximum lifetime.
func (j *Manager) Parse(tokenStr string, now time.Time) (*SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	claims, err := j.parse(tokenStr, options)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if err := j.checkLifetime(claims, now); err != nil {
		return nil, err
	}
	return claims, nil
}

// Refresh verifies the signature of tokenStr, ignores an elapsed exp, and
// re-signs the same claims with exp = min(now+RefreshInterval,
// iat+MaxLifetime). A session older than MaxLifetime fails with
// ErrSessionExpired.
func (j *Manager) Refresh(tokenStr string, now time.Time) (Token, *SessionClaims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.getMethod().Alg()}),
		jwt.WithoutClaimsValidation(),
	}

	claims, err := j.parse(tokenStr, options)
	if err != nil {
		return Token{}, nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	}
	if j.config.Issuer != "" && claims.Issuer != j.config.Issuer {
		return Token{}, nil, fmt.Errorf("%w: issuer mismatch", ErrSessionInvalid)
	}
	if j.config.Audience != "" && !audienceContains(claims.Audience, j.config.Audience) {
		return Token{}, nil, fmt.Errorf("%w: audience mismatch", ErrSessionInvalid)
	}
	if err := j.checkLifetime(claims, now); err != nil {
		return Token{}, nil, err
	}

	return j.sign(claims, now)
}

func (j *Manager) sign(claims *SessionClaims, now time.Time) (Token, *SessionClaims, error) {
	iat := claims.IssuedAt.Time
	exp := now.Add(j.config.RefreshInterval)
	if hardStop := iat.Add(j.config.MaxLifetime); exp.After(hardStop) {
		exp = hardStop
	}
	claims.ExpiresAt = jwt.NewNumericDate(exp)
	claims.ID = uuid.NewString()

	token := jwt.NewWithClaims(j.getMethod(), claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}

	signKey, err := j.getSignKey()
	if err != nil {
		return Token{}, nil, err
	}
	value, err := token.SignedString(signKey)
	if err != nil {
		return Token{}, nil, err
	}

	return Token{Value: value, IssuedAt: iat, ExpiresAt: claims.ExpiresAt.Time}, claims, nil
}

func (j *Manager) checkLifetime(claims *SessionClaims, now time.Time) error {
	if claims.IssuedAt == nil {
		return fmt.Errorf("%w: missing iat", ErrSessionInvalid)
	}
	iat := claims.IssuedAt.Time
	if iat.After(now.Add(j.config.MaxFutureIAT)) {
		return fmt.Errorf("%w: iat too far in the future", ErrSessionInvalid)
	}
	if now.Sub(iat) > j.config.MaxLifetime {
		return ErrSessionExpired
	}
	if claims.Subject == "" {
		return fmt.Errorf("%w: missing subject", ErrSessionInvalid)
	}
	return nil
}

func (j *Manager) parse(tokenStr string, options []jwt.ParserOption) (*SessionClaims, error) {
	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(j.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := j.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return j.keyBytesToVerifyKey(key)
		}

		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return j.getVerifyKey()
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}

func (j *Manager) getMethod() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (j *Manager) getSignKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		if len(j.config.PrivateKey) == 0 {
			return nil, errors.New("manager has no signing key")
		}
		return parseEdPrivateKey(j.config.PrivateKey)
	}
}

func (j *Manager) getVerifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return j.config.PrivateKey, nil
	default:
		return parseEdPublicKey(j.config.PublicKey)
	}
}

func (j *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
