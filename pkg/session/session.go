// Package session issues and revokes the signed tokens that represent an
// authenticated account. Tokens are HS256 JWTs; revocation is tracked in
// Redis keyed by token id, so invalidation takes effect across instances
// before the token's natural expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/platinummonkey/warden/pkg/faults"
	"github.com/platinummonkey/warden/pkg/observability"
)

// DefaultTTL is the token lifetime when none is configured.
const DefaultTTL = 12 * time.Hour

const revokedKeyPrefix = "session:revoked:"

// Identity is the authenticated principal carried by a valid token.
type Identity struct {
	UserID  int64
	Email   string
	Roles   []string
	TokenID string
	Expires time.Time
}

// Service issues, validates and revokes session tokens.
type Service struct {
	secret  []byte
	issuer  string
	ttl     time.Duration
	redis   *redis.Client
	metrics *observability.Metrics
}

// NewService creates a session service. The signing secret must be non-empty.
func NewService(secret []byte, issuer string, ttl time.Duration, redisClient *redis.Client, metrics *observability.Metrics) (*Service, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session signing secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Service{
		secret:  secret,
		issuer:  issuer,
		ttl:     ttl,
		redis:   redisClient,
		metrics: metrics,
	}, nil
}

// Issue signs a new token for the account. Each token carries a unique id so
// it can be revoked individually.
func (s *Service) Issue(ctx context.Context, userID int64, email string, roles []string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"iss":   s.issuer,
		"sub":   strconv.FormatInt(userID, 10),
		"email": email,
		"roles": roles,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	s.metrics.SessionTokensIssuedTotal.Inc()
	return token, nil
}

// Invalidate revokes a token. Revoking an already-revoked, expired, unknown
// or malformed token is a no-op, not an error. The revocation marker expires
// with the token itself.
func (s *Service) Invalidate(ctx context.Context, token string) error {
	claims, err := s.parse(token)
	if err != nil {
		// Expired, malformed and foreign-signed tokens can never pass
		// validation again, so there is nothing to revoke.
		if faults.IsKind(err, faults.KindNotFound) || faults.IsKind(err, faults.KindValidation) {
			return nil
		}
		return err
	}

	jti, _ := claims["jti"].(string)
	if jti == "" {
		return nil
	}

	ttl := s.ttl
	if exp, ok := claims["exp"].(float64); ok {
		until := time.Until(time.Unix(int64(exp), 0))
		if until <= 0 {
			return nil
		}
		ttl = until
	}

	if err := s.redis.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return faults.Wrap(faults.KindPersistence, "failed to record token revocation", err)
	}

	s.metrics.SessionTokensInvalidatedTotal.Inc()
	return nil
}

// Identity validates a token and returns the principal it represents. Revoked
// and expired tokens both fail validation.
func (s *Service) Identity(ctx context.Context, token string) (*Identity, error) {
	claims, err := s.parse(token)
	if err != nil {
		return nil, err
	}

	jti, _ := claims["jti"].(string)
	if jti != "" {
		revoked, err := s.redis.Exists(ctx, revokedKeyPrefix+jti).Result()
		if err != nil {
			return nil, faults.Wrap(faults.KindPersistence, "failed to check token revocation", err)
		}
		if revoked > 0 {
			return nil, faults.New(faults.KindValidation, "session token has been revoked")
		}
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return nil, faults.New(faults.KindValidation, "session token has an invalid subject")
	}

	identity := &Identity{
		UserID:  userID,
		TokenID: jti,
	}
	identity.Email, _ = claims["email"].(string)
	if exp, ok := claims["exp"].(float64); ok {
		identity.Expires = time.Unix(int64(exp), 0).UTC()
	}
	if rawRoles, ok := claims["roles"].([]interface{}); ok {
		for _, r := range rawRoles {
			if role, ok := r.(string); ok {
				identity.Roles = append(identity.Roles, role)
			}
		}
	}

	return identity, nil
}

func (s *Service) parse(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, faults.Wrap(faults.KindNotFound, "session token has expired", err)
		}
		return nil, faults.Wrap(faults.KindValidation, "invalid session token", err)
	}
	if !parsed.Valid {
		return nil, faults.New(faults.KindValidation, "invalid session token")
	}

	return claims, nil
}
