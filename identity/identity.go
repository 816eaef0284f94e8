/*
identity.go - Bearer token resolution

PURPOSE:
  Turns the Authorization header of a call into the directory.Actor every
  engine operation takes. Tokens are HS256 JWTs whose subject is the
  employee id and whose "role" claim names the role.

  Credentials and login are out of scope: tokens are minted by the
  `token` CLI command or by an upstream gateway sharing the secret.

RESOLUTION:
  1. Verify signature, expiry and issuer
  2. Look the subject up in the directory (when one is configured)
  3. Inactive or unknown employees are rejected
  4. The directory role wins over the token role, so a demotion takes
     effect before the token expires

SEE ALSO:
  - middleware.go: chi/net/http integration
  - directory/types.go: Actor and capabilities
*/
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/leave-governance/directory"
	"github.com/warp/leave-governance/generic"
)

// Claims is the token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies bearer tokens.
type Tokens struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

func NewTokens(secret, issuer string, ttl time.Duration) *Tokens {
	return &Tokens{Secret: []byte(secret), Issuer: issuer, TTL: ttl, Now: time.Now}
}

func (t *Tokens) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return time.Now()
}

// Issue signs a token for actor.
func (t *Tokens) Issue(actor directory.Actor) (string, error) {
	if len(t.Secret) == 0 {
		return "", errors.New("identity: empty signing secret")
	}
	if !actor.Role.Valid() {
		return "", generic.Validation("unknown role %q", actor.Role)
	}
	now := t.now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(actor.EmployeeID),
			Issuer:    t.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.TTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

// Parse verifies raw and returns the actor it names.
func (t *Tokens) Parse(raw string) (directory.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
		jwt.WithExpirationRequired(),
	}
	if t.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.Secret, nil
	}, opts...)
	if err != nil {
		return directory.Actor{}, generic.Unauthenticated("invalid token: %v", err)
	}
	if !token.Valid || claims.Subject == "" {
		return directory.Actor{}, generic.Unauthenticated("invalid token")
	}
	role, err := directory.ParseRole(claims.Role)
	if err != nil {
		return directory.Actor{}, generic.Unauthenticated("invalid token role %q", claims.Role)
	}
	return directory.Actor{EmployeeID: generic.EntityID(claims.Subject), Role: role}, nil
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver maps an Authorization header to an actor.
type Resolver struct {
	Tokens    *Tokens
	Directory directory.Reader
}

func NewResolver(tokens *Tokens, dir directory.Reader) *Resolver {
	return &Resolver{Tokens: tokens, Directory: dir}
}

// Resolve accepts "Bearer <token>".
func (r *Resolver) Resolve(ctx context.Context, header string) (directory.Actor, error) {
	scheme, raw, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return directory.Actor{}, generic.Unauthenticated("missing bearer token")
	}
	actor, err := r.Tokens.Parse(strings.TrimSpace(raw))
	if err != nil {
		return directory.Actor{}, err
	}
	if r.Directory == nil {
		return actor, nil
	}

	e, err := r.Directory.GetEmployee(ctx, string(actor.EmployeeID))
	if errors.Is(err, generic.ErrEntityNotFound) {
		return directory.Actor{}, generic.Unauthenticated("unknown employee %s", actor.EmployeeID)
	}
	if err != nil {
		return directory.Actor{}, generic.Internal(err, fmt.Sprintf("resolve %s", actor.EmployeeID))
	}
	if !e.Active {
		return directory.Actor{}, generic.Unauthenticated("employee %s is inactive", e.ID)
	}
	actor.Role = e.Role
	return actor, nil
}

// =============================================================================
// CONTEXT
// =============================================================================

type actorKey struct{}

func WithActor(ctx context.Context, a directory.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func FromContext(ctx context.Context) (directory.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(directory.Actor)
	return a, ok
}
