package httptransport

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"flamenco-core/internal/entity"
)

// Claims carried by access tokens. The subject is the user id.
type Claims struct {
	Roles  []string `json:"roles,omitempty"`
	Groups []string `json:"groups,omitempty"`
	jwt.RegisteredClaims
}

type actorKey struct{}

func withActor(ctx context.Context, a entity.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor stored by Authenticate.
func ActorFrom(ctx context.Context) (entity.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(entity.Actor)
	return a, ok
}

// Authenticate verifies an HS256 bearer token and stores the caller as an
// entity.Actor in the request context.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	keyFunc := func(*jwt.Token) (any, error) { return secret, nil }

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || raw == "" {
				writeErr(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			var claims Claims
			if _, err := parser.ParseWithClaims(raw, &claims, keyFunc); err != nil {
				writeErr(w, http.StatusUnauthorized, "invalid token")
				return
			}
			actor, err := claims.actor()
			if err != nil {
				writeErr(w, http.StatusUnauthorized, err.Error())
				return
			}

			noteUser(r.Context(), actor.UserID)
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

func (c Claims) actor() (entity.Actor, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return entity.Actor{}, errors.New("token subject is not a user id")
	}
	a := entity.Actor{UserID: id, Roles: c.Roles, Groups: make([]uuid.UUID, 0, len(c.Groups))}
	for _, g := range c.Groups {
		gid, err := uuid.Parse(g)
		if err != nil {
			return entity.Actor{}, errors.New("token group is not a uuid")
		}
		a.Groups = append(a.Groups, gid)
	}
	return a, nil
}

// SignToken issues a token for actor. Used by tests and dev tooling.
func SignToken(secret []byte, actor entity.Actor) (string, error) {
	claims := Claims{
		Roles:            actor.Roles,
		RegisteredClaims: jwt.RegisteredClaims{Subject: actor.UserID.String()},
	}
	for _, g := range actor.Groups {
		claims.Groups = append(claims.Groups, g.String())
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
