package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"github.com/udhaarplus/backend/internal/models"
)

// Actor is the already-authenticated identity behind a request. The
// core trusts these fields; it is handed to every mutating operation
// explicitly rather than read from ambient state.
type Actor struct {
	UserID int64
	Role   string
	// ShopID is the shop the actor owns; zero for customers.
	ShopID int64
}

// IsShopkeeperOf reports whether the actor owns the given shop.
func (a Actor) IsShopkeeperOf(shopID int64) bool {
	return a.Role == models.RoleShopkeeper && a.ShopID == shopID
}

type actorContextKey struct{}

// ActorFromContext returns the authenticated actor set by AuthMiddleware.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// WithActor returns a context carrying the given actor, as
// AuthMiddleware would have produced.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// AuthMiddleware verifies the bearer token issued by the identity
// provider and places the resulting Actor in the request context.
func AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			http.Error(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
			return
		}

		actor, err := validateToken(parts[1])
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func validateToken(tokenString string) (Actor, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	if err != nil || !token.Valid {
		return Actor{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, jwt.ErrTokenInvalidClaims
	}

	actor := Actor{}
	if v, ok := claims["user_id"].(float64); ok {
		actor.UserID = int64(v)
	}
	if v, ok := claims["role"].(string); ok {
		actor.Role = v
	}
	if v, ok := claims["shop_id"].(float64); ok {
		actor.ShopID = int64(v)
	}
	return actor, nil
}

// SecurityHeaders sets the usual hardening headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
