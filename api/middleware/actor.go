package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/haiminhle/storefront-backend/api/responses"
	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
	"github.com/haiminhle/storefront-backend/pkg/logger"
)

type contextKey string

const (
	ctxActorID   contextKey = "actor_id"
	ctxActorRole contextKey = "actor_role"
)

const (
	actorIDHeader   = "X-User-Id"
	actorRoleHeader = "X-Actor-Role"
)

// Role values set by the upstream gateway.
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// ActorContext lifts the identity headers set by the auth gateway into the
// request context. Requests without an identity pass through; handlers that
// need one sit behind RequireActor.
func ActorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if raw := r.Header.Get(actorIDHeader); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed identity header"))
					return
				}
				ctx = context.WithValue(ctx, ctxActorID, id)
				if logg != nil {
					ctx = logg.WithUserID(ctx, id.String())
				}
			}

			if role := r.Header.Get(actorRoleHeader); role != "" {
				ctx = context.WithValue(ctx, ctxActorRole, role)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireActor rejects requests whose identity headers were absent.
func RequireActor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := ActorIDFromContext(r.Context()); !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireStaff rejects requests whose actor is not staff.
func RequireStaff(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFromContext(r.Context()) != RoleStaff {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ActorIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if ctx == nil {
		return uuid.Nil, false
	}
	id, ok := ctx.Value(ctxActorID).(uuid.UUID)
	return id, ok
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorRole).(string); ok {
		return v
	}
	return ""
}

// WithActor injects an identity into the context. Test helper and internal
// callers only; HTTP traffic goes through ActorContext.
func WithActor(ctx context.Context, id uuid.UUID, role string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxActorID, id)
	if role != "" {
		ctx = context.WithValue(ctx, ctxActorRole, role)
	}
	return ctx
}
