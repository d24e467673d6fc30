package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/linkedge-backend/api/responses"
	pkgAuth "github.com/angelmondragon/linkedge-backend/pkg/auth"
	"github.com/angelmondragon/linkedge-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/linkedge-backend/pkg/errors"
	"github.com/angelmondragon/linkedge-backend/pkg/logger"
)

const defaultUserHeader = "X-User-Id"

// Identity resolves the acting user. A bearer token always wins; the
// upstream-injected user header is honored only when the deployment trusts
// it.
func Identity(jwtCfg config.JWTConfig, authCfg config.AuthConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	header := strings.TrimSpace(authCfg.UserHeader)
	if header == "" {
		header = defaultUserHeader
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			var userID uuid.UUID
			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				claims, err := pkgAuth.ParseAccessToken(jwtCfg, token)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				userID = claims.UserID
			} else if authCfg.TrustUserHeader {
				raw := strings.TrimSpace(r.Header.Get(header))
				if raw == "" {
					responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
					return
				}
				parsed, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user header"))
					return
				}
				userID = parsed
			} else {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			ctx = WithUserID(ctx, userID)
			if logg != nil {
				ctx = logg.WithUserID(ctx, userID.String())
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
