package middleware

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/schoolerp/api/transport"
	"github.com/fastygo/schoolerp/domain"
	"github.com/fastygo/schoolerp/pkg/httpcontext"
)

// Middleware wraps a handler.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Claims is the token payload issued by the identity service.
type Claims struct {
	UserID      string   `json:"user_id"`
	TenantID    string   `json:"tenant_id"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// JWTAuth verifies the bearer token and stores the caller as the request actor. An empty issuer
// accepts any issuer.
func JWTAuth(secret, issuer string, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				reject(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, "missing bearer token")
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				reject(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid token")
				return
			}
			if issuer != "" && !claims.VerifyIssuer(issuer, true) {
				logger.Warn("jwt issuer mismatch", zap.String("issuer", claims.Issuer))
				reject(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, "invalid token")
				return
			}
			if claims.UserID == "" {
				claims.UserID = claims.Subject
			}
			if claims.UserID == "" {
				reject(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, "token has no user")
				return
			}

			httpcontext.SetActor(ctx, domain.Actor{
				ID:          claims.UserID,
				TenantID:    claims.TenantID,
				IP:          httpcontext.ClientIP(ctx),
				Permissions: claims.Permissions,
			})
			next(ctx)
		}
	}
}

// RequirePermission lets the request through only when the actor holds perm.
func RequirePermission(perm domain.Permission) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			if !allowed(ctx, perm) {
				return
			}
			next(ctx)
		}
	}
}

// RequireModulePermission resolves the {module} route parameter and checks its read or write
// permission.
func RequireModulePermission(write bool) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			name, _ := ctx.UserValue("module").(string)
			module, err := domain.ParseModule(name)
			if err != nil {
				reject(ctx, fasthttp.StatusBadRequest, domain.ErrCodeInvalid, fmt.Sprintf("unknown settings module %q", name))
				return
			}
			if !allowed(ctx, domain.ModulePermission(module, write)) {
				return
			}
			next(ctx)
		}
	}
}

// Chain applies middlewares so the first one runs outermost.
func Chain(h fasthttp.RequestHandler, mws ...Middleware) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func allowed(ctx *fasthttp.RequestCtx, perm domain.Permission) bool {
	actor, ok := httpcontext.ActorFrom(ctx)
	if !ok {
		reject(ctx, fasthttp.StatusUnauthorized, domain.ErrCodeUnauthorized, "unauthorized")
		return false
	}
	if !actor.Can(perm) {
		reject(ctx, fasthttp.StatusForbidden, domain.ErrCodeForbidden, "missing permission "+string(perm))
		return false
	}
	return true
}

func reject(ctx *fasthttp.RequestCtx, status int, code domain.ErrorCode, message string) {
	body, _ := json.Marshal(transport.NewError(status, string(code), message, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
