package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type contextKey int

const tenantIDKey contextKey = iota

// errUnauthorized is returned to MCP clients whose request carries no usable
// bearer token.
var errUnauthorized = errors.New("unauthorized")

// getTenantID extracts tenant ID from context.
func getTenantID(ctx context.Context) string {
	v, _ := ctx.Value(tenantIDKey).(string)
	return v
}

// TenantResolver resolves a tenant ID from a bearer token.
type TenantResolver interface {
	ResolveTenant(ctx context.Context, token string) (string, error)
}

// tenantFunc decides which tenant a request acts for.
type tenantFunc func(ctx context.Context, req sdkmcp.Request) (string, error)

// tenantMiddleware stores the resolved tenant in the context of every
// request except protocol housekeeping.
func tenantMiddleware(resolve tenantFunc) sdkmcp.Middleware {
	return func(next sdkmcp.MethodHandler) sdkmcp.MethodHandler {
		return func(ctx context.Context, method string, req sdkmcp.Request) (sdkmcp.Result, error) {
			if method == "initialize" || method == "ping" || strings.HasPrefix(method, "notifications/") {
				return next(ctx, method, req)
			}
			tenantID, err := resolve(ctx, req)
			if err != nil {
				return nil, err
			}
			return next(context.WithValue(ctx, tenantIDKey, tenantID), method, req)
		}
	}
}

// bearerTenant resolves the tenant from the Authorization header of an
// HTTP request.
func bearerTenant(resolver TenantResolver) tenantFunc {
	return func(ctx context.Context, req sdkmcp.Request) (string, error) {
		extra := req.GetExtra()
		if extra == nil || extra.Header == nil {
			return "", fmt.Errorf("%w: missing headers", errUnauthorized)
		}
		token := strings.TrimSpace(strings.TrimPrefix(extra.Header.Get("Authorization"), "Bearer "))
		if token == "" {
			return "", fmt.Errorf("%w: missing bearer token", errUnauthorized)
		}
		tenantID, err := resolver.ResolveTenant(ctx, token)
		if err != nil || tenantID == "" {
			return "", fmt.Errorf("%w: invalid bearer token", errUnauthorized)
		}
		return tenantID, nil
	}
}

// fixedTenant assigns every request to tenantID.
func fixedTenant(tenantID string) tenantFunc {
	return func(context.Context, sdkmcp.Request) (string, error) {
		return tenantID, nil
	}
}

// actorFromRequest returns the X-Actor-Id header of an HTTP tool call.
func actorFromRequest(req *sdkmcp.CallToolRequest) string {
	if req == nil || req.Extra == nil || req.Extra.Header == nil {
		return ""
	}
	return strings.TrimSpace(req.Extra.Header.Get("X-Actor-Id"))
}
