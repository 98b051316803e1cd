// Package net provides utilities for working with request contexts
package net

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// ctxKey is an unexported key type for context values
type ctxKey string

const (
	keyUserID ctxKey = "user_id"
	keyScopes ctxKey = "scopes"
)

// WithRequest annotates context with the request id so chimw.GetReqID works
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID != "" {
		ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	}
	return ctx
}

// WithUser annotates context with the authenticated user id
func WithUser(ctx context.Context, userID string) context.Context {
	if userID != "" {
		ctx = context.WithValue(ctx, keyUserID, userID)
	}
	return ctx
}

// WithScopes annotates context with the granted authorization scopes
func WithScopes(ctx context.Context, scopes []string) context.Context {
	if len(scopes) > 0 {
		ctx = context.WithValue(ctx, keyScopes, scopes)
	}
	return ctx
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string {
	if v := chimw.GetReqID(ctx); v != "" {
		return v
	}
	return ""
}

// UserID returns the user id on the context if present
func UserID(ctx context.Context) string {
	if v, ok := ctx.Value(keyUserID).(string); ok {
		return v
	}
	return ""
}

// Scopes returns the granted scopes on the context, nil when unauthenticated
func Scopes(ctx context.Context) []string {
	if v, ok := ctx.Value(keyScopes).([]string); ok {
		return v
	}
	return nil
}
