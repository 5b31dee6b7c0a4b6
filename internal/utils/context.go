package utils

import (
	"context"
)

type CustomContext struct {
	AppSource string
	AccountID string
	RunID     string
}

type customContextKey struct{}

func WithCustomContext(ctx context.Context, customContext *CustomContext) context.Context {
	return context.WithValue(ctx, customContextKey{}, customContext)
}

func GetContext(ctx context.Context) *CustomContext {
	customContext, ok := ctx.Value(customContextKey{}).(*CustomContext)
	if !ok {
		return new(CustomContext)
	}
	return customContext
}

func GetAppSourceFromContext(ctx context.Context) string {
	return GetContext(ctx).AppSource
}

func GetAccountIDFromContext(ctx context.Context) string {
	return GetContext(ctx).AccountID
}

func GetRunIDFromContext(ctx context.Context) string {
	return GetContext(ctx).RunID
}

func SetAppSourceInContext(ctx context.Context, appSource string) context.Context {
	customContext := *GetContext(ctx)
	customContext.AppSource = appSource
	return WithCustomContext(ctx, &customContext)
}

// SetAccountInContext scopes ctx to one account run. The parent value is copied, not mutated.
func SetAccountInContext(ctx context.Context, accountID, runID string) context.Context {
	customContext := *GetContext(ctx)
	customContext.AccountID = accountID
	customContext.RunID = runID
	return WithCustomContext(ctx, &customContext)
}
