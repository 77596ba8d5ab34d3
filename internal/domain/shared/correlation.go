package shared

import "context"

type correlationKey struct{}

// ContextWithCorrelationID tags ctx so events written further down carry the request's correlation id.
func ContextWithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey{}, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
