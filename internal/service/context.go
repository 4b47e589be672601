package service

import "context"

type contextKey string

const (
	operatorKey contextKey = "operator"
	traceKey    contextKey = "trace"
)

// OperatorInfo defines the structured identity of a signed-in user
type OperatorInfo struct {
	UserID string
	Name   string
	Role   string
}

// WithOperator injects the operator info into the context
func WithOperator(ctx context.Context, op *OperatorInfo) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// GetOperatorInfo retrieves the operator info from the context
func GetOperatorInfo(ctx context.Context) *OperatorInfo {
	val, ok := ctx.Value(operatorKey).(*OperatorInfo)
	if !ok {
		return nil
	}
	return val
}

// WithTraceID stamps the request's trace id into the context
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey, id)
}

// GetTraceID retrieves the trace id, empty for untraced work
func GetTraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey).(string)
	return id
}

// GetOperator returns the username, defaulting to "system" for background work
func GetOperator(ctx context.Context) string {
	op := GetOperatorInfo(ctx)
	if op == nil {
		return "system"
	}
	return op.Name
}
