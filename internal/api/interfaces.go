package api

import (
	"context"
	"encoding/json"

	"github.com/p-arndt/codebox/internal/session"
	"github.com/p-arndt/codebox/protocol"
)

// ToolInvoker is the tool table the invocation endpoints dispatch into.
type ToolInvoker interface {
	List() []protocol.ToolInfo
	Call(ctx context.Context, name string, args json.RawMessage) (any, error)
}

// SessionService abstracts the session queries exposed for operators.
type SessionService interface {
	Get(ctx context.Context, id string) (*session.SessionInfo, error)
	List(ctx context.Context) []session.SessionInfo
	Destroy(ctx context.Context, id string) error
}
