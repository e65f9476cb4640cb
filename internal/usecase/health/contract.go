package health

import "context"

// CachePinger checks result cache availability.
type CachePinger interface {
	Ping(ctx context.Context) error
}

// EngineChecker runs a small projection end to end.
type EngineChecker interface {
	SelfCheck(ctx context.Context) error
}
