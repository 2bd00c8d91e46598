package channel

import (
	"context"

	"anydown/pkg/pipeline"
)

// Sink accepts one download request pulled off a transport. Adapters invoke
// it once per inbound link; each invocation owns its request end to end.
type Sink func(context.Context, pipeline.Request)

// Adapter bridges one external transport (for example Telegram) into anydown.
type Adapter interface {
	Name() string
	Run(context.Context, Sink) error
}
