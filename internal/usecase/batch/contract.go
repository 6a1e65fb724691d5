package batch

import (
	"context"

	"github.com/kailas-cloud/rankfuse/internal/domain/fusion"
)

// Pipeline runs one fusion search.
type Pipeline interface {
	Search(ctx context.Context, req fusion.Request) (fusion.Response, error)
}
