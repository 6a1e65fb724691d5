package rankfuse

import "github.com/kailas-cloud/rankfuse/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation     = domain.ErrValidation
	ErrConfiguration  = domain.ErrConfiguration
	ErrRetrieval      = domain.ErrRetrieval
	ErrReranking      = domain.ErrReranking
	ErrPipeline       = domain.ErrPipeline
	ErrConnection     = domain.ErrConnection
	ErrAuthentication = domain.ErrAuthentication
	ErrIndexNotFound  = domain.ErrIndexNotFound
	ErrBadRequest     = domain.ErrBadRequest
	ErrTimeout        = domain.ErrTimeout
	ErrRateLimited    = domain.ErrRateLimited
	ErrQuotaExceeded  = domain.ErrQuotaExceeded
	ErrScorerAPI      = domain.ErrScorerAPI
)
