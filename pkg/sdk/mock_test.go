package rankfuse

import (
	"context"

	domfusion "github.com/kailas-cloud/rankfuse/internal/domain/fusion"
	healthuc "github.com/kailas-cloud/rankfuse/internal/usecase/health"
)

// --- fusionUseCase mock ---

type mockFusionUC struct {
	searchFn func(ctx context.Context, req domfusion.Request) (domfusion.Response, error)
}

func (m *mockFusionUC) Search(ctx context.Context, req domfusion.Request) (domfusion.Response, error) {
	return m.searchFn(ctx, req)
}

// --- batchUseCase mock ---

type mockBatchUC struct {
	runFn func(ctx context.Context, reqs []domfusion.Request, maxConcurrent int) ([]domfusion.Response, error)
}

func (m *mockBatchUC) Run(
	ctx context.Context, reqs []domfusion.Request, maxConcurrent int,
) ([]domfusion.Response, error) {
	return m.runFn(ctx, reqs, maxConcurrent)
}

// --- healthUseCase mock ---

type mockHealthUC struct {
	checkFn func(ctx context.Context) healthuc.Report
}

func (m *mockHealthUC) Check(ctx context.Context) healthuc.Report {
	return m.checkFn(ctx)
}

// --- helpers ---

func testClient(
	fusionSvc fusionUseCase,
	batchSvc batchUseCase,
	healthSvc healthUseCase,
) *Client {
	return &Client{
		defaults:  domfusion.DefaultConfig(),
		fusionSvc: fusionSvc,
		batchSvc:  batchSvc,
		healthSvc: healthSvc,
	}
}
