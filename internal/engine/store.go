package engine

import (
	"context"
	"time"

	"github.com/ignite/payout-sync/internal/ringba"
)

// RowStore is the minimal capability the engine needs from the tabular
// store. Rows are addressed by 1-based position; row 1 is the header.
// There is no atomicity across calls, so every destructive pass buffers
// the full row set first and issues deletes in descending position order.
type RowStore interface {
	ReadAll(ctx context.Context) ([][]string, error)
	WriteHeader(ctx context.Context, names []string) error
	OverwriteRange(ctx context.Context, startRow int, rows [][]string) error
	AppendAfterLast(ctx context.Context, rows [][]string) error
	DeleteRow(ctx context.Context, position int) error
	PatchCell(ctx context.Context, row, col int, value string) error
}

// Fetcher pulls aggregated payout rows from the reporting API for an
// explicit UTC range. Pure read; errors surface unchanged.
type Fetcher interface {
	FetchPayouts(ctx context.Context, startUTC, endUTC time.Time, groupBy []ringba.Dimension) ([]ringba.PayoutRecord, error)
}
