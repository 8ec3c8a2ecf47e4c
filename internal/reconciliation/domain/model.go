package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	orderdomain "github.com/smallbiznis/bakehouse/internal/order/domain"
	"github.com/smallbiznis/bakehouse/pkg/apperror"
)

type Service interface {
	// ReconcilePrices re-prices stored order lines at their order date and
	// corrects the ones that drifted beyond the configured threshold.
	ReconcilePrices(ctx context.Context, filter Filter) (Summary, error)
}

// Locker guards a batch run across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

// Filter narrows the orders considered. Zero values match everything and
// Limit caps the number of orders.
type Filter struct {
	OrderIDs []snowflake.ID       `json:"order_ids"`
	From     *time.Time           `json:"from"`
	To       *time.Time           `json:"to"`
	Statuses []orderdomain.Status `json:"statuses"`
	Limit    int                  `json:"limit"`
}

type Failure struct {
	OrderID snowflake.ID `json:"order_id"`
	Reason  string       `json:"reason"`
}

type Summary struct {
	RunID           string    `json:"run_id"`
	Checked         int       `json:"checked"`
	Corrected       int       `json:"corrected"`
	Skipped         int       `json:"skipped"`
	OrdersChecked   int       `json:"orders_checked"`
	OrdersCorrected int       `json:"orders_corrected"`
	Failed          int       `json:"failed"`
	Failures        []Failure `json:"failures,omitempty"`
}

// Drifted reports whether next differs from stored by more than threshold,
// relative to stored. Any move away from a stored zero counts as drift.
func Drifted(stored, next, threshold decimal.Decimal) bool {
	if stored.IsZero() {
		return !next.IsZero()
	}
	return next.Sub(stored).Abs().Div(stored.Abs()).GreaterThan(threshold)
}

var ErrRunInProgress = apperror.New(apperror.KindConflict, "reconciliation_in_progress")
