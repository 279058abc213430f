package execution

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/chainagent/chainagent/internal/delegation"
	"github.com/chainagent/chainagent/internal/eventbus"
	"github.com/chainagent/chainagent/internal/oracle"
	"github.com/chainagent/chainagent/internal/permission"
	"github.com/chainagent/chainagent/internal/quota"
	"github.com/chainagent/chainagent/pkg/cerr"
)

// TriggeredPayload is emitted when a swap attempt passes the quota gate.
type TriggeredPayload struct {
	User     string `json:"user"`
	Executor string `json:"executor"`
	Amount   int64  `json:"amount"`
	Price    int64  `json:"price"`
}

// SwapPayload is emitted when a swap has been committed and recorded.
type SwapPayload struct {
	User      string   `json:"user"`
	TokenIn   string   `json:"tokenIn"`
	TokenOut  string   `json:"tokenOut"`
	AmountIn  int64    `json:"amountIn"`
	AmountOut *big.Int `json:"amountOut"`
	Price     int64    `json:"price"`
}

// QuotaExceededPayload is emitted when the ledger rejects a spend.
type QuotaExceededPayload struct {
	User      string `json:"user"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

// Folder receives committed records, one at a time, in commit order. It
// is implemented by the stats aggregator.
type Folder interface {
	Fold(rec *Record)
}

// Outcome tags the result of a trigger attempt. A dip that has not
// happened and a quota that is exhausted are expected outcomes of
// polling, not errors, so they travel in the Result rather than in the
// error return.
type Outcome string

const (
	OutcomeExecuted      Outcome = "executed"
	OutcomeDipNotMet     Outcome = "dip_not_met"
	OutcomeQuotaExceeded Outcome = "quota_exceeded"
)

// Result reports what a trigger attempt did. Record is set only for
// OutcomeExecuted; Requested and Available only for
// OutcomeQuotaExceeded. Price and DropBps are set whenever the price
// check ran.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	Price     int64   `json:"price"`
	DropBps   int64   `json:"dropBps"`
	Record    *Record `json:"record,omitempty"`
	Requested int64   `json:"requested,omitempty"`
	Available int64   `json:"available,omitempty"`
}

// Engine orchestrates a trigger attempt: validate the delegation and
// its parent permission, gate on the price dip, commit the spend
// against the ledger, then record the swap and fold it into stats.
// Each call is a fresh attempt; the engine keeps no state between
// calls beyond the append-only record log.
type Engine struct {
	delegs     *delegation.Registry
	perms      *permission.Registry
	ledger     *quota.Ledger
	oracle     oracle.Oracle
	repo       Repository
	bus        *eventbus.Bus
	stats      Folder
	quoteToken string
	baseToken  string
	now        func() time.Time
}

func NewEngine(
	delegs *delegation.Registry,
	perms *permission.Registry,
	ledger *quota.Ledger,
	orc oracle.Oracle,
	repo Repository,
	bus *eventbus.Bus,
	stats Folder,
	quoteToken, baseToken string,
) *Engine {
	return &Engine{
		delegs:     delegs,
		perms:      perms,
		ledger:     ledger,
		oracle:     orc,
		repo:       repo,
		bus:        bus,
		stats:      stats,
		quoteToken: quoteToken,
		baseToken:  baseToken,
		now:        time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	e.now = now
}

// ExecuteSwap runs one trigger attempt for (user, executor) spending
// amountIn of the quote token. The parent permission is re-validated on
// every call regardless of the delegation's stored flag, so a revoked
// or expired permission makes its delegations unusable immediately.
func (e *Engine) ExecuteSwap(ctx context.Context, executor, user string, amountIn int64) (*Result, error) {
	if amountIn <= 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "amount must be positive", nil)
	}

	d, err := e.delegs.Get(ctx, user, executor)
	if err != nil {
		return nil, err
	}
	if d == nil || !d.Active {
		return nil, cerr.NewError(cerr.PermissionDenied, "no active delegation for this executor", nil)
	}
	p, err := e.perms.Get(ctx, user)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.Active {
		return nil, cerr.NewError(cerr.FailedPrecondition, "permission not active", nil)
	}
	if amountIn > d.DailyLimit {
		return nil, cerr.NewError(cerr.InvalidArgument, "amount exceeds the delegated daily limit", nil)
	}

	dip, err := e.oracle.CheckPriceDip(ctx, e.baseToken, p.TargetDipBps)
	if err != nil {
		return nil, err
	}
	if !dip.Dipped {
		metricDipNotMet.Inc()
		return &Result{
			Outcome: OutcomeDipNotMet,
			Price:   dip.Price,
			DropBps: dip.DropBps,
		}, nil
	}

	now := e.now()
	if err := e.ledger.ReserveAndCommit(ctx, user, amountIn, now); err != nil {
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			metricQuotaRejected.Inc()
			e.bus.PublishNew(eventbus.TypeQuotaExceeded, user, QuotaExceededPayload{
				User:      user,
				Requested: exceeded.Requested,
				Available: exceeded.Available,
			})
			return &Result{
				Outcome:   OutcomeQuotaExceeded,
				Price:     dip.Price,
				DropBps:   dip.DropBps,
				Requested: exceeded.Requested,
				Available: exceeded.Available,
			}, nil
		}
		return nil, err
	}

	rec := &Record{
		ID:        ulid.Make().String(),
		User:      user,
		Executor:  executor,
		TokenIn:   e.quoteToken,
		TokenOut:  e.baseToken,
		AmountIn:  amountIn,
		AmountOut: BaseOut(amountIn, dip.Price),
		Price:     dip.Price,
		Timestamp: now,
	}

	// The spend is already committed; a failed append must not undo
	// it, so log and carry on. Startup replay tolerates the gap.
	if err := e.repo.Append(ctx, rec); err != nil {
		slog.ErrorContext(ctx, "failed to append execution record", "id", rec.ID, "user", user, "error", err)
	}
	if e.stats != nil {
		e.stats.Fold(rec)
	}

	metricSwapsExecuted.Inc()
	metricQuoteSpent.Add(float64(amountIn))

	e.bus.PublishNew(eventbus.TypeExecutionTriggered, user, TriggeredPayload{
		User:     user,
		Executor: executor,
		Amount:   amountIn,
		Price:    dip.Price,
	})
	e.bus.PublishNew(eventbus.TypeSwapExecuted, user, SwapPayload{
		User:      user,
		TokenIn:   rec.TokenIn,
		TokenOut:  rec.TokenOut,
		AmountIn:  rec.AmountIn,
		AmountOut: rec.AmountOut,
		Price:     rec.Price,
	})

	return &Result{
		Outcome: OutcomeExecuted,
		Price:   dip.Price,
		DropBps: dip.DropBps,
		Record:  rec,
	}, nil
}

// History returns the committed record log in append order.
func (e *Engine) History(ctx context.Context) ([]*Record, error) {
	return e.repo.List(ctx)
}
