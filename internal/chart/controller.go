package chart

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"market-chart-lab/internal/domain"
	"market-chart-lab/internal/notify"
	"market-chart-lab/internal/observability"
	"market-chart-lab/internal/price"
	"market-chart-lab/internal/storage"
)

// ErrSessionClosed is returned to callers waiting on a session that was torn down.
var ErrSessionClosed = errors.New("market session closed")

// Controller defaults.
const (
	DefaultHistoryTimeout     = 15 * time.Second
	DefaultScanTimeout        = 60 * time.Second
	DefaultSubscriptionBuffer = 256
)

// OpenRequest opens a market view.
type OpenRequest struct {
	MarketID  string
	CreatedAt int64 // Unix seconds, 0 if unknown
	// ObservedYes is the caller's current view of the yes price, if any.
	ObservedYes *float64
	// ForceScan requests the ledger scan regardless of divergence.
	ForceScan bool
}

// Snapshot is the renderable state of the active session.
type Snapshot struct {
	SessionID uuid.UUID     `json:"sessionId"`
	MarketID  string        `json:"marketId"`
	Version   uint64        `json:"version"`
	Points    []RenderPoint `json:"points"`
}

// Options configures a Controller.
type Options struct {
	// Trades supplies indexer history. Nil means every history is empty.
	Trades storage.TradeReader
	// Scanner recovers points from ledger logs. Nil disables gap recovery.
	Scanner *Scanner
	// Bus delivers live notifications. Nil disables live updates.
	Bus *notify.Bus

	Clock               func() time.Time
	Logger              *zerolog.Logger
	DivergenceThreshold float64
	Gaps                GapConfig
	SubscriptionBuffer  int
	HistoryTimeout      time.Duration
	ScanTimeout         time.Duration
}

// Controller owns the active MarketSession. All session state is read and
// written only by the Run goroutine; network work runs on helper goroutines
// that post their results back as commands, tagged with the session id so
// results for a replaced session are discarded.
type Controller struct {
	opts   Options
	logger zerolog.Logger
	cmds   chan func()
	done   chan struct{}

	// Owned by the Run goroutine.
	runCtx         context.Context
	session        *Session
	sub            *notify.Subscription
	cancelWork     context.CancelFunc
	workCtx        context.Context
	historyApplied bool
	pending        int
	version        uint64
	openWaiters    []chan openResult
	idleWaiters    []chan error
	changeWaiters  []changeWaiter
}

type openResult struct {
	snap Snapshot
	err  error
}

type changeWaiter struct {
	since uint64
	reply chan openResult
}

// NewController creates a controller. Call Run to start it.
func NewController(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.DivergenceThreshold <= 0 {
		opts.DivergenceThreshold = DefaultDivergenceThreshold
	}
	if !opts.Gaps.Valid() {
		opts.Gaps = DefaultGapConfig()
	}
	if opts.SubscriptionBuffer <= 0 {
		opts.SubscriptionBuffer = DefaultSubscriptionBuffer
	}
	if opts.HistoryTimeout <= 0 {
		opts.HistoryTimeout = DefaultHistoryTimeout
	}
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = DefaultScanTimeout
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	return &Controller{
		opts:   opts,
		logger: logger.With().Str("component", "chart").Logger(),
		cmds:   make(chan func()),
		done:   make(chan struct{}),
	}
}

// Run processes commands and live notifications until ctx is done.
// It must be called exactly once.
func (c *Controller) Run(ctx context.Context) error {
	c.runCtx = ctx
	defer close(c.done)
	defer c.shutdown()

	for {
		var live <-chan notify.Message
		if c.sub != nil {
			live = c.sub.C()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-c.cmds:
			fn()
		case msg, ok := <-live:
			if !ok {
				c.sub = nil
				continue
			}
			c.handleLive(msg)
		}
	}
}

// Open makes marketID the displayed market and returns once its indexer
// history has been merged. Opening the market already displayed keeps the
// current session.
func (c *Controller) Open(ctx context.Context, req OpenRequest) (Snapshot, error) {
	req.MarketID = strings.TrimSpace(req.MarketID)
	if req.MarketID == "" {
		return Snapshot{}, ErrInvalidMarket
	}

	reply := make(chan openResult, 1)
	if err := c.send(ctx, func() { c.open(req, reply) }); err != nil {
		return Snapshot{}, err
	}
	res, err := await(ctx, c.done, reply)
	if err != nil {
		return Snapshot{}, err
	}
	return res.snap, res.err
}

// Close tears down the active session.
func (c *Controller) Close(ctx context.Context) error {
	reply := make(chan error, 1)
	err := c.send(ctx, func() {
		if c.session == nil {
			reply <- ErrNoSession
			return
		}
		c.logger.Info().Str("market", c.session.Market.MarketID).Msg("market session closed")
		c.teardown()
		c.version++
		c.notifyChange()
		reply <- nil
	})
	if err != nil {
		return err
	}
	res, err := await(ctx, c.done, reply)
	if err != nil {
		return err
	}
	return res
}

// Snapshot returns the gap-annotated series of the active session.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan openResult, 1)
	err := c.send(ctx, func() {
		if c.session == nil {
			reply <- openResult{err: ErrNoSession}
			return
		}
		reply <- openResult{snap: c.snapshot()}
	})
	if err != nil {
		return Snapshot{}, err
	}
	res, err := await(ctx, c.done, reply)
	if err != nil {
		return Snapshot{}, err
	}
	return res.snap, res.err
}

// Series returns the canonical, unannotated series of the active session.
func (c *Controller) Series(ctx context.Context) ([]domain.PricePoint, error) {
	type result struct {
		points []domain.PricePoint
		err    error
	}
	reply := make(chan result, 1)
	err := c.send(ctx, func() {
		if c.session == nil {
			reply <- result{err: ErrNoSession}
			return
		}
		reply <- result{points: c.session.merger.Series()}
	})
	if err != nil {
		return nil, err
	}
	res, err := await(ctx, c.done, reply)
	if err != nil {
		return nil, err
	}
	return res.points, res.err
}

// WaitChange blocks until the series version exceeds since and returns the
// new snapshot. It returns ErrNoSession if no session is open or the session
// is closed meanwhile.
func (c *Controller) WaitChange(ctx context.Context, since uint64) (Snapshot, error) {
	reply := make(chan openResult, 1)
	err := c.send(ctx, func() {
		if c.session == nil {
			reply <- openResult{err: ErrNoSession}
			return
		}
		if c.version > since {
			reply <- openResult{snap: c.snapshot()}
			return
		}
		c.changeWaiters = append(c.changeWaiters, changeWaiter{since: since, reply: reply})
	})
	if err != nil {
		return Snapshot{}, err
	}
	res, err := await(ctx, c.done, reply)
	if err != nil {
		return Snapshot{}, err
	}
	return res.snap, res.err
}

// WaitIdle blocks until the active session has no history load or scan in flight.
func (c *Controller) WaitIdle(ctx context.Context) error {
	reply := make(chan error, 1)
	err := c.send(ctx, func() {
		if c.pending == 0 {
			reply <- nil
			return
		}
		c.idleWaiters = append(c.idleWaiters, reply)
	})
	if err != nil {
		return err
	}
	res, err := await(ctx, c.done, reply)
	if err != nil {
		return err
	}
	return res
}

func (c *Controller) open(req OpenRequest, reply chan openResult) {
	if c.session != nil && strings.EqualFold(c.session.Market.MarketID, req.MarketID) {
		if req.ForceScan {
			c.session.RequestScan()
			c.maybeStartScan()
		}
		if c.historyApplied {
			reply <- openResult{snap: c.snapshot()}
		} else {
			c.openWaiters = append(c.openWaiters, reply)
		}
		return
	}

	c.teardown()

	now := c.now()
	s := NewSession(domain.MarketRef{MarketID: req.MarketID, CreatedAt: req.CreatedAt}, now)
	if req.ForceScan {
		s.RequestScan()
	}

	seedTS := now
	if s.Market.HasCreationTime() {
		seedTS = s.Market.CreatedAt
	}
	s.merger.Merge(domain.NewPricePoint(seedTS, price.Baseline, domain.ProvenanceSeed))

	c.session = s
	c.workCtx, c.cancelWork = context.WithCancel(c.runCtx)
	if c.opts.Bus != nil {
		c.sub = c.opts.Bus.Subscribe(c.opts.SubscriptionBuffer)
	}
	c.historyApplied = false
	c.openWaiters = append(c.openWaiters, reply)

	observability.RecordSessionOpened()
	c.logger.Info().
		Str("market", s.Market.MarketID).
		Str("session", s.ID.String()).
		Int64("created_at", s.Market.CreatedAt).
		Msg("market session opened")

	c.bump()
	c.startHistory(s, req.ObservedYes)
}

func (c *Controller) startHistory(s *Session, observed *float64) {
	c.pending++
	id, market, ctx := s.ID, s.Market, c.workCtx

	go func() {
		var trades []*domain.TradeRecord
		var err error
		if c.opts.Trades != nil {
			hctx, cancel := context.WithTimeout(ctx, c.opts.HistoryTimeout)
			trades, err = c.opts.Trades.GetByMarketID(hctx, market.MarketID)
			cancel()
		}
		c.post(func() { c.applyHistory(id, trades, err, observed) })
	}()
}

func (c *Controller) applyHistory(id uuid.UUID, trades []*domain.TradeRecord, err error, observed *float64) {
	s := c.session
	if s == nil || s.ID != id {
		return
	}
	c.pending--

	switch {
	case err != nil:
		observability.RecordHistoryLoad("failed")
		c.logger.Warn().Err(err).Str("market", s.Market.MarketID).Msg("indexer query failed, using empty history")
		trades = nil
	case len(trades) == 0:
		observability.RecordHistoryLoad("empty")
	default:
		observability.RecordHistoryLoad("ok")
	}

	res := LoadHistory(HistoryInput{
		Market:      s.Market,
		Trades:      trades,
		ObservedYes: observed,
		Now:         c.now(),
		LastLive:    s.LastLive(),
		Processed:   s.Processed,
	}, c.opts.DivergenceThreshold)

	for _, tx := range res.TxIDs {
		s.MarkProcessed(tx)
	}
	s.ObserveHistorical(res.LastHistorical)
	if res.ScanRequested {
		observability.RecordSyncPoint()
		s.RequestScan()
	}

	c.merge(res.Points)
	c.historyApplied = true

	c.logger.Debug().
		Str("market", s.Market.MarketID).
		Int("trades", len(trades)).
		Bool("scan_requested", res.ScanRequested).
		Msg("history merged")

	snap := c.snapshot()
	for _, w := range c.openWaiters {
		w <- openResult{snap: snap}
	}
	c.openWaiters = nil

	c.maybeStartScan()
	c.checkIdle()
}

// maybeStartScan starts the one-shot scan once history is merged.
func (c *Controller) maybeStartScan() {
	s := c.session
	if s == nil || c.opts.Scanner == nil || !c.historyApplied || !s.ClaimScan() {
		return
	}

	c.pending++
	id, market, ctx := s.ID, s.Market, c.workCtx
	c.logger.Info().Str("market", market.MarketID).Msg("starting ledger gap recovery scan")

	go func() {
		start := time.Now()
		sctx, cancel := context.WithTimeout(ctx, c.opts.ScanTimeout)
		points, err := c.opts.Scanner.Scan(sctx, market, c.now())
		cancel()
		elapsed := time.Since(start)
		c.post(func() { c.applyScan(id, points, err, elapsed) })
	}()
}

func (c *Controller) applyScan(id uuid.UUID, points []domain.PricePoint, err error, elapsed time.Duration) {
	s := c.session
	if s == nil || s.ID != id {
		observability.RecordScan("stale", elapsed.Seconds(), 0)
		c.logger.Debug().Str("session", id.String()).Msg("discarding scan results for replaced session")
		return
	}
	c.pending--
	defer c.checkIdle()

	if err != nil {
		observability.RecordScan("failed", elapsed.Seconds(), 0)
		c.logger.Warn().Err(err).Str("market", s.Market.MarketID).Msg("ledger scan failed")
		return
	}

	fresh := make([]domain.PricePoint, 0, len(points))
	for _, p := range points {
		if s.Processed(p.Provenance) {
			continue
		}
		fresh = append(fresh, p)
	}
	for _, p := range fresh {
		s.MarkProcessed(p.Provenance)
		s.ObserveHistorical(p.Timestamp)
	}

	outcome := "ok"
	if len(points) == 0 {
		outcome = "empty"
	}
	observability.RecordScan(outcome, elapsed.Seconds(), len(fresh))
	c.logger.Info().
		Str("market", s.Market.MarketID).
		Int("logs", len(points)).
		Int("recovered", len(fresh)).
		Dur("elapsed", elapsed).
		Msg("ledger scan complete")

	c.merge(fresh)
}

func (c *Controller) handleLive(msg notify.Message) {
	s := c.session
	if s == nil {
		return
	}

	p, reason := IngestLive(s, msg, c.now())
	if reason != Accepted {
		observability.RecordLiveDropped(string(reason))
		switch reason {
		case DropNonFinite:
			c.logger.Warn().Str("provenance", msg.Provenance).Msg("dropping live update with non-finite price")
		case DropUnconfirmed, DropDuplicate:
			c.logger.Debug().
				Str("provenance", msg.Provenance).
				Str("classification", msg.Classification.String()).
				Str("reason", string(reason)).
				Msg("live update dropped")
		}
		return
	}

	observability.RecordLiveAccepted()
	c.merge([]domain.PricePoint{p})
}

func (c *Controller) merge(points []domain.PricePoint) {
	if c.session.merger.Merge(points...) > 0 {
		c.bump()
	}
}

func (c *Controller) bump() {
	c.version++
	observability.UpdateSeries(c.session.merger.Len(), c.version)
	c.notifyChange()
}

func (c *Controller) notifyChange() {
	if len(c.changeWaiters) == 0 {
		return
	}
	var snap Snapshot
	if c.session != nil {
		snap = c.snapshot()
	}

	kept := c.changeWaiters[:0]
	for _, w := range c.changeWaiters {
		switch {
		case c.session == nil:
			w.reply <- openResult{err: ErrNoSession}
		case c.version > w.since:
			w.reply <- openResult{snap: snap}
		default:
			kept = append(kept, w)
		}
	}
	c.changeWaiters = kept
}

func (c *Controller) checkIdle() {
	if c.pending > 0 {
		return
	}
	for _, w := range c.idleWaiters {
		w <- nil
	}
	c.idleWaiters = nil
}

func (c *Controller) snapshot() Snapshot {
	return Snapshot{
		SessionID: c.session.ID,
		MarketID:  c.session.Market.MarketID,
		Version:   c.version,
		Points:    Annotate(c.session.merger.Series(), c.opts.Gaps),
	}
}

// teardown discards the active session: the bus subscription is closed,
// in-flight work is cancelled and waiters on the session are released.
func (c *Controller) teardown() {
	if c.session == nil {
		return
	}
	if c.sub != nil {
		c.sub.Close()
		c.sub = nil
	}
	if c.cancelWork != nil {
		c.cancelWork()
		c.cancelWork = nil
	}
	for _, w := range c.openWaiters {
		w <- openResult{err: ErrSessionClosed}
	}
	c.openWaiters = nil

	c.session = nil
	c.historyApplied = false
	c.pending = 0
	c.checkIdle()
}

func (c *Controller) shutdown() {
	c.teardown()
	for _, w := range c.changeWaiters {
		w.reply <- openResult{err: ErrControllerStopped}
	}
	c.changeWaiters = nil
}

func (c *Controller) now() int64 {
	return c.opts.Clock().Unix()
}

// send hands fn to the Run goroutine.
func (c *Controller) send(ctx context.Context, fn func()) error {
	select {
	case c.cmds <- fn:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrControllerStopped
	}
}

// post is send for helper goroutines; it gives up once the controller stops.
func (c *Controller) post(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

func await[T any](ctx context.Context, done <-chan struct{}, ch chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-done:
		select {
		case v := <-ch:
			return v, nil
		default:
		}
		return zero, ErrControllerStopped
	}
}
