package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"printedge/config"
	"printedge/orders"
	"printedge/receipt"
	"printedge/store"
)

// LogFunc is the logging callback signature.
type LogFunc func(format string, args ...interface{})

// State is the engine's lifecycle state.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateProcessing
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateProcessing:
		return "processing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// OrderSource is the remote order store as the engine sees it.
// backend.Client implements it.
type OrderSource interface {
	FetchPending(ctx context.Context) ([]orders.Order, error)
	FetchOrder(ctx context.Context, orderID string) (orders.Order, error)
	MarkPrinted(ctx context.Context, orderID string) error
	LogPrintEvent(ctx context.Context, orderID, eventType, status, detail string)
}

// PrintSink receives rendered receipts. printing.Sink implements it.
type PrintSink interface {
	Name() string
	Submit(receipt []byte) error
}

// SyncEngine drives the poll / render / print / mark cycle.
type SyncEngine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB

	srcMu  sync.RWMutex
	source OrderSource

	sinkMu sync.RWMutex
	sink   PrintSink

	logFn   LogFunc
	debugFn LogFunc

	Events *EventBus

	state        atomic.Int32
	cycle        atomic.Int64
	printed      atomic.Int64
	printFailed  atomic.Int64
	markFailed   atomic.Int64
	pending      atomic.Int64
	lastCycleAt  atomic.Int64 // unix seconds, 0 until first cycle
	fatalReason  atomic.Value // string
	startTime    time.Time

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// Config holds the parameters needed to create a SyncEngine.
type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	Source     OrderSource
	Sink       PrintSink
	DB         *store.DB
	LogFunc    LogFunc
	Debug      bool
}

// New creates a SyncEngine. Call Start to begin polling.
func New(c Config) *SyncEngine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = func(string, ...interface{}) {}
	}
	debugFn := LogFunc(func(string, ...interface{}) {})
	if c.Debug {
		debugFn = logFn
	}
	return &SyncEngine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		source:     c.Source,
		sink:       c.Sink,
		db:         c.DB,
		logFn:      logFn,
		debugFn:    debugFn,
		Events:     NewEventBus(),
		stopChan:   make(chan struct{}),
	}
}

// Start launches the poll loop.
func (e *SyncEngine) Start() {
	e.startTime = time.Now()
	e.wg.Add(1)
	go e.run()
	e.logFn("engine started: restaurant=%s sink=%s interval=%s",
		e.cfg.Backend.RestaurantID, e.Sink().Name(), e.cfg.PollInterval)
}

// Stop halts the poll loop and waits for it to exit. An in-flight HTTP
// call is bounded by the client timeout; an in-flight sleep returns
// immediately.
func (e *SyncEngine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
	e.logFn("engine stopped")
}

func (e *SyncEngine) run() {
	defer e.wg.Done()
	defer e.setState(StateStopped)

	consecutive := 0
	for {
		select {
		case <-e.stopChan:
			return
		default:
		}

		cycle := e.cycle.Add(1)
		e.lastCycleAt.Store(time.Now().Unix())
		e.setState(StatePolling)
		e.Events.EmitType(EventCycleStarted, CycleStartedEvent{Cycle: cycle})

		ctx, cancel := context.WithTimeout(context.Background(), e.backendTimeout())
		batch, err := e.Source().FetchPending(ctx)
		cancel()

		if err != nil {
			consecutive++
			wait := e.backoff(consecutive)
			e.logFn("fetch pending: %v (failure %d, retry in %s)", err, consecutive, wait)
			e.Events.EmitType(EventConnectivityDegraded, ConnectivityDegradedEvent{
				Detail:      err.Error(),
				Consecutive: consecutive,
				NextRetryIn: wait,
			})
			if ceiling := e.failureCeiling(); consecutive >= ceiling {
				reason := fmt.Sprintf("backend unreachable after %d consecutive cycles: %v", consecutive, err)
				e.logFn("engine giving up: %s", reason)
				e.fatalReason.Store(reason)
				e.Events.EmitType(EventFatalStopped, FatalStoppedEvent{Reason: reason, Consecutive: consecutive})
				return
			}
			e.setState(StateIdle)
			if !e.sleep(wait) {
				return
			}
			continue
		}

		consecutive = 0
		e.pending.Store(int64(len(batch)))
		e.debugFn("cycle %d: %d pending orders", cycle, len(batch))

		e.setState(StateProcessing)
		for _, o := range batch {
			select {
			case <-e.stopChan:
				return
			default:
			}
			e.processOrder(o)
		}

		e.setState(StateIdle)
		if !e.sleep(e.cfg.PollInterval) {
			return
		}
	}
}

// processOrder renders one order, submits it to the sink, and marks it
// printed. Failures are recorded and the order stays pending (or
// reappears after an unconfirmed mark), so printing is at-least-once.
func (e *SyncEngine) processOrder(o orders.Order) {
	num := o.DisplayNumber()

	text, err := receipt.Format(o, e.cfg.ReceiptWidth)
	if err != nil {
		// Width is validated at startup; this only fires on a live
		// config mutation to a bad value.
		e.failOrder(o, num, fmt.Sprintf("format: %v", err))
		return
	}

	if err := e.Sink().Submit([]byte(text)); err != nil {
		e.failOrder(o, num, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.backendTimeout())
	err = e.Source().MarkPrinted(ctx, o.ID)
	cancel()
	if err != nil {
		e.markFailed.Add(1)
		e.logFn("order %s printed but mark failed: %v (will reprint)", num, err)
		e.journal(o.ID, num, store.PrintEventMarkFailed, "error", err.Error(), o.Total)
		e.audit(o.ID, store.PrintEventMarkFailed, "error", err.Error())
		e.Events.EmitType(EventOrderMarkUnconfirmed, OrderMarkUnconfirmedEvent{
			OrderID: o.ID, DisplayNumber: num, Detail: err.Error(),
		})
		return
	}

	e.printed.Add(1)
	e.pending.Add(-1)
	e.debugFn("order %s printed (total R$%.2f)", num, o.Total)
	e.journal(o.ID, num, store.PrintEventPrinted, "ok", "", o.Total)
	e.audit(o.ID, store.PrintEventPrinted, "ok", "")
	e.Events.EmitType(EventOrderPrinted, OrderPrintedEvent{
		OrderID: o.ID, DisplayNumber: num, Total: o.Total,
	})
}

func (e *SyncEngine) failOrder(o orders.Order, num, detail string) {
	e.printFailed.Add(1)
	e.logFn("order %s print failed: %s", num, detail)
	e.journal(o.ID, num, store.PrintEventPrintFailed, "error", detail, o.Total)
	e.audit(o.ID, store.PrintEventPrintFailed, "error", detail)
	e.Events.EmitType(EventOrderPrintFailed, OrderPrintFailedEvent{
		OrderID: o.ID, DisplayNumber: num, Detail: detail,
	})
}

// Reprint fetches a single order and prints it again without touching
// its remote print status.
func (e *SyncEngine) Reprint(ctx context.Context, orderID string) error {
	o, err := e.Source().FetchOrder(ctx, orderID)
	if err != nil {
		return err
	}
	num := o.DisplayNumber()
	text, err := receipt.Format(o, e.cfg.ReceiptWidth)
	if err != nil {
		return err
	}
	if err := e.Sink().Submit([]byte(text)); err != nil {
		e.journal(o.ID, num, store.PrintEventReprint, "error", err.Error(), o.Total)
		return err
	}
	e.journal(o.ID, num, store.PrintEventReprint, "ok", "", o.Total)
	return nil
}

// TestPrint renders a fixed sample order to verify the sink end to end.
func (e *SyncEngine) TestPrint() error {
	n := int64(0)
	sample := orders.Order{
		ID:          "teste-impressao",
		OrderNumber: &n,
		OrderType:   orders.TypeCounter,
		Notes:       "Impressao de teste do printedge",
		Total:       0,
		CreatedAt:   time.Now().Format(time.RFC3339),
	}
	text, err := receipt.Format(sample, e.cfg.ReceiptWidth)
	if err != nil {
		return err
	}
	if err := e.Sink().Submit([]byte(text)); err != nil {
		e.journal(sample.ID, "0", store.PrintEventTestPrint, "error", err.Error(), 0)
		return err
	}
	e.journal(sample.ID, "0", store.PrintEventTestPrint, "ok", "", 0)
	return nil
}

// journal writes to the local SQLite print log. The DB is optional so
// the engine can run without local persistence.
func (e *SyncEngine) journal(orderID, num, eventType, status, detail string, total float64) {
	if e.db == nil {
		return
	}
	if _, err := e.db.InsertPrintLog(orderID, num, eventType, status, detail, total); err != nil {
		e.logFn("print journal: %v", err)
	}
}

// audit records the event on the backend, best-effort.
func (e *SyncEngine) audit(orderID, eventType, status, detail string) {
	ctx, cancel := context.WithTimeout(context.Background(), e.backendTimeout())
	defer cancel()
	e.Source().LogPrintEvent(ctx, orderID, eventType, status, detail)
}

// backoff doubles the poll interval per consecutive failure, capped at
// max_backoff.
func (e *SyncEngine) backoff(consecutive int) time.Duration {
	shift := consecutive
	if shift > 10 {
		shift = 10
	}
	d := e.cfg.PollInterval << uint(shift)
	if max := e.cfg.MaxBackoff; max > 0 && d > max {
		d = max
	}
	return d
}

func (e *SyncEngine) failureCeiling() int {
	if e.cfg.FailureCeiling > 0 {
		return e.cfg.FailureCeiling
	}
	return 10
}

func (e *SyncEngine) backendTimeout() time.Duration {
	if t := e.cfg.Backend.Timeout; t > 0 {
		return t
	}
	return 15 * time.Second
}

// sleep waits for d or until Stop, reporting whether the engine should
// keep running.
func (e *SyncEngine) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-e.stopChan:
		return false
	case <-t.C:
		return true
	}
}

func (e *SyncEngine) setState(s State) { e.state.Store(int32(s)) }

// State returns the current lifecycle state.
func (e *SyncEngine) State() State { return State(e.state.Load()) }

// Status is a snapshot of engine counters for the web UI and heartbeat.
type Status struct {
	State         string     `json:"state"`
	Cycle         int64      `json:"cycle"`
	Printed       int64      `json:"printed"`
	PrintFailed   int64      `json:"print_failed"`
	MarkFailed    int64      `json:"mark_failed"`
	Pending       int64      `json:"pending"`
	LastCycleAt   *time.Time `json:"last_cycle_at"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	FatalReason   string     `json:"fatal_reason,omitempty"`
}

// Snapshot returns the current counters.
func (e *SyncEngine) Snapshot() Status {
	st := Status{
		State:       e.State().String(),
		Cycle:       e.cycle.Load(),
		Printed:     e.printed.Load(),
		PrintFailed: e.printFailed.Load(),
		MarkFailed:  e.markFailed.Load(),
		Pending:     e.pending.Load(),
	}
	if !e.startTime.IsZero() {
		st.UptimeSeconds = int64(time.Since(e.startTime).Seconds())
	}
	if ts := e.lastCycleAt.Load(); ts > 0 {
		t := time.Unix(ts, 0)
		st.LastCycleAt = &t
	}
	if r, ok := e.fatalReason.Load().(string); ok {
		st.FatalReason = r
	}
	return st
}

// PendingCount returns the size of the last fetched batch.
func (e *SyncEngine) PendingCount() int64 { return e.pending.Load() }

// PrintedCount returns the session print counter.
func (e *SyncEngine) PrintedCount() int64 { return e.printed.Load() }

// IsPrinting reports whether a batch is being processed right now.
func (e *SyncEngine) IsPrinting() bool { return e.State() == StateProcessing }

// DB returns the local journal handle.
func (e *SyncEngine) DB() *store.DB { return e.db }

// AppConfig returns the app config.
func (e *SyncEngine) AppConfig() *config.Config { return e.cfg }

// ConfigPath returns the config file path.
func (e *SyncEngine) ConfigPath() string { return e.configPath }

// Source returns the active order source.
func (e *SyncEngine) Source() OrderSource {
	e.srcMu.RLock()
	defer e.srcMu.RUnlock()
	return e.source
}

// SetSource swaps the order source, applied from the next backend call
// on.
func (e *SyncEngine) SetSource(s OrderSource) {
	e.srcMu.Lock()
	e.source = s
	e.srcMu.Unlock()
}

// Sink returns the active print sink.
func (e *SyncEngine) Sink() PrintSink {
	e.sinkMu.RLock()
	defer e.sinkMu.RUnlock()
	return e.sink
}

// SetSink swaps the print sink, applied from the next submission on.
func (e *SyncEngine) SetSink(s PrintSink) {
	e.sinkMu.Lock()
	e.sink = s
	e.sinkMu.Unlock()
}
