package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nhbmarket/core/events"
	"nhbmarket/core/genesis"
	nhbstate "nhbmarket/core/state"
	"nhbmarket/crypto"
	"nhbmarket/native/bank"
	"nhbmarket/native/catalog"
	"nhbmarket/native/marketplace"
	"nhbmarket/native/params"
	"nhbmarket/observability"
	"nhbmarket/storage"
)

const tracerName = "nhbmarket/core"

// Node serialises every marketplace call onto a single store. Each mutating
// call runs as one unit of work: its writes are staged and its events
// buffered, and both are dropped unless every step succeeds.
type Node struct {
	db       storage.Database
	mu       sync.RWMutex
	delivery sync.Mutex
	sink     events.Emitter
	nowFn    func() int64
	logger   *slog.Logger
	metrics  *observability.MarketMetrics

	// wrapTransfer lets tests interpose on the value transfer primitive.
	wrapTransfer func(marketplace.Transferer) marketplace.Transferer
}

// NewNode binds a node to db. Events are discarded until SetEmitter is called.
func NewNode(db storage.Database) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("database must not be nil")
	}
	return &Node{
		db:      db,
		sink:    events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
		logger:  slog.Default(),
		metrics: observability.Market(),
	}, nil
}

// SetEmitter configures where committed events are delivered.
func (n *Node) SetEmitter(emitter events.Emitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		n.sink = events.NoopEmitter{}
		return
	}
	n.sink = emitter
}

// SetNowFunc overrides the timestamp oracle shared by every engine.
func (n *Node) SetNowFunc(now func() int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if now == nil {
		n.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	n.nowFn = now
}

// SetLogger replaces the node logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if logger == nil {
		logger = slog.Default()
	}
	n.logger = logger.With("component", "node")
}

// unit bundles the engines of one unit of work over a shared state view.
type unit struct {
	manager *nhbstate.Manager
	buffer  *events.Buffer
	ledger  *bank.Ledger
	market  *marketplace.Engine
	catalog *catalog.Engine
}

func (n *Node) newUnit(kv storage.KV) *unit {
	manager := nhbstate.NewManager(kv)
	buffer := events.NewBuffer()

	ledger := bank.NewLedger(manager)
	ledger.SetEmitter(buffer)

	var transfer marketplace.Transferer = ledger
	if n.wrapTransfer != nil {
		transfer = n.wrapTransfer(transfer)
	}
	market := marketplace.NewEngine()
	market.SetState(manager)
	market.SetTransferer(transfer)
	market.SetEmitter(buffer)
	market.SetNowFunc(n.nowFn)

	cat := catalog.NewEngine()
	cat.SetState(manager)
	cat.SetEmitter(buffer)
	cat.SetNowFunc(n.nowFn)

	return &unit{manager: manager, buffer: buffer, ledger: ledger, market: market, catalog: cat}
}

// atomic runs fn against a staged view of the store. On success the staged
// writes are committed in one batch and the buffered events are delivered in
// emission order; on failure nothing is written and nothing is emitted.
// Delivery happens after the state lock is released, under a separate lock
// that keeps commit order.
func (n *Node) atomic(op string, fn func(u *unit) error) (err error) {
	start := time.Now()
	_, span := otel.Tracer(tracerName).Start(context.Background(), "market."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("market.operation", op)))
	defer func() {
		n.metrics.Observe(op, time.Since(start), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}()

	out, err := n.commit(op, fn)
	if err != nil {
		return err
	}
	defer n.delivery.Unlock()
	span.SetAttributes(attribute.Int("market.writes", out.pending))
	out.buffer.Flush(out.sink)
	out.logger.Debug("operation committed", "operation", op, "writes", out.pending)
	return nil
}

type committed struct {
	buffer  *events.Buffer
	sink    events.Emitter
	logger  *slog.Logger
	pending int
}

// commit runs fn under the state lock. On success it returns holding the
// delivery lock, taken before the state lock is released so events leave in
// commit order; the caller must unlock it.
func (n *Node) commit(op string, fn func(u *unit) error) (*committed, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	staging := storage.NewStaging(n.db)
	u := n.newUnit(staging)
	if err := fn(u); err != nil {
		staging.Discard()
		u.buffer.Reset()
		n.logger.Debug("operation rejected", "operation", op, "error", err)
		return nil, err
	}
	pending := staging.Pending()
	if err := staging.Commit(); err != nil {
		u.buffer.Reset()
		n.logger.Error("commit failed", "operation", op, "error", err)
		return nil, fmt.Errorf("commit %s: %w", op, err)
	}
	n.delivery.Lock()
	return &committed{buffer: u.buffer, sink: n.sink, logger: n.logger, pending: pending}, nil
}

// read runs fn against the committed store without staging.
func (n *Node) read(fn func(u *unit) error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return fn(n.newUnit(n.db))
}

// Bootstrap applies the genesis spec. It succeeds at most once per store.
func (n *Node) Bootstrap(spec *genesis.GenesisSpec) error {
	return n.atomic("bootstrap", func(u *unit) error {
		if err := genesis.Apply(spec, genesis.Targets{Market: u.market, Ledger: u.ledger, Catalog: u.catalog}); err != nil {
			return err
		}
		n.logger.Info("marketplace bootstrapped",
			"owner", crypto.FormatAddress(spec.OwnerAddress()),
			"feePercent", spec.Fee(),
			"allocations", len(spec.Allocations()))
		return nil
	})
}

// Initialized reports whether Bootstrap has run against the store.
func (n *Node) Initialized() (bool, error) {
	var ok bool
	err := n.read(func(u *unit) error {
		_, err := u.market.Params()
		if errors.Is(err, params.ErrNotInitialized) {
			return nil
		}
		ok = err == nil
		return err
	})
	return ok, err
}

// Purchase buys one unit of listingID for buyer.
func (n *Node) Purchase(listingID uint64, buyer [20]byte) (*marketplace.Sale, error) {
	var sale *marketplace.Sale
	var fee *big.Int
	err := n.atomic("purchase", func(u *unit) error {
		var err error
		sale, err = u.market.Purchase(listingID, buyer)
		if err != nil {
			return err
		}
		escrow, err := u.market.Escrow(sale.ID)
		if err != nil {
			return err
		}
		fee = new(big.Int).Sub(sale.Price, escrow.Amount)
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.metrics.RecordSale(sale.Price, fee)
	n.logger.Info("purchase settled",
		"saleId", sale.ID,
		"listingId", listingID,
		"buyer", crypto.FormatAddress(buyer),
		"price", sale.Price.String(),
		"fee", fee.String())
	return sale, nil
}

// OpenDispute lets the buyer of saleID contest it.
func (n *Node) OpenDispute(saleID uint64, caller [20]byte, reason string) (*marketplace.Dispute, error) {
	var dispute *marketplace.Dispute
	err := n.atomic("open_dispute", func(u *unit) error {
		var err error
		dispute, err = u.market.OpenDispute(saleID, caller, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	n.logger.Info("dispute opened", "saleId", saleID, "caller", crypto.FormatAddress(caller))
	return dispute, nil
}

// ResolveDispute records the operator ruling for saleID.
func (n *Node) ResolveDispute(saleID uint64, favorBuyer bool, caller [20]byte) (*marketplace.Dispute, error) {
	var dispute *marketplace.Dispute
	var refunded *big.Int
	err := n.atomic("resolve_dispute", func(u *unit) error {
		var err error
		dispute, err = u.market.ResolveDispute(saleID, favorBuyer, caller)
		if err != nil || !favorBuyer {
			return err
		}
		escrow, err := u.market.Escrow(saleID)
		if err != nil {
			return err
		}
		refunded = escrow.Amount
		return nil
	})
	if err != nil {
		return nil, err
	}
	n.metrics.RecordRuling(dispute.Ruling.String(), refunded)
	n.logger.Info("dispute resolved", "saleId", saleID, "ruling", dispute.Ruling.String())
	return dispute, nil
}

// SetFeePercent changes the platform fee. Only the operator may call it.
func (n *Node) SetFeePercent(caller [20]byte, feePercent uint64) (params.Market, error) {
	var market params.Market
	err := n.atomic("set_fee", func(u *unit) error {
		var err error
		market, err = u.market.SetFeePercent(caller, feePercent)
		return err
	})
	return market, err
}

// CreateListing stores a new listing owned by seller.
func (n *Node) CreateListing(seller [20]byte, category, title string, price *big.Int, quantity uint64) (*catalog.Listing, error) {
	var listing *catalog.Listing
	err := n.atomic("create_listing", func(u *unit) error {
		var err error
		listing, err = u.catalog.CreateListing(seller, category, title, price, quantity)
		return err
	})
	return listing, err
}

// UpdateListing applies update to a listing owned by caller.
func (n *Node) UpdateListing(caller [20]byte, id uint64, update catalog.ListingUpdate) (*catalog.Listing, error) {
	var listing *catalog.Listing
	err := n.atomic("update_listing", func(u *unit) error {
		var err error
		listing, err = u.catalog.UpdateListing(caller, id, update)
		return err
	})
	return listing, err
}

// RemoveListing deletes a listing owned by caller.
func (n *Node) RemoveListing(caller [20]byte, id uint64) error {
	return n.atomic("remove_listing", func(u *unit) error {
		return u.catalog.RemoveListing(caller, id)
	})
}

// RegisterCategory records a category. Only the operator may call it.
func (n *Node) RegisterCategory(caller [20]byte, name string) (*catalog.Category, error) {
	var category *catalog.Category
	err := n.atomic("register_category", func(u *unit) error {
		var err error
		category, err = u.catalog.RegisterCategory(caller, name)
		return err
	})
	return category, err
}

// Transfer moves native tokens between two identities.
func (n *Node) Transfer(from, to [20]byte, amount *big.Int) error {
	return n.atomic("transfer", func(u *unit) error {
		return u.ledger.Transfer(amount, from, to)
	})
}
