package marketplace

import (
	"errors"
	"strings"
	"testing"
)

func purchased(t *testing.T, f *fixture) *Sale {
	t.Helper()
	sale, err := f.engine.Purchase(1, buyer)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	return sale
}

func TestOpenDisputeWindow(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)

	f.now = sale.CreatedAt + 700_000
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "late"); !errors.Is(err, ErrDisputeWindowClosedOrUnauthorized) {
		t.Fatalf("expected closed window, got %v", err)
	}
	f.now = sale.CreatedAt + DisputeWindowSeconds
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "boundary"); !errors.Is(err, ErrDisputeWindowClosedOrUnauthorized) {
		t.Fatalf("window must be exclusive at seven days, got %v", err)
	}
	f.now = sale.CreatedAt + DisputeWindowSeconds - 1
	dispute, err := f.engine.OpenDispute(sale.ID, buyer, "  item never arrived ")
	if err != nil {
		t.Fatalf("open dispute: %v", err)
	}
	if dispute.Reason != "item never arrived" || dispute.Resolved || dispute.Ruling != nil || dispute.ResolvedAt != nil {
		t.Fatalf("unexpected dispute: %+v", dispute)
	}
	if dispute.Buyer != buyer || dispute.Seller != seller || dispute.OpenedAt != f.now {
		t.Fatalf("dispute parties not copied from escrow")
	}
}

func TestOpenDisputeRejectsNonBuyer(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)
	for _, caller := range [][20]byte{seller, operator, stranger} {
		if _, err := f.engine.OpenDispute(sale.ID, caller, "x"); !errors.Is(err, ErrDisputeWindowClosedOrUnauthorized) {
			t.Fatalf("expected unauthorized, got %v", err)
		}
	}
	if len(f.state.disputes) != 0 {
		t.Fatalf("rejected calls must not create disputes")
	}
}

func TestOpenDisputeMissingRecords(t *testing.T) {
	f := newFixture(t)
	if _, err := f.engine.OpenDispute(9, buyer, "x"); !errors.Is(err, ErrSaleNotFound) {
		t.Fatalf("expected ErrSaleNotFound, got %v", err)
	}
	sale := purchased(t, f)
	delete(f.state.escrows, sale.ID)
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "x"); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("expected ErrEscrowNotFound, got %v", err)
	}
}

func TestOpenDisputeOncePerSale(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "first"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "second"); !errors.Is(err, ErrDisputeExists) {
		t.Fatalf("expected ErrDisputeExists, got %v", err)
	}
	if f.state.disputes[sale.ID].Reason != "first" {
		t.Fatalf("original dispute must be kept")
	}
}

func TestOpenDisputeReasonTooLong(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)
	reason := strings.Repeat("x", maxReasonLength+1)
	if _, err := f.engine.OpenDispute(sale.ID, buyer, reason); !errors.Is(err, ErrInvalidReason) {
		t.Fatalf("expected ErrInvalidReason, got %v", err)
	}
}

func TestOpenDisputeLimitsTrimmedReason(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)
	reason := "  " + strings.Repeat("x", maxReasonLength) + "\n"
	dispute, err := f.engine.OpenDispute(sale.ID, buyer, reason)
	if err != nil {
		t.Fatalf("padded reason within limit: %v", err)
	}
	if len(dispute.Reason) != maxReasonLength || strings.TrimSpace(dispute.Reason) != dispute.Reason {
		t.Fatalf("stored reason not trimmed: %d bytes", len(dispute.Reason))
	}
	stored, err := f.engine.Dispute(sale.ID)
	if err != nil {
		t.Fatalf("dispute: %v", err)
	}
	if stored.Reason != dispute.Reason {
		t.Fatalf("stored reason differs from returned reason")
	}
}

func TestResolveFavorBuyerRefundsFromOperator(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "broken"); err != nil {
		t.Fatalf("open: %v", err)
	}
	operatorBefore := f.balance(t, operator)
	buyerBefore := f.balance(t, buyer)
	sellerBefore := f.balance(t, seller)
	f.now += 60

	dispute, err := f.engine.ResolveDispute(sale.ID, true, operator)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !dispute.Resolved || dispute.Ruling == nil || *dispute.Ruling != RulingFavorBuyer {
		t.Fatalf("unexpected ruling: %+v", dispute)
	}
	if dispute.ResolvedAt == nil || *dispute.ResolvedAt != f.now {
		t.Fatalf("resolution time not stamped")
	}
	if got := f.balance(t, operator); got != operatorBefore-95 {
		t.Fatalf("operator balance = %d", got)
	}
	if got := f.balance(t, buyer); got != buyerBefore+95 {
		t.Fatalf("buyer balance = %d", got)
	}
	if got := f.balance(t, seller); got != sellerBefore {
		t.Fatalf("seller keeps proceeds, got %d", got)
	}
	stored, err := f.engine.Sale(sale.ID)
	if err != nil {
		t.Fatalf("sale: %v", err)
	}
	if !stored.Refunded {
		t.Fatalf("sale must be marked refunded")
	}
	escrow, err := f.engine.Escrow(sale.ID)
	if err != nil {
		t.Fatalf("escrow: %v", err)
	}
	if escrow.Released {
		t.Fatalf("a buyer ruling leaves the escrow unreleased")
	}
}

func TestResolveFavorSellerReleases(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "meh"); err != nil {
		t.Fatalf("open: %v", err)
	}
	operatorBefore := f.balance(t, operator)
	f.emitter.events = nil
	dispute, err := f.engine.ResolveDispute(sale.ID, false, operator)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if *dispute.Ruling != RulingFavorSeller {
		t.Fatalf("expected favor-seller ruling")
	}
	escrow, _ := f.engine.Escrow(sale.ID)
	if !escrow.Released {
		t.Fatalf("escrow must be released")
	}
	stored, _ := f.engine.Sale(sale.ID)
	if stored.Refunded {
		t.Fatalf("sale must not be refunded")
	}
	if got := f.balance(t, operator); got != operatorBefore {
		t.Fatalf("seller ruling moves no value, operator = %d", got)
	}
	kinds := f.emitter.kinds()
	if len(kinds) != 2 || kinds[0] != EventTypeDisputeResolved || kinds[1] != EventTypeEscrowReleased {
		t.Fatalf("unexpected events: %v", kinds)
	}
	// released escrow closes the window for good
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "again"); !errors.Is(err, ErrDisputeWindowClosedOrUnauthorized) {
		t.Fatalf("expected closed window after release, got %v", err)
	}
}

func TestResolveIsSingleFire(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "broken"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.ResolveDispute(sale.ID, true, operator); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	for _, favorBuyer := range []bool{true, false} {
		if _, err := f.engine.ResolveDispute(sale.ID, favorBuyer, operator); !errors.Is(err, ErrAlreadyResolved) {
			t.Fatalf("expected ErrAlreadyResolved, got %v", err)
		}
	}
}

func TestResolvePreconditions(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)
	if _, err := f.engine.ResolveDispute(sale.ID, true, operator); !errors.Is(err, ErrDisputeNotFound) {
		t.Fatalf("expected ErrDisputeNotFound, got %v", err)
	}
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "broken"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.engine.ResolveDispute(sale.ID, true, buyer); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	delete(f.state.escrows, sale.ID)
	if _, err := f.engine.ResolveDispute(sale.ID, true, operator); !errors.Is(err, ErrEscrowNotFound) {
		t.Fatalf("expected ErrEscrowNotFound, got %v", err)
	}
	if f.state.disputes[sale.ID].Resolved {
		t.Fatalf("failed resolution must leave the dispute open")
	}
}

func TestResolveFavorBuyerOperatorUnderfunded(t *testing.T) {
	f := newFixture(t)
	sale := purchased(t, f)
	if _, err := f.engine.OpenDispute(sale.ID, buyer, "broken"); err != nil {
		t.Fatalf("open: %v", err)
	}
	drain := f.balance(t, operator)
	if err := f.bank.Transfer(bigInt(drain), operator, stranger); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if _, err := f.engine.ResolveDispute(sale.ID, true, operator); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected ErrTransferFailed, got %v", err)
	}
	if f.state.disputes[sale.ID].Resolved || f.state.sales[sale.ID].Refunded {
		t.Fatalf("failed refund must not persist the ruling")
	}
}
