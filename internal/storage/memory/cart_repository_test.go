package memory_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/finci-square/cash-ap-exemplar/internal/domain"
	"github.com/finci-square/cash-ap-exemplar/internal/storage/memory"
)

func mugItem() domain.Item {
	return domain.Item{ID: "item-1", Name: "Travel Mug", PriceMinor: 2500, SKU: "MUG-1"}
}

func TestCartRepository_GetOrCreateOpen(t *testing.T) {
	repo := memory.NewCartRepository()

	first, err := repo.GetOrCreateOpen("session-1")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.Status != domain.CartStatusOpen {
		t.Fatalf("expected OPEN, got %s", first.Status)
	}
	if first.TotalMinor != 0 || len(first.Lines) != 0 {
		t.Fatalf("expected empty cart, got %+v", first)
	}

	second, err := repo.GetOrCreateOpen("session-1")
	if err != nil {
		t.Fatalf("repeat lookup failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("the same session must resolve to the same OPEN cart")
	}

	if _, err := repo.GetOrCreateOpen(""); !errors.Is(err, domain.ErrSessionRequired) {
		t.Fatalf("expected ErrSessionRequired, got %v", err)
	}
}

func TestCartRepository_AddItemIsQuantityMonotonic(t *testing.T) {
	repo := memory.NewCartRepository()
	item := mugItem()

	var cart domain.Cart
	var err error
	for i := 0; i < 3; i++ {
		cart, err = repo.AddItem("session-1", item)
		if err != nil {
			t.Fatalf("add %d failed: %v", i, err)
		}
		// Catalog price changes between additions must not touch the line.
		item.PriceMinor += 1000
	}

	if len(cart.Lines) != 1 {
		t.Fatalf("expected one line, got %d", len(cart.Lines))
	}
	if cart.Lines[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", cart.Lines[0].Quantity)
	}
	if cart.Lines[0].PriceMinor != 2500 {
		t.Fatalf("captured price must stay 2500, got %d", cart.Lines[0].PriceMinor)
	}
	if cart.TotalMinor != 7500 {
		t.Fatalf("expected total 7500, got %d", cart.TotalMinor)
	}
}

func TestCartRepository_SetLineQuantity(t *testing.T) {
	repo := memory.NewCartRepository()

	if _, err := repo.SetLineQuantity("session-1", "item-1", 2); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound without a cart, got %v", err)
	}

	if _, err := repo.AddItem("session-1", mugItem()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if _, err := repo.SetLineQuantity("session-1", "missing", 2); !errors.Is(err, domain.ErrLineNotFound) {
		t.Fatalf("expected ErrLineNotFound, got %v", err)
	}

	cart, err := repo.SetLineQuantity("session-1", "item-1", 5)
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	if cart.Lines[0].Quantity != 5 || cart.TotalMinor != 12500 {
		t.Fatalf("expected quantity 5 total 12500, got %+v", cart)
	}

	cart, err = repo.SetLineQuantity("session-1", "item-1", 0)
	if err != nil {
		t.Fatalf("zero quantity failed: %v", err)
	}
	if len(cart.Lines) != 0 || cart.TotalMinor != 0 {
		t.Fatalf("zero quantity must remove the line, got %+v", cart)
	}
}

func TestCartRepository_ZeroQuantityEqualsRemove(t *testing.T) {
	viaZero := memory.NewCartRepository()
	viaRemove := memory.NewCartRepository()

	for _, repo := range []domain.CartRepository{viaZero, viaRemove} {
		if _, err := repo.AddItem("session-1", mugItem()); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}

	a, err := viaZero.SetLineQuantity("session-1", "item-1", 0)
	if err != nil {
		t.Fatalf("set quantity failed: %v", err)
	}
	b, err := viaRemove.RemoveLine("session-1", "item-1")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	if len(a.Lines) != len(b.Lines) || a.TotalMinor != b.TotalMinor {
		t.Fatalf("zero quantity and remove diverged: %+v vs %+v", a, b)
	}
}

func TestCartRepository_RemoveLineAbsentIsNoop(t *testing.T) {
	repo := memory.NewCartRepository()
	if _, err := repo.AddItem("session-1", mugItem()); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	cart, err := repo.RemoveLine("session-1", "missing")
	if err != nil {
		t.Fatalf("absent line must not be an error: %v", err)
	}
	if len(cart.Lines) != 1 || cart.TotalMinor != 2500 {
		t.Fatalf("cart must be unchanged, got %+v", cart)
	}
}

// TestCartRepository_TotalInvariant drives a random sequence of mutations and
// checks that the stored total always equals the recomputed lines sum.
func TestCartRepository_TotalInvariant(t *testing.T) {
	repo := memory.NewCartRepository()
	rng := rand.New(rand.NewSource(42))

	items := []domain.Item{
		{ID: "item-1", Name: "Mug", PriceMinor: 2500, SKU: "MUG-1"},
		{ID: "item-2", Name: "Bag", PriceMinor: 12500, SKU: "BAG-1"},
		{ID: "item-3", Name: "Sweater", PriceMinor: 7400, SKU: "KNIT-1"},
	}

	for i := 0; i < 500; i++ {
		item := items[rng.Intn(len(items))]

		var cart domain.Cart
		var err error
		switch rng.Intn(3) {
		case 0:
			cart, err = repo.AddItem("session-1", item)
		case 1:
			cart, err = repo.SetLineQuantity("session-1", item.ID, rng.Intn(6)-1)
		default:
			cart, err = repo.RemoveLine("session-1", item.ID)
		}
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			t.Fatalf("step %d failed: %v", i, err)
		}

		if cart.TotalMinor != domain.LinesTotal(cart.Lines) {
			t.Fatalf("step %d: total %d does not match lines %d", i, cart.TotalMinor, domain.LinesTotal(cart.Lines))
		}
		if errs := cart.ValidateInvariants(); len(errs) != 0 {
			t.Fatalf("step %d: invariants violated: %v", i, errs)
		}
	}
}

func TestCartRepository_Transition(t *testing.T) {
	repo := memory.NewCartRepository()
	cart, err := repo.AddItem("session-1", mugItem())
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	completed, err := repo.Transition(cart.ID, domain.CartStatusCompleted, "payment-1")
	if err != nil {
		t.Fatalf("transition failed: %v", err)
	}
	if completed.Status != domain.CartStatusCompleted || completed.PaymentID != "payment-1" {
		t.Fatalf("unexpected cart after transition: %+v", completed)
	}

	// A completed cart is terminal.
	if _, err := repo.Transition(cart.ID, domain.CartStatusCompleted, ""); !errors.Is(err, domain.ErrCartTransition) {
		t.Fatalf("expected ErrCartTransition, got %v", err)
	}
	if _, err := repo.Transition(cart.ID, domain.CartStatusOpen, ""); !errors.Is(err, domain.ErrCartTransition) {
		t.Fatalf("expected ErrCartTransition on backward move, got %v", err)
	}

	// The session gets a fresh OPEN cart afterwards.
	next, err := repo.GetOrCreateOpen("session-1")
	if err != nil {
		t.Fatalf("new cart failed: %v", err)
	}
	if next.ID == cart.ID {
		t.Fatal("completed cart must not be addressable as the session's OPEN cart")
	}

	if _, err := repo.Transition("missing", domain.CartStatusCompleted, ""); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected ErrCartNotFound, got %v", err)
	}
}

func TestCartRepository_SingleOpenCartUnderConcurrency(t *testing.T) {
	repo := memory.NewCartRepository()

	const goroutines = 16
	done := make(chan domain.Cart, goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			cart, err := repo.AddItem("session-1", domain.Item{ID: "item-1", Name: "Mug", PriceMinor: 2500, SKU: "MUG-1"})
			if err != nil {
				t.Errorf("concurrent add failed: %v", err)
			}
			done <- cart
		}()
	}

	ids := make(map[string]struct{})
	for i := 0; i < goroutines; i++ {
		cart := <-done
		ids[cart.ID] = struct{}{}
	}
	if len(ids) != 1 {
		t.Fatalf("expected a single cart for the session, got %d", len(ids))
	}
	if repo.CountOpen() != 1 {
		t.Fatalf("expected one OPEN cart, got %d", repo.CountOpen())
	}

	// No addition may be lost.
	cart, err := repo.GetOpenBySession("session-1")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if cart.Lines[0].Quantity != goroutines {
		t.Fatalf("expected quantity %d, got %d", goroutines, cart.Lines[0].Quantity)
	}
}

func TestCartRepository_DeleteExpired(t *testing.T) {
	repo := memory.NewCartRepository()

	stale, err := repo.AddItem("session-stale", mugItem())
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Only carts not updated since the cutoff are removed; a cutoff in the
	// past spares everything.
	removed, err := repo.DeleteExpired(time.Now().UTC().Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(removed) != 0 {
		t.Fatalf("expected no carts removed, got %d", len(removed))
	}

	removed, err = repo.DeleteExpired(time.Now().UTC().Add(time.Hour), 0)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(removed) != 1 || removed[0].ID != stale.ID {
		t.Fatalf("expected the stale cart removed, got %+v", removed)
	}

	if _, err := repo.GetOpenBySession("session-stale"); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected the session index cleared, got %v", err)
	}
	if _, err := repo.Get(stale.ID); !errors.Is(err, domain.ErrCartNotFound) {
		t.Fatalf("expected the cart gone, got %v", err)
	}
}
