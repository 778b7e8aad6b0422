package cart

import (
	"strings"
	"sync"

	"github.com/angelmondragon/posterminal/pkg/enums"
	pkgerrors "github.com/angelmondragon/posterminal/pkg/errors"
	"github.com/angelmondragon/posterminal/pkg/types"
	"github.com/shopspring/decimal"
)

// Engine owns the live cart of the terminal session. All methods are safe for
// concurrent use and each runs to completion under the engine lock.
type Engine struct {
	mu       sync.Mutex
	lines    []Line
	customer *types.Customer
	// set between BeginCheckout and EndCheckout; mutations are refused
	checkingOut bool
}

// View is a consistent read of the cart.
type View struct {
	Lines     []Line          `json:"lines"`
	Customer  *types.Customer `json:"customer,omitempty"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

func NewEngine() *Engine {
	return &Engine{}
}

// Line returns the line for productID from the view.
func (v View) Line(productID string) (Line, bool) {
	for _, l := range v.Lines {
		if l.Product.ID == productID {
			return l, true
		}
	}
	return Line{}, false
}

// Every mutation below returns the cart as it stood right after the change,
// read under the same lock. While a checkout is in flight they fail with
// CodeConflict.

// AddLine adds delta units of product, incrementing an existing line for the
// same product id or appending a new one. delta below 1 counts as 1.
func (e *Engine) AddLine(product types.Product, delta int) (View, error) {
	if strings.TrimSpace(product.ID) == "" {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if delta < 1 {
		delta = 1
	}
	if product.Quantity <= 0 {
		return View{}, pkgerrors.New(pkgerrors.CodeOutOfStock, "product is out of stock").
			WithDetails(map[string]any{"product_id": product.ID})
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return View{}, err
	}

	idx := e.indexLocked(product.ID)
	current := 0
	if idx >= 0 {
		current = e.lines[idx].Quantity
	}
	if current+delta > product.Quantity {
		return View{}, stockLimitError(product.ID, current+delta, product.Quantity)
	}

	if idx >= 0 {
		e.lines[idx].Quantity = current + delta
		e.lines[idx].StockLimit = product.Quantity
		return e.viewLocked(), nil
	}

	e.lines = append(e.lines, Line{
		Product:    product.Clone(),
		Quantity:   delta,
		StockLimit: product.Quantity,
	})
	return e.viewLocked(), nil
}

// RemoveLine drops the line for productID. Removing an absent line is a no-op.
func (e *Engine) RemoveLine(productID string) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return View{}, err
	}
	if idx := e.indexLocked(productID); idx >= 0 {
		e.lines = append(e.lines[:idx], e.lines[idx+1:]...)
	}
	return e.viewLocked(), nil
}

// SetQuantity sets the line quantity, clamping negatives to 0. Zero is held
// transiently until CommitQuantity or Finalize.
func (e *Engine) SetQuantity(productID string, quantity int) (View, error) {
	if quantity < 0 {
		quantity = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return View{}, err
	}

	idx := e.indexLocked(productID)
	if idx < 0 {
		return View{}, lineNotFound(productID)
	}
	if quantity > e.lines[idx].StockLimit {
		return View{}, stockLimitError(productID, quantity, e.lines[idx].StockLimit)
	}
	e.lines[idx].Quantity = quantity
	return e.viewLocked(), nil
}

// CommitQuantity is the focus-lost commit of the quantity field: a transient
// zero becomes one.
func (e *Engine) CommitQuantity(productID string) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return View{}, err
	}

	idx := e.indexLocked(productID)
	if idx < 0 {
		return View{}, lineNotFound(productID)
	}
	if e.lines[idx].Quantity < 1 {
		e.lines[idx].Quantity = 1
	}
	return e.viewLocked(), nil
}

// SelectTier applies tier to the line. Selecting the active tier again, or
// PricingTierNone, reverts to the base price. A tier the product does not
// carry leaves the line unchanged.
func (e *Engine) SelectTier(productID string, tier enums.PricingTier) (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return View{}, err
	}

	idx := e.indexLocked(productID)
	if idx < 0 {
		return View{}, lineNotFound(productID)
	}
	line := &e.lines[idx]

	switch {
	case tier == enums.PricingTierNone, tier == line.SelectedTier:
		line.SelectedTier = enums.PricingTierNone
	case line.Product.Tiers.Has(tier):
		line.SelectedTier = tier
	}
	return e.viewLocked(), nil
}

// BindCustomer attaches the customer the sale will be recorded against.
func (e *Engine) BindCustomer(customer types.Customer) (View, error) {
	if strings.TrimSpace(customer.ID) == "" {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return View{}, err
	}
	c := customer
	e.customer = &c
	return e.viewLocked(), nil
}

// UnbindCustomer detaches any bound customer.
func (e *Engine) UnbindCustomer() (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return View{}, err
	}
	e.customer = nil
	return e.viewLocked(), nil
}

// Customer returns a copy of the bound customer, nil when none.
func (e *Engine) Customer() *types.Customer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.customerLocked()
}

// Clear empties the cart and unbinds the customer.
func (e *Engine) Clear() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return err
	}
	e.clearLocked()
	return nil
}

// Lines returns copies of the lines in insertion order.
func (e *Engine) Lines() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linesLocked()
}

// Total is Σ EffectiveUnitPrice × Quantity over current lines.
func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return totalOf(e.lines)
}

// ItemCount is Σ Quantity over current lines.
func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return itemCountOf(e.lines)
}

// View returns lines, customer and totals read under one lock.
func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked()
}

// Finalize commits every zero quantity to one and returns the checkout view.
// An empty cart cannot be finalized.
func (e *Engine) Finalize() (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return View{}, err
	}
	return e.finalizeLocked()
}

// BeginCheckout finalizes the cart and freezes it until EndCheckout, so the
// lines being sold cannot change while the sale is delivered.
func (e *Engine) BeginCheckout() (View, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutableLocked(); err != nil {
		return View{}, err
	}
	view, err := e.finalizeLocked()
	if err != nil {
		return View{}, err
	}
	e.checkingOut = true
	return view, nil
}

// EndCheckout unfreezes the cart. With commit the sold cart is emptied;
// without it the cart is left as it was finalized.
func (e *Engine) EndCheckout(commit bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if commit {
		e.clearLocked()
	}
	e.checkingOut = false
}

func (e *Engine) finalizeLocked() (View, error) {
	if len(e.lines) == 0 {
		return View{}, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	for i := range e.lines {
		if e.lines[i].Quantity < 1 {
			e.lines[i].Quantity = 1
		}
	}
	return e.viewLocked(), nil
}

func (e *Engine) mutableLocked() error {
	if e.checkingOut {
		return pkgerrors.New(pkgerrors.CodeConflict, "checkout in progress")
	}
	return nil
}

func (e *Engine) clearLocked() {
	e.lines = nil
	e.customer = nil
}

func (e *Engine) viewLocked() View {
	return View{
		Lines:     e.linesLocked(),
		Customer:  e.customerLocked(),
		Total:     totalOf(e.lines),
		ItemCount: itemCountOf(e.lines),
	}
}

func (e *Engine) indexLocked(productID string) int {
	for i := range e.lines {
		if e.lines[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

func (e *Engine) linesLocked() []Line {
	out := make([]Line, len(e.lines))
	for i, l := range e.lines {
		out[i] = l.clone()
	}
	return out
}

func (e *Engine) customerLocked() *types.Customer {
	if e.customer == nil {
		return nil
	}
	c := *e.customer
	return &c
}

func totalOf(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Total())
	}
	return total
}

func itemCountOf(lines []Line) int {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return count
}

func stockLimitError(productID string, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeStockLimitExceeded, "requested quantity exceeds available stock").
		WithDetails(map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		})
}

func lineNotFound(productID string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").
		WithDetails(map[string]any{"product_id": productID})
}
