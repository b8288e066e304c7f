package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"inventory-service/internal/model"
	"inventory-service/pkg/storage"

	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Storage is the durable backing store for the product collection: a
// single get/set of the whole serialized collection. Every mutation
// writes the collection back in one call.
type Storage interface {
	Get(ctx context.Context) ([]model.Product, error)
	Set(ctx context.Context, products []model.Product) error
}

// SearchField selects which field Filter matches the query against.
type SearchField string

const (
	FieldName    SearchField = "name" // matches descricao and lote
	FieldCodProd SearchField = "codprod"
	FieldEAN     SearchField = "ean"
)

// SortField selects the column the list is ordered by.
type SortField string

const (
	SortByValidade   SortField = "validade"
	SortByQuantidade SortField = "quantidade"
	SortByDescricao  SortField = "descricao"
)

// Direction is the sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// TreatmentRequest describes a disposition to apply to a product: how it
// left the inventory and how many units.
type TreatmentRequest struct {
	Type     model.TreatmentType `json:"type"`
	Quantity int                 `json:"quantity"`
}

// Ledger owns the in-memory product collection for the duration of one
// session (one request). It loads the collection from Storage once,
// serves filtered and sorted views of it, and persists every mutation
// with a single whole-collection write before committing it in memory.
type Ledger struct {
	store    Storage
	now      func() time.Time
	newID    func() string
	collator *collate.Collator
	products []model.Product
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides the id generator. Used by tests.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// New creates a ledger session over the given store. Descricao ordering
// uses Brazilian Portuguese collation so accented names sort where a
// human expects them.
func New(store Storage, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		collator: collate.New(language.BrazilianPortuguese),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the whole collection from storage. An absent collection
// yields an empty ledger. A corrupt payload also yields an empty ledger
// but the wrapped error is returned so the caller can warn the user; the
// session stays usable either way. Any other storage failure is a
// StorageRead error.
func (l *Ledger) Load(ctx context.Context) error {
	products, err := l.store.Get(ctx)
	if err != nil {
		l.products = nil
		return fmt.Errorf("%w: %w", ErrStorageRead, err)
	}
	for i := range products {
		products[i].Normalize()
		products[i].DiasRestantes = products[i].DaysRemaining(l.now())
	}
	l.products = products
	return nil
}

// Products returns the full collection with diasrestantes recomputed
// against the current clock.
func (l *Ledger) Products() []model.Product {
	out := make([]model.Product, len(l.products))
	copy(out, l.products)
	for i := range out {
		out[i].DiasRestantes = out[i].DaysRemaining(l.now())
	}
	return out
}

// Get returns the record with the given id.
func (l *Ledger) Get(id string) (model.Product, error) {
	for _, p := range l.products {
		if p.ID == id {
			p.DiasRestantes = p.DaysRemaining(l.now())
			return p, nil
		}
	}
	return model.Product{}, ErrNotFound
}

// Upsert inserts or replaces a record. A record without an id is a pure
// add: it is checked against the collection for another record sharing
// its descricao or codprod, assigned a fresh id and appended. A record
// with an id replaces the existing record in place, keeping its position
// in the collection. The collection is written to storage before the
// in-memory state changes.
func (l *Ledger) Upsert(ctx context.Context, p model.Product) (model.Product, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return model.Product{}, fmt.Errorf("invalid product: %w", err)
	}
	p.DiasRestantes = p.DaysRemaining(l.now())

	next := l.snapshot()
	if p.ID == "" {
		for _, existing := range next {
			if strings.EqualFold(existing.Descricao, p.Descricao) || existing.CodProd == p.CodProd {
				return model.Product{}, ErrDuplicateProduct
			}
		}
		p.ID = l.newID()
		next = append(next, p)
	} else {
		idx := indexByID(next, p.ID)
		if idx < 0 {
			return model.Product{}, ErrNotFound
		}
		next[idx] = p
	}

	if err := l.commit(ctx, next); err != nil {
		return model.Product{}, err
	}
	return p, nil
}

// Filter returns the active records whose selected field contains the
// query as a case-insensitive substring. Exact matches sort before
// partial matches; within each group records are ordered by ascending
// validade. An empty query returns all active records ordered by
// ascending validade.
func (l *Ledger) Filter(query string, field SearchField) []model.Product {
	now := l.now()
	var out []model.Product
	for _, p := range l.products {
		if !p.IsActive() {
			continue
		}
		if query != "" && !matches(p, query, field) {
			continue
		}
		p.DiasRestantes = p.DaysRemaining(now)
		out = append(out, p)
	}
	stableSortBy(out, func(a, b model.Product) bool {
		if query != "" {
			ea, eb := exactMatch(a, query, field), exactMatch(b, query, field)
			if ea != eb {
				return ea
			}
		}
		return a.Validade.Before(b.Validade)
	})
	return out
}

// ExpiringWithin returns the subsequence of products whose days remaining
// is at most the given horizon. The list screen pins the horizon at 30
// days; the dashboard uses several.
func ExpiringWithin(products []model.Product, days int, now time.Time) []model.Product {
	var out []model.Product
	for _, p := range products {
		if p.DaysRemaining(now) <= days {
			out = append(out, p)
		}
	}
	return out
}

// Sort orders the given view by one field. The sort is stable so that
// repeated direction toggles are predictable; descricao uses the
// ledger's collation.
func (l *Ledger) Sort(products []model.Product, field SortField, dir Direction) {
	less := func(a, b model.Product) bool { return a.Validade.Before(b.Validade) }
	switch field {
	case SortByQuantidade:
		less = func(a, b model.Product) bool { return a.Quantidade < b.Quantidade }
	case SortByDescricao:
		less = func(a, b model.Product) bool {
			return l.collator.CompareString(a.Descricao, b.Descricao) < 0
		}
	}
	if dir == Descending {
		inner := less
		less = func(a, b model.Product) bool { return inner(b, a) }
	}
	stableSortBy(products, less)
}

// ApplyTreatment is the pure core of the treat transaction. Given an
// active product and a valid request it returns the records that replace
// it: one record when the whole quantity is consumed, two when the
// quantity is split. The summed quantidade of the result always equals
// the product's quantidade before the call. The input is not mutated and
// nothing is persisted here.
func ApplyTreatment(p model.Product, req TreatmentRequest, now time.Time, newID func() string) ([]model.Product, error) {
	if !model.ValidTreatmentType(req.Type) {
		return nil, fmt.Errorf("unknown treatment type %q", req.Type)
	}
	if !p.IsActive() {
		return nil, fmt.Errorf("%w: product %s has no active stock", ErrNotFound, p.ID)
	}
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if req.Quantity > p.Quantidade {
		return nil, ErrInsufficientStock
	}

	treatedAt := now
	if req.Quantity == p.Quantidade {
		p.Status = model.StatusTreated
		p.TreatmentType = req.Type
		p.TreatmentDate = &treatedAt
		return []model.Product{p}, nil
	}

	remainder := p
	remainder.Quantidade = p.Quantidade - req.Quantity

	split := p
	split.ID = newID()
	split.Quantidade = req.Quantity
	split.Status = model.StatusTreated
	split.TreatmentType = req.Type
	split.TreatmentDate = &treatedAt
	return []model.Product{remainder, split}, nil
}

// Treat applies a disposition to the record with the given id. The
// original record keeps its position; a split record is appended at the
// end of the collection. The updated collection is written to storage in
// a single call before the in-memory state changes; on any failure both
// stay untouched.
func (l *Ledger) Treat(ctx context.Context, id string, req TreatmentRequest) ([]model.Product, error) {
	idx := indexByID(l.products, id)
	if idx < 0 {
		return nil, ErrNotFound
	}

	result, err := ApplyTreatment(l.products[idx], req, l.now(), l.newID)
	if err != nil {
		return nil, err
	}

	next := l.snapshot()
	next[idx] = result[0]
	if len(result) == 2 {
		next = append(next, result[1])
	}

	if err := l.commit(ctx, next); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the record with the given id.
func (l *Ledger) Delete(ctx context.Context, id string) error {
	idx := indexByID(l.products, id)
	if idx < 0 {
		return ErrNotFound
	}
	next := l.snapshot()
	next = append(next[:idx], next[idx+1:]...)
	return l.commit(ctx, next)
}

// ReplaceAll overwrites the whole collection, the bulk-import path. No
// merge: what was there before is gone. A batch carrying the same id on
// more than one record is rejected wholesale, since every id-addressed
// operation assumes ids are unique across the collection.
func (l *Ledger) ReplaceAll(ctx context.Context, products []model.Product) error {
	next := make([]model.Product, len(products))
	copy(next, products)
	now := l.now()
	seen := make(map[string]bool, len(next))
	for i := range next {
		next[i].Normalize()
		if next[i].ID == "" {
			next[i].ID = l.newID()
		}
		if seen[next[i].ID] {
			return fmt.Errorf("%w: more than one imported record carries id %q", ErrDuplicateProduct, next[i].ID)
		}
		seen[next[i].ID] = true
		next[i].DiasRestantes = next[i].DaysRemaining(now)
	}
	return l.commit(ctx, next)
}

// IsCorrupt reports whether a Load error came from an unreadable stored
// payload, which the caller may downgrade to a warning: the ledger is
// already usable with an empty collection.
func IsCorrupt(err error) bool {
	return errors.Is(err, storage.ErrCorrupt)
}

func (l *Ledger) snapshot() []model.Product {
	out := make([]model.Product, len(l.products))
	copy(out, l.products)
	return out
}

func (l *Ledger) commit(ctx context.Context, next []model.Product) error {
	if err := l.store.Set(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageWrite, err)
	}
	l.products = next
	return nil
}

func indexByID(products []model.Product, id string) int {
	for i, p := range products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func matches(p model.Product, query string, field SearchField) bool {
	q := strings.ToLower(query)
	switch field {
	case FieldCodProd:
		return strings.Contains(strings.ToLower(p.CodProd), q)
	case FieldEAN:
		return strings.Contains(strings.ToLower(p.CodAuxiliar), q)
	default:
		return strings.Contains(strings.ToLower(p.Descricao), q) ||
			strings.Contains(strings.ToLower(p.Lote), q)
	}
}

func exactMatch(p model.Product, query string, field SearchField) bool {
	switch field {
	case FieldCodProd:
		return strings.EqualFold(p.CodProd, query)
	case FieldEAN:
		return strings.EqualFold(p.CodAuxiliar, query)
	default:
		return strings.EqualFold(p.Descricao, query) || strings.EqualFold(p.Lote, query)
	}
}

func stableSortBy(products []model.Product, less func(a, b model.Product) bool) {
	sort.SliceStable(products, func(i, j int) bool { return less(products[i], products[j]) })
}
