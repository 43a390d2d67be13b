// Package memory provides in-process implementations of the record store,
// outbox, archive and telemetry caches. They back the development storage
// driver and the component tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/provenance-ledger/internal/domain/ledger"
	"github.com/provenance-ledger/internal/domain/outbox"
	"github.com/provenance-ledger/internal/domain/product"
	"github.com/provenance-ledger/internal/domain/shared"
)

type stream struct {
	records      []*ledger.Record // records[i].RecordID == i+1
	suppressedBy map[int64]int64
	keys         map[string]int64
	head         ledger.Head
	updatedAt    time.Time
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Store is a ledger.Store held in memory. Writers of one product are
// serialized by a per-product mutex; commits are applied under a
// store-wide lock so readers never observe a half-applied update.
type Store struct {
	mu       sync.RWMutex
	products map[string]*product.Product
	rfid     map[string]string
	streams  map[string]*stream
	outbox   []*outbox.Message
	nextMsg  int64

	locksMu sync.Mutex
	locks   map[string]*keyLock
}

var (
	_ ledger.Store      = (*Store)(nil)
	_ outbox.Repository = (*Store)(nil)
)

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{
		products: make(map[string]*product.Product),
		rfid:     make(map[string]string),
		streams:  make(map[string]*stream),
		locks:    make(map[string]*keyLock),
	}
}

func (s *Store) lock(productID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[productID]
	if !ok {
		l = &keyLock{}
		s.locks[productID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, productID)
		}
		s.locksMu.Unlock()
	}
}

// Update implements ledger.Store
func (s *Store) Update(ctx context.Context, productID string, fn func(w ledger.Writer) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.lock(productID)
	defer unlock()

	s.mu.RLock()
	w := &writer{
		store:     s,
		productID: productID,
		product:   s.products[productID].Clone(),
		head:      ledger.Head{ProductID: productID},
		suppress:  make(map[int64]int64),
		keys:      make(map[string]int64),
	}
	if st, ok := s.streams[productID]; ok {
		w.head = st.head
	}
	s.mu.RUnlock()

	if err := fn(w); err != nil {
		return err
	}
	return s.commit(w)
}

func (s *Store) commit(w *writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.created {
		if _, exists := s.products[w.productID]; exists {
			return product.ErrDuplicateProduct{ProductID: w.productID}
		}
	}
	if w.dirty && w.product != nil && w.product.RFIDTag != "" {
		if owner, ok := s.rfid[w.product.RFIDTag]; ok && owner != w.productID {
			return product.ErrDuplicateRFID{Tag: w.product.RFIDTag}
		}
	}

	msgs := make([]*outbox.Message, 0, len(w.appended))
	for _, rec := range w.appended {
		msg, err := outbox.NewMessage(rec)
		if err != nil {
			return shared.NewStorageError("outbox", err)
		}
		msgs = append(msgs, msg)
	}

	st, ok := s.streams[w.productID]
	if !ok && (len(w.appended) > 0 || len(w.suppress) > 0) {
		st = &stream{suppressedBy: make(map[int64]int64), keys: make(map[string]int64)}
		s.streams[w.productID] = st
	}
	if w.dirty && w.product != nil {
		s.products[w.productID] = w.product.Clone()
		if w.product.RFIDTag != "" {
			s.rfid[w.product.RFIDTag] = w.productID
		}
	}
	for i, rec := range w.appended {
		st.records = append(st.records, rec)
		if rec.IdempotencyKey != "" {
			st.keys[rec.IdempotencyKey] = rec.RecordID
		}
		st.head = st.head.Advance(rec)
		st.updatedAt = rec.Timestamp

		s.nextMsg++
		msgs[i].ID = s.nextMsg
		s.outbox = append(s.outbox, msgs[i])
	}
	for target, by := range w.suppress {
		st.suppressedBy[target] = by
	}
	return nil
}

// GetProduct implements ledger.Reader
func (s *Store) GetProduct(ctx context.Context, productID string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, product.ErrProductNotFound{ProductID: productID}
	}
	return p.Clone(), nil
}

// GetProductByRFID implements ledger.Reader
func (s *Store) GetProductByRFID(ctx context.Context, tag string) (*product.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.rfid[tag]
	if !ok {
		return nil, product.ErrRFIDNotBound{Tag: tag}
	}
	return s.products[id].Clone(), nil
}

// Records implements ledger.Reader
func (s *Store) Records(ctx context.Context, productID string) ([]*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.streams[productID]
	if !ok {
		return []*ledger.Record{}, nil
	}
	out := make([]*ledger.Record, len(st.records))
	for i, r := range st.records {
		out[i] = st.view(r, nil)
	}
	return out, nil
}

// Record implements ledger.Reader
func (s *Store) Record(ctx context.Context, productID string, recordID int64) (*ledger.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.streams[productID]
	if !ok || recordID < 1 || recordID > int64(len(st.records)) {
		return nil, ledger.ErrRecordNotFound{ProductID: productID, RecordID: recordID}
	}
	return st.view(st.records[recordID-1], nil), nil
}

// RecentlyUpdated implements ledger.Reader
func (s *Store) RecentlyUpdated(ctx context.Context, since time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	type entry struct {
		id string
		at time.Time
	}
	var entries []entry
	for id, st := range s.streams {
		if !st.updatedAt.Before(since) {
			entries = append(entries, entry{id: id, at: st.updatedAt})
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(entries, func(a, b entry) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

// view clones r with its suppression derived from committed and staged
// corrections
func (st *stream) view(r *ledger.Record, staged map[int64]int64) *ledger.Record {
	c := r.Clone()
	if by, ok := st.suppressedBy[r.RecordID]; ok {
		c.Deleted, c.CorrectedBy = true, by
	} else if by, ok := staged[r.RecordID]; ok {
		c.Deleted, c.CorrectedBy = true, by
	}
	return c
}

// writer stages the writes of one Update call
type writer struct {
	store     *Store
	productID string
	product   *product.Product
	created   bool
	dirty     bool
	head      ledger.Head
	appended  []*ledger.Record
	suppress  map[int64]int64
	keys      map[string]int64
}

func (w *writer) Product() *product.Product { return w.product.Clone() }

func (w *writer) Head() ledger.Head { return w.head }

func (w *writer) RecordByIdempotencyKey(ctx context.Context, key string) (*ledger.Record, error) {
	if key == "" {
		return nil, nil
	}
	if id, ok := w.keys[key]; ok {
		return w.Record(ctx, id)
	}
	w.store.mu.RLock()
	st, ok := w.store.streams[w.productID]
	var id int64
	if ok {
		id = st.keys[key]
	}
	w.store.mu.RUnlock()
	if id == 0 {
		return nil, nil
	}
	return w.Record(ctx, id)
}

func (w *writer) Record(ctx context.Context, recordID int64) (*ledger.Record, error) {
	for _, r := range w.appended {
		if r.RecordID == recordID {
			c := r.Clone()
			if by, ok := w.suppress[recordID]; ok {
				c.Deleted, c.CorrectedBy = true, by
			}
			return c, nil
		}
	}
	w.store.mu.RLock()
	defer w.store.mu.RUnlock()
	st, ok := w.store.streams[w.productID]
	if !ok || recordID < 1 || recordID > int64(len(st.records)) {
		return nil, ledger.ErrRecordNotFound{ProductID: w.productID, RecordID: recordID}
	}
	return st.view(st.records[recordID-1], w.suppress), nil
}

func (w *writer) CreateProduct(ctx context.Context, p *product.Product) error {
	if w.product != nil && !w.created {
		return product.ErrDuplicateProduct{ProductID: p.ID}
	}
	if p.ID != w.productID {
		return shared.ErrInvalidInput{Field: "id", Reason: "does not match the locked product"}
	}
	w.product = p.Clone()
	w.created = true
	w.dirty = true
	return nil
}

func (w *writer) SaveProduct(ctx context.Context, p *product.Product) error {
	if w.product == nil {
		return product.ErrProductNotFound{ProductID: p.ID}
	}
	if p.RFIDTag != "" && p.RFIDTag != w.product.RFIDTag {
		w.store.mu.RLock()
		owner, taken := w.store.rfid[p.RFIDTag]
		w.store.mu.RUnlock()
		if taken && owner != w.productID {
			return product.ErrDuplicateRFID{Tag: p.RFIDTag}
		}
	}
	w.product = p.Clone()
	w.dirty = true
	return nil
}

func (w *writer) Append(ctx context.Context, rec *ledger.Record) error {
	if rec.ProductID != w.productID || rec.RecordID != w.head.LastRecordID+1 || rec.PrevHash != w.head.Hash {
		return ledger.ErrChainBroken{ProductID: rec.ProductID, RecordID: rec.RecordID, Reason: "record does not extend the head"}
	}
	if rec.IdempotencyKey != "" {
		existing, err := w.RecordByIdempotencyKey(ctx, rec.IdempotencyKey)
		if err != nil {
			return err
		}
		if existing != nil {
			return shared.ErrInvalidInput{Field: "idempotency_key", Reason: "already used"}
		}
		w.keys[rec.IdempotencyKey] = rec.RecordID
	}
	w.appended = append(w.appended, rec.Clone())
	w.head = w.head.Advance(rec)
	return nil
}

func (w *writer) Suppress(ctx context.Context, targetID, correctionID int64) error {
	target, err := w.Record(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Deleted {
		return ledger.ErrAlreadyCorrected{ProductID: w.productID, RecordID: targetID}
	}
	w.suppress[targetID] = correctionID
	return nil
}
