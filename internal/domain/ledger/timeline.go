package ledger

import (
	"iter"
	"slices"
	"time"

	"github.com/provenance-ledger/internal/domain/shared"
)

// TimelineOptions filter a timeline. Zero values mean unbounded.
type TimelineOptions struct {
	From  *time.Time
	To    *time.Time
	Types []RecordType
}

// Validate rejects an inverted time range
func (o TimelineOptions) Validate() error {
	if o.From != nil && o.To != nil && o.To.Before(*o.From) {
		return shared.ErrInvalidInput{Field: "to", Reason: "must not precede from"}
	}
	return nil
}

func (o TimelineOptions) matches(r *Record) bool {
	if o.From != nil && r.Timestamp.Before(*o.From) {
		return false
	}
	if o.To != nil && r.Timestamp.After(*o.To) {
		return false
	}
	if len(o.Types) > 0 && !slices.Contains(o.Types, r.Type) {
		return false
	}
	return true
}

// Timeline is an ordered, filtered view over one product's records taken
// at a single point in time. It is built per request and never cached.
type Timeline struct {
	ProductID string
	records   []*Record
	opts      TimelineOptions
}

// NewTimeline orders records by (timestamp, recordID)
func NewTimeline(productID string, records []*Record, opts TimelineOptions) *Timeline {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, compareRecords)
	return &Timeline{ProductID: productID, records: sorted, opts: opts}
}

func compareRecords(a, b *Record) int {
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	switch {
	case a.RecordID < b.RecordID:
		return -1
	case a.RecordID > b.RecordID:
		return 1
	}
	return 0
}

// All yields the visible records lazily. The sequence can be ranged over
// any number of times and always yields the same records.
func (t *Timeline) All() iter.Seq[*Record] {
	return func(yield func(*Record) bool) {
		for _, r := range t.records {
			if r.Deleted || !t.opts.matches(r) {
				continue
			}
			if !yield(r.Clone()) {
				return
			}
		}
	}
}

// Collect materializes the visible records
func (t *Timeline) Collect() []*Record {
	out := make([]*Record, 0, len(t.records))
	for r := range t.All() {
		out = append(out, r)
	}
	return out
}

// Len counts the visible records
func (t *Timeline) Len() int {
	n := 0
	for range t.All() {
		n++
	}
	return n
}
