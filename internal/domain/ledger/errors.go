package ledger

import (
	"fmt"

	"github.com/provenance-ledger/internal/domain/shared"
)

// ErrRecordNotFound indicates an unknown record
type ErrRecordNotFound struct {
	ProductID string
	RecordID  int64
}

func (e ErrRecordNotFound) Error() string {
	return fmt.Sprintf("record %d not found for product %s", e.RecordID, e.ProductID)
}

func (e ErrRecordNotFound) Kind() shared.ErrorKind { return shared.KindNotFound }

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	if t.RecordID == 0 {
		return true
	}
	return e.ProductID == t.ProductID && e.RecordID == t.RecordID
}

// ErrAlreadyCorrected indicates a record that is already suppressed
type ErrAlreadyCorrected struct {
	ProductID string
	RecordID  int64
}

func (e ErrAlreadyCorrected) Error() string {
	return fmt.Sprintf("record %d of product %s is already corrected", e.RecordID, e.ProductID)
}

func (e ErrAlreadyCorrected) Kind() shared.ErrorKind { return shared.KindAlreadyCorrected }

// Is implements the errors.Is interface for ErrAlreadyCorrected
func (e ErrAlreadyCorrected) Is(target error) bool {
	_, ok := target.(ErrAlreadyCorrected)
	return ok
}

// ErrNotCorrectable indicates a record type that cannot be suppressed
type ErrNotCorrectable struct {
	ProductID string
	RecordID  int64
	Type      RecordType
}

func (e ErrNotCorrectable) Error() string {
	return fmt.Sprintf("%s record %d of product %s cannot be corrected", e.Type, e.RecordID, e.ProductID)
}

func (e ErrNotCorrectable) Kind() shared.ErrorKind { return shared.KindInvalidState }

// ErrChainBroken indicates a record stream whose hash chain does not verify
type ErrChainBroken struct {
	ProductID string
	RecordID  int64
	Reason    string
}

func (e ErrChainBroken) Error() string {
	return fmt.Sprintf("hash chain broken at record %d of product %s: %s", e.RecordID, e.ProductID, e.Reason)
}

func (e ErrChainBroken) Kind() shared.ErrorKind { return shared.KindIntegrityViolation }
