// Package validator screens incoming batches before reconciliation.
//
// A malformed record never aborts the batch. It is removed from processing
// and reported in the skip list with the reason it was rejected:
//   - missing id
//   - zero or missing amount
//   - missing date
//   - extraction confidence outside [0,1] (receipts only)
//   - an id already seen earlier in the same batch
package validator

import (
	"errors"
	"fmt"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/records"
)

var (
	ErrMissingID         = errors.New("missing id")
	ErrMissingAmount     = errors.New("missing or zero amount")
	ErrMissingDate       = errors.New("missing date")
	ErrInvalidConfidence = errors.New("extraction confidence outside [0,1]")
	ErrDuplicateID       = errors.New("duplicate id")
)

// Kind identifies which stream a skipped record came from
type Kind string

const (
	KindTransaction Kind = "transaction"
	KindReceipt     Kind = "receipt"
)

// Skipped is a record that was excluded from the batch
type Skipped struct {
	Kind   Kind   `json:"kind"`
	ID     string `json:"id,omitempty"`
	Index  int    `json:"index"` // Position in the input stream
	Reason string `json:"reason"`
}

// BatchValidation contains the records that may be reconciled and the ones that may not
type BatchValidation struct {
	Transactions []records.Transaction
	Receipts     []records.Receipt
	Skipped      []Skipped
}

// ValidateTransaction checks a single transaction
func ValidateTransaction(t records.Transaction) error {
	var errs []error
	if t.ID == "" {
		errs = append(errs, ErrMissingID)
	}
	if t.Amount.IsZero() {
		errs = append(errs, ErrMissingAmount)
	}
	if t.PostedDate.IsZero() {
		errs = append(errs, ErrMissingDate)
	}
	return errors.Join(errs...)
}

// ValidateReceipt checks a single receipt
func ValidateReceipt(r records.Receipt) error {
	var errs []error
	if r.ID == "" {
		errs = append(errs, ErrMissingID)
	}
	if r.Amount.IsZero() {
		errs = append(errs, ErrMissingAmount)
	}
	if r.Date.IsZero() {
		errs = append(errs, ErrMissingDate)
	}
	if r.ExtractionConfidence < 0 || r.ExtractionConfidence > 1 {
		errs = append(errs, ErrInvalidConfidence)
	}
	return errors.Join(errs...)
}

// ValidateBatch splits a batch into usable records and a skip list. Input
// order is preserved for the records that pass. The first record with a
// given id wins; later duplicates are skipped.
func ValidateBatch(transactions []records.Transaction, receipts []records.Receipt) *BatchValidation {
	result := &BatchValidation{
		Transactions: make([]records.Transaction, 0, len(transactions)),
		Receipts:     make([]records.Receipt, 0, len(receipts)),
	}

	seenTxn := make(map[string]bool, len(transactions))
	for i, t := range transactions {
		err := ValidateTransaction(t)
		if err == nil && seenTxn[t.ID] {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
		if err != nil {
			result.Skipped = append(result.Skipped, Skipped{Kind: KindTransaction, ID: t.ID, Index: i, Reason: reason(err)})
			continue
		}
		seenTxn[t.ID] = true
		result.Transactions = append(result.Transactions, t)
	}

	seenReceipt := make(map[string]bool, len(receipts))
	for i, r := range receipts {
		err := ValidateReceipt(r)
		if err == nil && seenReceipt[r.ID] {
			err = fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		if err != nil {
			result.Skipped = append(result.Skipped, Skipped{Kind: KindReceipt, ID: r.ID, Index: i, Reason: reason(err)})
			continue
		}
		seenReceipt[r.ID] = true
		result.Receipts = append(result.Receipts, r)
	}

	return result
}

// reason flattens a joined error onto one line
func reason(err error) string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		msg := ""
		for i, e := range joined.Unwrap() {
			if i > 0 {
				msg += "; "
			}
			msg += e.Error()
		}
		return msg
	}
	return err.Error()
}
