package validator

import (
	"testing"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/records"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jan15 = time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)

func txn(id, amount string, date time.Time) records.Transaction {
	t := records.Transaction{ID: id, PostedDate: date, RawDescription: "STARBUCKS"}
	if amount != "" {
		t.Amount = decimal.RequireFromString(amount)
	}
	return t
}

func receipt(id, amount string, date time.Time) records.Receipt {
	r := records.Receipt{ID: id, Date: date, RawMerchantText: "Starbucks", ExtractionConfidence: 0.9}
	if amount != "" {
		r.Amount = decimal.RequireFromString(amount)
	}
	return r
}

func TestValidateTransaction(t *testing.T) {
	assert.NoError(t, ValidateTransaction(txn("t1", "-9.47", jan15)))

	err := ValidateTransaction(txn("", "", time.Time{}))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingID)
	assert.ErrorIs(t, err, ErrMissingAmount)
	assert.ErrorIs(t, err, ErrMissingDate)
}

func TestValidateReceipt(t *testing.T) {
	assert.NoError(t, ValidateReceipt(receipt("r1", "9.47", jan15)))

	r := receipt("r1", "9.47", jan15)
	r.ExtractionConfidence = 1.2
	assert.ErrorIs(t, ValidateReceipt(r), ErrInvalidConfidence)

	assert.ErrorIs(t, ValidateReceipt(receipt("r2", "0", jan15)), ErrMissingAmount)
	assert.ErrorIs(t, ValidateReceipt(receipt("r3", "5.00", time.Time{})), ErrMissingDate)
}

func TestValidateBatch_SkipsMalformedWithoutAborting(t *testing.T) {
	// Arrange
	transactions := []records.Transaction{
		txn("t1", "-9.47", jan15),
		txn("t2", "", jan15),
		txn("t3", "-12.00", time.Time{}),
		txn("t4", "-20.00", jan15),
	}
	receipts := []records.Receipt{
		receipt("", "9.47", jan15),
		receipt("r1", "9.47", jan15),
	}

	// Act
	result := ValidateBatch(transactions, receipts)

	// Assert
	require.Len(t, result.Transactions, 2)
	assert.Equal(t, "t1", result.Transactions[0].ID)
	assert.Equal(t, "t4", result.Transactions[1].ID)
	require.Len(t, result.Receipts, 1)
	assert.Equal(t, "r1", result.Receipts[0].ID)

	require.Len(t, result.Skipped, 3)
	assert.Equal(t, Skipped{Kind: KindTransaction, ID: "t2", Index: 1, Reason: "missing or zero amount"}, result.Skipped[0])
	assert.Equal(t, Skipped{Kind: KindTransaction, ID: "t3", Index: 2, Reason: "missing date"}, result.Skipped[1])
	assert.Equal(t, KindReceipt, result.Skipped[2].Kind)
	assert.Equal(t, 0, result.Skipped[2].Index)
}

func TestValidateBatch_DuplicateIDs(t *testing.T) {
	result := ValidateBatch(
		[]records.Transaction{txn("t1", "-9.47", jan15), txn("t1", "-5.00", jan15)},
		[]records.Receipt{receipt("r1", "9.47", jan15), receipt("r1", "9.47", jan15)},
	)

	require.Len(t, result.Transactions, 1)
	assert.Equal(t, "-9.47", result.Transactions[0].Amount.String())
	require.Len(t, result.Receipts, 1)
	require.Len(t, result.Skipped, 2)
	assert.Equal(t, "duplicate id: t1", result.Skipped[0].Reason)
	assert.Equal(t, "duplicate id: r1", result.Skipped[1].Reason)
}

func TestValidateBatch_Empty(t *testing.T) {
	result := ValidateBatch(nil, nil)

	assert.Empty(t, result.Transactions)
	assert.Empty(t, result.Receipts)
	assert.Empty(t, result.Skipped)
}

func TestValidateBatch_MultipleProblemsOnOneLine(t *testing.T) {
	result := ValidateBatch([]records.Transaction{txn("", "", jan15)}, nil)

	require.Len(t, result.Skipped, 1)
	assert.Equal(t, "missing id; missing or zero amount", result.Skipped[0].Reason)
}
