// Package feeds loads transaction and receipt exports from disk.
//
// Two formats are supported, chosen by file extension:
//   - .json: an array of objects, or an object wrapping the array under
//     "transactions" / "receipts"
//   - .csv: a header row followed by one record per line
//
// A row whose amount, date or timestamp cannot be parsed is reported as
// skipped; the rest of the file still loads. Empty fields are left at their
// zero value so the batch validator reports them with the usual reasons.
package feeds

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/records"
	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
	"github.com/shopspring/decimal"
)

// ErrUnsupportedFormat is returned for file extensions other than .json and .csv
var ErrUnsupportedFormat = errors.New("unsupported feed format")

// ErrMissingColumn is returned when a CSV header lacks a required column
var ErrMissingColumn = errors.New("missing column")

const dateLayout = "2006-01-02"

// Transactions holds a loaded transaction feed
type Transactions struct {
	Records []records.Transaction
	Skipped []validator.Skipped
}

// Receipts holds a loaded receipt export
type Receipts struct {
	Records []records.Receipt
	Skipped []validator.Skipped
}

// LoadTransactions reads a transaction feed
func LoadTransactions(path string) (*Transactions, error) {
	switch format(path) {
	case "json":
		return readTransactionsJSON(path)
	case "csv":
		return readTransactionsCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// LoadReceipts reads a receipt export
func LoadReceipts(path string) (*Receipts, error) {
	switch format(path) {
	case "json":
		return readReceiptsJSON(path)
	case "csv":
		return readReceiptsCSV(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func format(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}

// transactionRow is the format-neutral shape of one transaction
type transactionRow struct {
	ID             string
	PostedDate     string
	Timestamp      string
	Amount         string
	RawDescription string
	AccountID      string
	Category       string
}

func (row transactionRow) record() (records.Transaction, error) {
	amount, err := parseAmount(row.Amount)
	if err != nil {
		return records.Transaction{}, err
	}
	date, ts, err := parseDate(row.PostedDate)
	if err != nil {
		return records.Transaction{}, err
	}
	if row.Timestamp != "" {
		if ts, err = parseTimestamp(row.Timestamp); err != nil {
			return records.Transaction{}, err
		}
	}
	return records.Transaction{
		ID:             strings.TrimSpace(row.ID),
		PostedDate:     date,
		Timestamp:      ts,
		Amount:         amount,
		RawDescription: strings.TrimSpace(row.RawDescription),
		AccountID:      strings.TrimSpace(row.AccountID),
		Category:       strings.TrimSpace(row.Category),
	}, nil
}

// receiptRow is the format-neutral shape of one receipt
type receiptRow struct {
	ID                   string
	RawMerchantText      string
	Amount               string
	Date                 string
	Timestamp            string
	ExtractionConfidence string
	SourceKind           string
}

func (row receiptRow) record() (records.Receipt, error) {
	amount, err := parseAmount(row.Amount)
	if err != nil {
		return records.Receipt{}, err
	}
	date, ts, err := parseDate(row.Date)
	if err != nil {
		return records.Receipt{}, err
	}
	if row.Timestamp != "" {
		if ts, err = parseTimestamp(row.Timestamp); err != nil {
			return records.Receipt{}, err
		}
	}

	confidence := 1.0
	if c := strings.TrimSpace(row.ExtractionConfidence); c != "" {
		d, err := decimal.NewFromString(c)
		if err != nil {
			return records.Receipt{}, fmt.Errorf("extraction confidence %q: %w", c, err)
		}
		confidence = d.InexactFloat64()
	}

	return records.Receipt{
		ID:                   strings.TrimSpace(row.ID),
		RawMerchantText:      strings.TrimSpace(row.RawMerchantText),
		Amount:               amount,
		Date:                 date,
		Timestamp:            ts,
		ExtractionConfidence: confidence,
		SourceKind:           strings.TrimSpace(row.SourceKind),
	}, nil
}

// parseAmount accepts "1234.56", "-12.00", "$1,234.56" and "(12.00)".
// An empty string is a zero amount.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = s[1 : len(s)-1]
	}
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q: %w", s, err)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// parseDate accepts a calendar date or a full timestamp. A timestamp also
// yields the time of day; the date is taken in the timestamp's own zone.
func parseDate(s string) (time.Time, *time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil, nil
	}
	if d, err := time.Parse(dateLayout, s); err == nil {
		return d, nil, nil
	}
	ts, err := parseTimestamp(s)
	if err != nil {
		return time.Time{}, nil, err
	}
	y, m, d := ts.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), ts, nil
}

func parseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		t, err := time.Parse(layout, s)
		if err == nil {
			return &t, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("timestamp %q: %w", s, lastErr)
}
