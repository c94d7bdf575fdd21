package feeds

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
)

// Required columns per feed. Alternate header spellings map onto them.
var (
	transactionColumns = []string{"id", "posted_date", "amount", "raw_description"}
	receiptColumns     = []string{"id", "raw_merchant_text", "amount", "date"}
	headerAliases      = map[string]string{"description": "raw_description", "merchant": "raw_merchant_text", "date_posted": "posted_date"}
)

func readTransactionsCSV(path string) (*Transactions, error) {
	out := &Transactions{}
	err := readCSV(path, transactionColumns, func(i int, get func(string) string) {
		row := transactionRow{
			ID:             get("id"),
			PostedDate:     get("posted_date"),
			Timestamp:      get("timestamp"),
			Amount:         get("amount"),
			RawDescription: get("raw_description"),
			AccountID:      get("account_id"),
			Category:       get("category"),
		}
		t, err := row.record()
		if err != nil {
			out.Skipped = append(out.Skipped, skipped(validator.KindTransaction, row.ID, i, err))
			return
		}
		out.Records = append(out.Records, t)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func readReceiptsCSV(path string) (*Receipts, error) {
	out := &Receipts{}
	err := readCSV(path, receiptColumns, func(i int, get func(string) string) {
		row := receiptRow{
			ID:                   get("id"),
			RawMerchantText:      get("raw_merchant_text"),
			Amount:               get("amount"),
			Date:                 get("date"),
			Timestamp:            get("timestamp"),
			ExtractionConfidence: get("extraction_confidence"),
			SourceKind:           get("source_kind"),
		}
		r, err := row.record()
		if err != nil {
			out.Skipped = append(out.Skipped, skipped(validator.KindReceipt, row.ID, i, err))
			return
		}
		out.Records = append(out.Records, r)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readCSV reads the header, checks required columns and hands each data row
// to fn with its zero-based index
func readCSV(path string, required []string, fn func(i int, get func(string) string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	col := toIndex(headers)
	for _, k := range required {
		if _, ok := col[k]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingColumn, k)
		}
	}

	for i := 0; ; i++ {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", i, err)
		}
		get := func(name string) string {
			idx, ok := col[name]
			if !ok || idx >= len(rec) {
				return ""
			}
			return rec[idx]
		}
		fn(i, get)
	}
}

func toIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		idx[name] = i
	}
	return idx
}

func skipped(kind validator.Kind, id string, i int, err error) validator.Skipped {
	return validator.Skipped{Kind: kind, ID: strings.TrimSpace(id), Index: i, Reason: err.Error()}
}
