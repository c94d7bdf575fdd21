package feeds

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
)

// text decodes a JSON string, number or null into its literal text so that
// amounts keep their exact decimal digits
type text string

func (t *text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*t = text(n.String())
	}
	return nil
}

type transactionJSON struct {
	ID             text `json:"id"`
	PostedDate     text `json:"posted_date"`
	Date           text `json:"date"`
	Timestamp      text `json:"timestamp"`
	Amount         text `json:"amount"`
	RawDescription text `json:"raw_description"`
	Description    text `json:"description"`
	AccountID      text `json:"account_id"`
	Category       text `json:"category"`
}

func (j transactionJSON) row() transactionRow {
	return transactionRow{
		ID:             string(j.ID),
		PostedDate:     first(j.PostedDate, j.Date),
		Timestamp:      string(j.Timestamp),
		Amount:         string(j.Amount),
		RawDescription: first(j.RawDescription, j.Description),
		AccountID:      string(j.AccountID),
		Category:       string(j.Category),
	}
}

type receiptJSON struct {
	ID                   text `json:"id"`
	RawMerchantText      text `json:"raw_merchant_text"`
	Merchant             text `json:"merchant"`
	Amount               text `json:"amount"`
	Date                 text `json:"date"`
	Timestamp            text `json:"timestamp"`
	ExtractionConfidence text `json:"extraction_confidence"`
	SourceKind           text `json:"source_kind"`
}

func (j receiptJSON) row() receiptRow {
	return receiptRow{
		ID:                   string(j.ID),
		RawMerchantText:      first(j.RawMerchantText, j.Merchant),
		Amount:               string(j.Amount),
		Date:                 string(j.Date),
		Timestamp:            string(j.Timestamp),
		ExtractionConfidence: string(j.ExtractionConfidence),
		SourceKind:           string(j.SourceKind),
	}
}

func readTransactionsJSON(path string) (*Transactions, error) {
	items, err := readJSONArray(path, "transactions")
	if err != nil {
		return nil, err
	}
	return DecodeTransactions(items), nil
}

func readReceiptsJSON(path string) (*Receipts, error) {
	items, err := readJSONArray(path, "receipts")
	if err != nil {
		return nil, err
	}
	return DecodeReceipts(items), nil
}

// DecodeTransactions converts JSON objects into transactions. An element
// that fails to parse is skipped with its position in items.
func DecodeTransactions(items []json.RawMessage) *Transactions {
	out := &Transactions{}
	for i, raw := range items {
		var j transactionJSON
		if err := json.Unmarshal(raw, &j); err != nil {
			out.Skipped = append(out.Skipped, skipped(validator.KindTransaction, rawID(raw), i, err))
			continue
		}
		t, err := j.row().record()
		if err != nil {
			out.Skipped = append(out.Skipped, skipped(validator.KindTransaction, string(j.ID), i, err))
			continue
		}
		out.Records = append(out.Records, t)
	}
	return out
}

// DecodeReceipts converts JSON objects into receipts. An element that fails
// to parse is skipped with its position in items.
func DecodeReceipts(items []json.RawMessage) *Receipts {
	out := &Receipts{}
	for i, raw := range items {
		var j receiptJSON
		if err := json.Unmarshal(raw, &j); err != nil {
			out.Skipped = append(out.Skipped, skipped(validator.KindReceipt, rawID(raw), i, err))
			continue
		}
		r, err := j.row().record()
		if err != nil {
			out.Skipped = append(out.Skipped, skipped(validator.KindReceipt, string(j.ID), i, err))
			continue
		}
		out.Records = append(out.Records, r)
	}
	return out
}

// readJSONArray returns the elements of a top-level array, or of the array
// stored under key in a top-level object
func readJSONArray(path, key string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)

	var items []json.RawMessage
	if len(data) > 0 && data[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		inner, ok := wrapper[key]
		if !ok {
			return nil, fmt.Errorf("failed to parse %s: no %q array", path, key)
		}
		data = inner
	}
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return items, nil
}

// rawID pulls the id out of an element that failed to decode, if possible
func rawID(raw json.RawMessage) string {
	var probe struct {
		ID text `json:"id"`
	}
	if json.Unmarshal(raw, &probe) != nil {
		return ""
	}
	return string(probe.ID)
}

func first(values ...text) string {
	for _, v := range values {
		if s := strings.TrimSpace(string(v)); s != "" {
			return s
		}
	}
	return ""
}
