package feeds

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eshaffer321/receipt-reconciler/internal/domain/validator"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadTransactions_CSV(t *testing.T) {
	path := writeFeed(t, "txns.csv", `id,posted_date,amount,description,account_id,category
t1,2024-01-15,-15.75,STARBUCKS #4521,chk,
t2,2024-01-16T09:30:00-05:00,"$1,234.50",HOME DEPOT #1234,chk,Home Improvement
t3,2024-01-17,(42.00),SHELL OIL,card,
t4,2024-01-18,abc,BROKEN,chk,
t5,not-a-date,-3.00,BROKEN DATE,chk,
`)

	feed, err := LoadTransactions(path)
	require.NoError(t, err)
	require.Len(t, feed.Records, 3)
	require.Len(t, feed.Skipped, 2)

	t1 := feed.Records[0]
	assert.Equal(t, "t1", t1.ID)
	assert.True(t, decimal.RequireFromString("-15.75").Equal(t1.Amount))
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), t1.PostedDate)
	assert.Nil(t, t1.Timestamp)
	assert.Equal(t, "STARBUCKS #4521", t1.RawDescription)

	t2 := feed.Records[1]
	assert.True(t, decimal.RequireFromString("1234.50").Equal(t2.Amount))
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), t2.PostedDate)
	require.NotNil(t, t2.Timestamp)
	assert.Equal(t, 9, t2.Timestamp.Hour())
	assert.Equal(t, "Home Improvement", t2.Category)

	assert.True(t, decimal.RequireFromString("-42").Equal(feed.Records[2].Amount))

	assert.Equal(t, validator.KindTransaction, feed.Skipped[0].Kind)
	assert.Equal(t, "t4", feed.Skipped[0].ID)
	assert.Equal(t, 3, feed.Skipped[0].Index)
	assert.Contains(t, feed.Skipped[0].Reason, "amount")
	assert.Equal(t, "t5", feed.Skipped[1].ID)
}

func TestLoadTransactions_CSVMissingColumn(t *testing.T) {
	path := writeFeed(t, "txns.csv", "id,amount\nt1,1.00\n")

	_, err := LoadTransactions(path)
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoadTransactions_EmptyFieldsLeftForValidator(t *testing.T) {
	path := writeFeed(t, "txns.csv", "id,posted_date,amount,raw_description\n,2024-01-15,,COFFEE\n")

	feed, err := LoadTransactions(path)
	require.NoError(t, err)
	require.Len(t, feed.Records, 1)
	assert.Empty(t, feed.Skipped)

	valid := validator.ValidateBatch(feed.Records, nil)
	require.Len(t, valid.Skipped, 1)
	assert.Contains(t, valid.Skipped[0].Reason, "missing id")
}

func TestLoadReceipts_JSON(t *testing.T) {
	path := writeFeed(t, "receipts.json", `[
  {"id": "r1", "raw_merchant_text": "Starbucks Coffee", "amount": 15.75, "date": "2024-01-15", "extraction_confidence": 0.92, "source_kind": "email"},
  {"id": "r2", "merchant": "Home Depot", "amount": "127.43", "date": "2024-01-16T14:05:00Z"},
  {"id": "r3", "merchant": "Bad", "amount": "12..0", "date": "2024-01-16"},
  {"id": {"nested": true}, "amount": 1}
]`)

	feed, err := LoadReceipts(path)
	require.NoError(t, err)
	require.Len(t, feed.Records, 2)
	require.Len(t, feed.Skipped, 2)

	r1 := feed.Records[0]
	assert.Equal(t, "Starbucks Coffee", r1.RawMerchantText)
	assert.Equal(t, "15.75", r1.Amount.StringFixed(2))
	assert.InDelta(t, 0.92, r1.ExtractionConfidence, 1e-9)
	assert.Equal(t, "email", r1.SourceKind)

	r2 := feed.Records[1]
	assert.Equal(t, "Home Depot", r2.RawMerchantText)
	assert.Equal(t, 1.0, r2.ExtractionConfidence, "confidence defaults to 1")
	require.NotNil(t, r2.Timestamp)
	assert.Equal(t, 14, r2.Timestamp.Hour())

	assert.Equal(t, "r3", feed.Skipped[0].ID)
	assert.Equal(t, 2, feed.Skipped[0].Index)
	assert.Equal(t, validator.KindReceipt, feed.Skipped[1].Kind)
	assert.Equal(t, 3, feed.Skipped[1].Index)
}

func TestLoadTransactions_JSONWrapped(t *testing.T) {
	path := writeFeed(t, "batch.json", `{"transactions": [
  {"id": "t1", "posted_date": "2024-01-15", "amount": "-15.75", "raw_description": "STARBUCKS", "timestamp": "2024-01-15 08:12:00"}
]}`)

	feed, err := LoadTransactions(path)
	require.NoError(t, err)
	require.Len(t, feed.Records, 1)
	require.NotNil(t, feed.Records[0].Timestamp)
	assert.Equal(t, 8, feed.Records[0].Timestamp.Hour())
}

func TestLoadReceipts_JSONWrongWrapper(t *testing.T) {
	path := writeFeed(t, "batch.json", `{"transactions": []}`)

	_, err := LoadReceipts(path)
	assert.Error(t, err)
}

func TestLoadReceipts_CSV(t *testing.T) {
	path := writeFeed(t, "receipts.csv", "\ufeffid,merchant,amount,date,timestamp,extraction_confidence\nr1,Shell,45.00,2024-02-01,2024-02-01T07:45:00Z,0.8\nr2,Shell,45.00,2024-02-01,,nope\n")

	feed, err := LoadReceipts(path)
	require.NoError(t, err)
	require.Len(t, feed.Records, 1)
	require.Len(t, feed.Skipped, 1)
	assert.Equal(t, "Shell", feed.Records[0].RawMerchantText)
	require.NotNil(t, feed.Records[0].Timestamp)
	assert.Contains(t, feed.Skipped[0].Reason, "extraction confidence")
}

func TestLoad_UnsupportedFormat(t *testing.T) {
	path := writeFeed(t, "txns.xlsx", "")

	_, err := LoadTransactions(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = LoadReceipts(path)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12.34", "12.34"},
		{"-0.99", "-0.99"},
		{"$1,000.00", "1000"},
		{"(5.50)", "-5.5"},
		{"", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseAmount(tt.in)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}

	_, err := parseAmount("twelve")
	assert.Error(t, err)
}

func TestDecodeReceipts_SkipsElementsThatFailToParse(t *testing.T) {
	items := []json.RawMessage{
		json.RawMessage(`{"id": "r1", "merchant": "SQ *COFFEE SHOP", "amount": 4.50, "date": "2025-01-15"}`),
		json.RawMessage(`{"id": "r2", "merchant": "Somewhere", "amount": "abc", "date": "2025-01-15"}`),
		json.RawMessage(`["not", "an", "object"]`),
		json.RawMessage(`{"id": "r4", "merchant": "Hardware", "amount": "12.00", "date": "2025-01-16"}`),
	}

	feed := DecodeReceipts(items)
	require.Len(t, feed.Records, 2)
	assert.Equal(t, "r1", feed.Records[0].ID)
	assert.Equal(t, 1.0, feed.Records[0].ExtractionConfidence)
	assert.Equal(t, "r4", feed.Records[1].ID)

	require.Len(t, feed.Skipped, 2)
	assert.Equal(t, validator.Skipped{Kind: validator.KindReceipt, ID: "r2", Index: 1, Reason: feed.Skipped[0].Reason}, feed.Skipped[0])
	assert.Equal(t, 2, feed.Skipped[1].Index)
	assert.Empty(t, feed.Skipped[1].ID)
}
