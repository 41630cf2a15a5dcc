package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/snaptrack/snaptrack/internal/client/models"
)

// Alternative names the backend has used for the same logical field.
var (
	idKeys     = []string{"id", "receipt_id", "receiptId", "_id"}
	entityKeys = []string{"entity", "entity_name", "entityName", "category"}
	vendorKeys = []string{"vendor", "merchant", "merchant_name", "merchantName", "vendor_name"}
	amountKeys = []string{"amount", "total", "total_amount", "totalAmount"}
	dateKeys   = []string{"date", "receipt_date", "receiptDate", "transaction_date", "tx_date"}
	notesKeys  = []string{"notes", "note", "description"}

	wrapperKeys   = []string{"receipt", "data", "result"}
	extractedKeys = []string{"extracted", "extracted_data", "extractedData", "ocr", "ocr_result"}
	listKeys      = []string{"receipts", "data", "items", "results"}
)

// NormalizeReceipt maps one receipt payload into a ReceiptRecord. A nil or
// empty payload yields (nil, nil).
func NormalizeReceipt(raw json.RawMessage) (*models.ReceiptRecord, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	m, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	return recordFrom(unwrap(m))
}

// NormalizeReceipts maps a receipt list payload, either a bare array or an
// object holding the array under a list key.
func NormalizeReceipts(raw json.RawMessage) ([]models.ReceiptRecord, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode receipts: %w", err)
	}

	var items []any
	switch t := v.(type) {
	case []any:
		items = t
	case map[string]any:
		for _, k := range listKeys {
			if list, ok := t[k].([]any); ok {
				items = list
				break
			}
		}
		if items == nil {
			return nil, fmt.Errorf("decode receipts: no list in response")
		}
	default:
		return nil, fmt.Errorf("decode receipts: unexpected %T", v)
	}

	out := make([]models.ReceiptRecord, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		rec, err := recordFrom(unwrap(m))
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return m, nil
}

// unwrap descends through envelope objects such as {"data":{"receipt":{...}}}.
func unwrap(m map[string]any) map[string]any {
	for depth := 0; depth < 3; depth++ {
		if firstString(m, idKeys...) != "" {
			return m
		}
		inner := firstObject(m, wrapperKeys...)
		if inner == nil {
			return m
		}
		m = inner
	}
	return m
}

func recordFrom(m map[string]any) (*models.ReceiptRecord, error) {
	ocr := firstObject(m, extractedKeys...)
	lookup := func(keys []string) string {
		if s := firstString(m, keys...); s != "" {
			return s
		}
		return firstString(ocr, keys...)
	}

	rec := &models.ReceiptRecord{
		ID:     firstString(m, idKeys...),
		Entity: lookup(entityKeys),
		Vendor: lookup(vendorKeys),
		Date:   lookup(dateKeys),
		Notes:  firstString(m, notesKeys...),
		Tags:   tagsFrom(m["tags"]),
	}

	if s := lookup(amountKeys); s != "" {
		d, err := decimal.NewFromString(strings.TrimPrefix(s, "$"))
		if err != nil {
			return nil, fmt.Errorf("receipt %s: amount %q: %w", rec.ID, s, err)
		}
		rec.Amount = &d
	}
	return rec, nil
}

func tagsFrom(v any) []string {
	switch t := v.(type) {
	case []any:
		tags := make([]string, 0, len(t))
		for _, x := range t {
			if s := scalarString(x); s != "" {
				tags = append(tags, s)
			} else if obj, ok := x.(map[string]any); ok {
				if name := firstString(obj, "name", "tag"); name != "" {
					tags = append(tags, name)
				}
			}
		}
		return tags
	case string:
		var tags []string
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	default:
		return nil
	}
}

func firstObject(m map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if obj, ok := m[k].(map[string]any); ok {
			return obj
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := scalarString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
