package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeReceipt(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantID     string
		wantVendor string
		wantAmount string
		wantTags   []string
	}{
		{name: "flat", raw: `{"id":"1","vendor":"Shop","amount":"3.50"}`, wantID: "1", wantVendor: "Shop", wantAmount: "3.5"},
		{name: "alternate keys", raw: `{"receiptId":7,"merchant_name":"Deli","totalAmount":9.99}`, wantID: "7", wantVendor: "Deli", wantAmount: "9.99"},
		{name: "envelope", raw: `{"result":{"_id":"x","total":"$4"}}`, wantID: "x", wantAmount: "4"},
		{name: "ocr sub-object", raw: `{"id":"2","ocr":{"merchant":"Gas","amount":"40.00"}}`, wantID: "2", wantVendor: "Gas", wantAmount: "40"},
		{name: "top level wins over ocr", raw: `{"id":"3","vendor":"Top","extracted":{"vendor":"Ocr"}}`, wantID: "3", wantVendor: "Top"},
		{name: "tag objects", raw: `{"id":"4","tags":[{"name":"food"},"travel",""]}`, wantID: "4", wantTags: []string{"food", "travel"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := NormalizeReceipt(json.RawMessage(tt.raw))
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, tt.wantID, rec.ID)
			assert.Equal(t, tt.wantVendor, rec.Vendor)
			if tt.wantAmount == "" {
				assert.Nil(t, rec.Amount)
			} else {
				require.NotNil(t, rec.Amount)
				assert.Equal(t, tt.wantAmount, rec.Amount.String())
			}
			if tt.wantTags != nil {
				assert.Equal(t, tt.wantTags, rec.Tags)
			}
		})
	}
}

func TestNormalizeReceipt_EmptyAndInvalid(t *testing.T) {
	rec, err := NormalizeReceipt(nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = NormalizeReceipt(json.RawMessage(`[1,2]`))
	assert.Error(t, err)

	_, err = NormalizeReceipt(json.RawMessage(`{"id":"1","amount":"lots"}`))
	assert.Error(t, err)
}

func TestNormalizeReceipts(t *testing.T) {
	recs, err := NormalizeReceipts(json.RawMessage(`[{"id":"a"},"junk",{"id":"b"}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "b", recs[1].ID)

	recs, err = NormalizeReceipts(json.RawMessage(`{"items":[{"id":"c"}]}`))
	require.NoError(t, err)
	require.Len(t, recs, 1)

	_, err = NormalizeReceipts(json.RawMessage(`{"count":0}`))
	assert.Error(t, err)
}
