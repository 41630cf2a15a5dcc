package models

import (
	"slices"

	"github.com/shopspring/decimal"
)

// ReceiptRecord is a receipt as the backend reports it, after normalization.
type ReceiptRecord struct {
	ID     string
	Entity string
	Vendor string
	Amount *decimal.Decimal
	Date   string
	Tags   []string
	Notes  string
}

// ReceiptPatch is a partial update; nil fields are left untouched.
type ReceiptPatch struct {
	Vendor *string          `json:"vendor,omitempty"`
	Amount *decimal.Decimal `json:"amount,omitempty"`
	Date   *string          `json:"date,omitempty"`
	Tags   []string         `json:"tags,omitempty"`
	Notes  *string          `json:"notes,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p ReceiptPatch) Empty() bool {
	return p.Vendor == nil && p.Amount == nil && p.Date == nil && p.Tags == nil && p.Notes == nil
}

// LocalOverrides returns the patch that makes rec match the locally entered
// values of d. Empty local fields never overwrite server data.
func LocalOverrides(d ReceiptDraft, rec *ReceiptRecord) ReceiptPatch {
	var server ReceiptRecord
	if rec != nil {
		server = *rec
	}

	var p ReceiptPatch
	if d.Vendor != "" && d.Vendor != server.Vendor {
		v := d.Vendor
		p.Vendor = &v
	}
	if d.Amount != nil && (server.Amount == nil || !d.Amount.Equal(*server.Amount)) {
		a := *d.Amount
		p.Amount = &a
	}
	if d.Date != "" && d.Date != server.Date {
		v := d.Date
		p.Date = &v
	}
	if len(d.Tags) > 0 && !slices.Equal(d.Tags, server.Tags) {
		p.Tags = slices.Clone(d.Tags)
	}
	if d.Notes != "" && d.Notes != server.Notes {
		v := d.Notes
		p.Notes = &v
	}
	return p
}
