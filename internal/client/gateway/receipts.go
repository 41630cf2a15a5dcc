package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/snaptrack/snaptrack/internal/client/models"
	"github.com/snaptrack/snaptrack/internal/common"
)

// UploadReceipt submits a receipt image with its entity, tags and notes as
// multipart form data. The returned record carries whatever the server
// extracted; its ID is empty when the server reported no created record.
func (g *Gateway) UploadReceipt(ctx context.Context, req models.UploadRequest) (*models.ReceiptRecord, error) {
	img, err := g.images.Open(ctx, req.ImageRef)
	if err != nil {
		return nil, g.failed(ctx, http.MethodPost, common.EndpointReceiptUpload,
			&Error{Kind: KindClient, Message: msgImageUnusable, Err: err})
	}
	content, err := io.ReadAll(img.Content)
	_ = img.Content.Close()
	if err != nil {
		return nil, g.failed(ctx, http.MethodPost, common.EndpointReceiptUpload,
			&Error{Kind: KindClient, Message: msgImageUnusable, Err: err})
	}

	form := NewForm().
		File("image", img.Name, content).
		Field("entity", req.Entity)
	if len(req.Tags) > 0 {
		tags, err := json.Marshal(req.Tags)
		if err != nil {
			return nil, g.failed(ctx, http.MethodPost, common.EndpointReceiptUpload,
				&Error{Kind: KindClient, Message: "receipt tags cannot be encoded", Err: err})
		}
		form.Field("tags", string(tags))
	}
	if req.Notes != "" {
		form.Field("notes", req.Notes)
	}

	var headers map[string]string
	if req.IdempotencyKey != "" {
		headers = map[string]string{common.HeaderIdempotencyKey: req.IdempotencyKey}
	}

	raw, err := g.Request(ctx, common.EndpointReceiptUpload, RequestOptions{
		Method:  http.MethodPost,
		Body:    form,
		Headers: headers,
	})
	if err != nil {
		return nil, err
	}

	rec, err := NormalizeReceipt(raw)
	if err != nil {
		return nil, &Error{Kind: KindServer, Message: msgBadResponse, Err: err}
	}
	if rec == nil {
		rec = &models.ReceiptRecord{}
	}
	return rec, nil
}

// UpdateReceipt applies a partial update to an existing receipt.
func (g *Gateway) UpdateReceipt(ctx context.Context, id string, patch models.ReceiptPatch) error {
	_, err := g.Request(ctx, common.EndpointReceipts+"/"+url.PathEscape(id), RequestOptions{
		Method: http.MethodPatch,
		Body:   patch,
	})
	return err
}

// ListReceipts fetches the user's receipts.
func (g *Gateway) ListReceipts(ctx context.Context) ([]models.ReceiptRecord, error) {
	raw, err := g.Request(ctx, common.EndpointReceipts, RequestOptions{})
	if err != nil {
		return nil, err
	}
	recs, err := NormalizeReceipts(raw)
	if err != nil {
		return nil, &Error{Kind: KindServer, Message: msgBadResponse, Err: err}
	}
	return recs, nil
}

// Ping checks that the backend is reachable.
func (g *Gateway) Ping(ctx context.Context) error {
	_, err := g.Request(ctx, common.EndpointHealth, RequestOptions{})
	return err
}
