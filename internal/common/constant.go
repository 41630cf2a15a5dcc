// Package common holds the wire and storage names shared by the client
// packages.
package common

// Backend endpoints, relative to the configured server URL.
const (
	EndpointHealth        = "/api/health"
	EndpointReceipts      = "/api/receipts"
	EndpointReceiptUpload = "/api/receipts/upload"
	EndpointEntities      = "/api/entities"
)

// HTTP header names.
const (
	HeaderAuthorization  = "Authorization"
	HeaderContentType    = "Content-Type"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// Keys in the local key-value store.
const (
	KeyUploadQueue   = "upload_queue"
	KeyFailedUploads = "failed_uploads"
	KeySession       = "auth_session"
	KeySessionSalt   = "auth_session_salt"
)
