// Package gateway is the single entry point for calls to the SnapTrack
// backend.
//
// # Overview
//
// A Gateway owns the base URL, the bearer token and the per-request timeout.
// Every call goes through Request, which:
//  1. encodes the body as JSON, or as multipart form data when it is a *Form;
//  2. attaches "Authorization: Bearer <token>" when a token is set;
//  3. cancels the exchange when the configured timeout elapses;
//  4. on a 401 while holding a token, asks the Refresher for a new token once
//     and retries the original request exactly once with it.
//
// Only one refresh runs at a time. A request that gets a 401 while another
// refresh is in flight fails with ErrUnauthorized instead of starting its own.
//
// # Error Handling
//
// Every failure is returned as *Error carrying a Kind, a user-facing message,
// the HTTP status (when a response arrived) and the server's error code.
// Match kinds with errors.Is against ErrTimeout, ErrNetwork, ErrUnauthorized,
// ErrServer and ErrClient, or use KindOf and IsRetryable.
//
// # Responses
//
// Request returns the raw JSON body. The receipt helpers (UploadReceipt,
// ListReceipts) pass it through NormalizeReceipt so callers see one fixed
// record shape whatever field names the backend used.
package gateway
