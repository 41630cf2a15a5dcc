// Package cli provides the interactive snaptrack command-line client.
//
// It wires configuration, local storage, the backend gateway, the upload
// queue and an interactive REPL. Typical flow: unlock the saved session with
// a PIN, start a background connectivity watcher that drains the upload
// queue whenever the backend becomes reachable, and execute user commands.
//
// Key features:
//   - Login / Logout (tokens sealed at rest under the PIN)
//   - Add receipts to the offline upload queue
//   - List pending and failed uploads, requeue or discard failed ones
//   - Sync the queue on demand
//   - Spending statistics over a date range
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
