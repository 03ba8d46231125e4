// Package remote defines the cloud backend interface consumed by the
// sync coordinator, the JSON wire payload exchanged with it, and the
// HTTP and in-memory adapters.
package remote

import (
	"context"

	"github.com/user/tally/internal/model"
)

// Client is the upload/download primitive against a cloud backend,
// keyed by table identity. Both operations are idempotent and safe to
// retry.
//
// Upload and Download report transport success through ok plus a
// human-readable message. A nil payload with ok=true from Download
// means the remote copy is absent, which is not an error.
//
// Hash is a cheap change probe: it returns a fingerprint of the remote
// copy without transferring the table, or "" when the remote copy is
// absent or the probe fails. The coordinator compares it against the
// remote hash recorded in sync metadata to skip no-op cycles.
type Client interface {
	Upload(ctx context.Context, key model.TableKey, payload *Payload) (ok bool, message string)
	Download(ctx context.Context, key model.TableKey) (ok bool, payload *Payload, message string)
	Hash(ctx context.Context, key model.TableKey) string
}
