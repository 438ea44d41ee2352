// Package remote shares a library cache through an OCI registry.
//
// A cache is published as one image. Libraries are grouped by shard, shards
// are packed into zstd-compressed layers of a few megabytes, and the image
// config records which layer holds which shard together with a fingerprint
// of the shard's contents. Pulling downloads only the layers whose shards
// differ from what the local cache already holds.
package remote

import (
	"context"
	"io"
	"iter"

	"github.com/aweris/thinjar/internal/digest"
)

// Target receives pulled libraries. It must accept concurrent Puts.
type Target interface {
	Put(ctx context.Context, addr digest.Address, r io.Reader) (bool, error)
	Addresses() iter.Seq2[digest.Address, error]
	Stat(addr digest.Address) (int64, bool)
}
