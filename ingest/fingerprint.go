package ingest

import (
	"crypto/md5"
	"encoding/hex"
)

// Fingerprint computes the content digest used as the deduplication key.
// It hashes the raw image bytes only, so the digest is deterministic for
// byte-identical inputs and insensitive to filename or source folder.
// Perceptual similarity is deliberately not considered; two re-encodes of
// the same photo are distinct images to this pipeline.
func Fingerprint(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
