// Package minio provides a blockstore.Store backed by MinIO or any other
// S3-compatible service reachable through minio-go.
//
// Each block is one object named <prefix>/<16 hex digits>.blk holding the
// block encoded with the configured blockstore.Codec. Objects that do not
// exist read as zero-filled blocks, so a fresh bucket behaves like a freshly
// formatted disk.
package minio
