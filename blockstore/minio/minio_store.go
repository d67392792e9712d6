package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/hupe1980/blockcache/blockstore"
	"github.com/minio/minio-go/v7"
)

// Options configures a Store.
type Options struct {
	// BlockSize is the size of one block. Defaults to blockstore.DefaultBlockSize.
	BlockSize int
	// NumBlocks bounds the addressable range; 0 means unbounded.
	NumBlocks uint64
	// Codec encodes blocks at rest. Defaults to blockstore.CodecNone.
	Codec blockstore.Codec
}

// Store implements blockstore.Store for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
	opts   Options
}

// NewStore creates a new MinIO block store.
// bucket is the MinIO bucket name.
// rootPrefix is prepended to all keys (e.g. "volumes/disk0/").
func NewStore(client *minio.Client, bucket, rootPrefix string, optFns ...func(o *Options)) *Store {
	opts := Options{BlockSize: blockstore.DefaultBlockSize}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: rootPrefix,
		opts:   opts,
	}
}

func (s *Store) key(id blockstore.BlockID) string {
	return path.Join(s.prefix, blockstore.ObjectKey(id))
}

// BlockSize implements blockstore.Store.
func (s *Store) BlockSize() int { return s.opts.BlockSize }

// NumBlocks implements blockstore.Bounded. Zero means unbounded.
func (s *Store) NumBlocks() uint64 { return s.opts.NumBlocks }

// ReadBlock implements blockstore.Store.
func (s *Store) ReadBlock(ctx context.Context, id blockstore.BlockID, p []byte) error {
	if err := s.check(id, p); err != nil {
		return err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, s.key(id), minio.GetObjectOptions{})
	if err != nil {
		return readMiss(err, p)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return readMiss(err, p)
	}
	return s.opts.Codec.Decode(data, p)
}

// WriteBlock implements blockstore.Store.
func (s *Store) WriteBlock(ctx context.Context, id blockstore.BlockID, p []byte) error {
	if err := s.check(id, p); err != nil {
		return err
	}

	data, err := s.opts.Codec.Encode(p)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.key(id), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return err
}

// Close implements blockstore.Store. The client is owned by the caller.
func (s *Store) Close() error { return nil }

func (s *Store) check(id blockstore.BlockID, p []byte) error {
	if len(p) != s.opts.BlockSize {
		return fmt.Errorf("%w: got %d, want %d", blockstore.ErrInvalidBlockSize, len(p), s.opts.BlockSize)
	}
	if s.opts.NumBlocks > 0 && id >= s.opts.NumBlocks {
		return fmt.Errorf("%w: block %d", blockstore.ErrOutOfRange, id)
	}
	return nil
}

// readMiss turns a missing object into a zero block.
func readMiss(err error, p []byte) error {
	if isNotFound(err) {
		clear(p)
		return nil
	}
	return err
}

func isNotFound(err error) bool {
	errResp := minio.ToErrorResponse(err)
	return errResp.Code == "NoSuchKey" || errResp.Code == "NotFound"
}
