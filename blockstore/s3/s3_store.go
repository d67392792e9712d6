package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/hupe1980/blockcache/blockstore"
)

// Client is the subset of the S3 API the store uses.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ Client = (*s3.Client)(nil)

// Options configures a Store.
type Options struct {
	// BlockSize is the size of one block. Defaults to blockstore.DefaultBlockSize.
	BlockSize int
	// NumBlocks bounds the addressable range; 0 means unbounded.
	NumBlocks uint64
	// Codec encodes blocks at rest. Defaults to blockstore.CodecNone.
	Codec blockstore.Codec
}

// Store implements blockstore.Store for S3.
type Store struct {
	client Client
	bucket string
	prefix string
	opts   Options
}

// NewStore creates a new S3 block store.
// rootPrefix is prepended to all keys (e.g. "volumes/disk0/").
func NewStore(client Client, bucket, rootPrefix string, optFns ...func(o *Options)) *Store {
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

	resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			clear(p)
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
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
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key(id)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/octet-stream"),
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

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode() == "NoSuchKey" || ae.ErrorCode() == "NotFound"
	}
	return false
}
