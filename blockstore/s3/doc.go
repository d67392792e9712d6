// Package s3 provides a blockstore.Store backed by Amazon S3.
//
// The layout matches the minio store: one object per block under a root
// prefix, encoded with a blockstore.Codec. Missing objects read as zeros.
//
// The store talks to S3 through the narrow Client interface, which
// *s3.Client satisfies:
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "volumes/disk0")
package s3
