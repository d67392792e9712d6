package blockstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/blockcache/internal/fs"
	"github.com/hupe1980/blockcache/internal/mem"
)

// minDirectBlockSize is the smallest logical sector size direct I/O accepts.
const minDirectBlockSize = 512

// FileOptions configures a FileStore.
type FileOptions struct {
	// BlockSize is the size of one block. Defaults to DefaultBlockSize.
	BlockSize int
	// NumBlocks bounds the addressable range. If 0 it is derived from the
	// file size at open time.
	NumBlocks uint64
	// Direct bypasses the OS page cache (O_DIRECT on Linux, F_NOCACHE on
	// macOS). BlockSize must then be a multiple of 512.
	Direct bool
	// FS is the filesystem used to open the file. Defaults to fs.Default.
	FS fs.FileSystem
}

// FileStore is a Store over a flat file of fixed-size blocks.
type FileStore struct {
	f         fs.File
	path      string
	blockSize int
	numBlocks uint64
	direct    bool

	// bufs holds block-aligned scratch buffers for direct I/O.
	bufs   sync.Pool
	closed atomic.Bool
}

// OpenFile opens an existing block file.
func OpenFile(path string, optFns ...func(o *FileOptions)) (*FileStore, error) {
	opts := FileOptions{
		BlockSize: DefaultBlockSize,
		FS:        fs.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.BlockSize <= 0 {
		return nil, fmt.Errorf("blockstore: invalid block size %d", opts.BlockSize)
	}
	if opts.Direct && opts.BlockSize%minDirectBlockSize != 0 {
		return nil, fmt.Errorf("blockstore: direct I/O needs a block size multiple of %d, got %d", minDirectBlockSize, opts.BlockSize)
	}

	flag := os.O_RDWR
	if opts.Direct {
		flag |= directFlag
	}
	f, err := opts.FS.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	if opts.Direct {
		if err := setNoCache(f); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	numBlocks := opts.NumBlocks
	if numBlocks == 0 {
		info, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		numBlocks = uint64(info.Size()) / uint64(opts.BlockSize)
		if numBlocks == 0 {
			_ = f.Close()
			return nil, fmt.Errorf("blockstore: %s holds no complete block", path)
		}
	}

	s := &FileStore{
		f:         f,
		path:      path,
		blockSize: opts.BlockSize,
		numBlocks: numBlocks,
		direct:    opts.Direct,
	}
	s.bufs.New = func() any {
		b := mem.AllocAligned(s.blockSize)
		return &b
	}
	return s, nil
}

// Format creates (or truncates) path as a zero-filled file of numBlocks
// blocks of blockSize bytes.
func Format(path string, numBlocks uint64, blockSize int, fsys fs.FileSystem) error {
	if fsys == nil {
		fsys = fs.Default
	}
	if numBlocks == 0 || blockSize <= 0 {
		return errors.New("blockstore: format needs at least one block")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := fsys.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := fsys.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return fsys.Truncate(path, int64(numBlocks)*int64(blockSize))
}

// BlockSize implements Store.
func (s *FileStore) BlockSize() int { return s.blockSize }

// NumBlocks returns the number of addressable blocks.
func (s *FileStore) NumBlocks() uint64 { return s.numBlocks }

// Path returns the file path the store was opened with.
func (s *FileStore) Path() string { return s.path }

// ReadBlock implements Store.
func (s *FileStore) ReadBlock(ctx context.Context, id BlockID, p []byte) error {
	if err := s.check(ctx, id, p); err != nil {
		return err
	}

	buf, release := s.ioBuffer(p)
	defer release()

	n, err := s.f.ReadAt(buf, s.offset(id))
	if n == len(buf) {
		err = nil
	} else if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return fmt.Errorf("read block %d: %w", id, err)
	}
	if &buf[0] != &p[0] {
		copy(p, buf)
	}
	return nil
}

// WriteBlock implements Store.
func (s *FileStore) WriteBlock(ctx context.Context, id BlockID, p []byte) error {
	if err := s.check(ctx, id, p); err != nil {
		return err
	}

	buf, release := s.ioBuffer(p)
	defer release()
	if &buf[0] != &p[0] {
		copy(buf, p)
	}

	n, err := s.f.WriteAt(buf, s.offset(id))
	if err == nil && n != len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("write block %d: %w", id, err)
	}
	return nil
}

// Sync forces written blocks to stable storage.
func (s *FileStore) Sync() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return datasync(s.f)
}

// Close implements Store.
func (s *FileStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.f.Close()
}

func (s *FileStore) check(ctx context.Context, id BlockID, p []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	if err := checkBlock(p, s.blockSize); err != nil {
		return err
	}
	return checkRange(id, s.numBlocks)
}

func (s *FileStore) offset(id BlockID) int64 {
	return int64(id) * int64(s.blockSize)
}

// ioBuffer returns p itself when it can be handed to the kernel as is, and
// an aligned scratch buffer otherwise.
func (s *FileStore) ioBuffer(p []byte) ([]byte, func()) {
	if !s.direct || mem.IsAligned(p, mem.DirectIOAlignment) {
		return p, func() {}
	}
	bp := s.bufs.Get().(*[]byte)
	return *bp, func() { s.bufs.Put(bp) }
}
