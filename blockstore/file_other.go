//go:build !linux && !darwin

package blockstore

import "github.com/hupe1980/blockcache/internal/fs"

const directFlag = 0

func setNoCache(fs.File) error { return nil }

func datasync(f fs.File) error {
	return f.Sync()
}
