//go:build darwin

package blockstore

import (
	"github.com/hupe1980/blockcache/internal/fs"
	"golang.org/x/sys/unix"
)

const directFlag = 0

func setNoCache(f fs.File) error {
	_, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1)
	return err
}

func datasync(f fs.File) error {
	return f.Sync()
}
