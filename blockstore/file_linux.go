//go:build linux

package blockstore

import (
	"github.com/hupe1980/blockcache/internal/fs"
	"golang.org/x/sys/unix"
)

const directFlag = unix.O_DIRECT

func setNoCache(fs.File) error { return nil }

func datasync(f fs.File) error {
	return unix.Fdatasync(int(f.Fd()))
}
