// Package fs provides filesystem abstractions for testability and fault injection.
//
// The package defines two key interfaces:
//
//   - [File]: An open file with positional read/write and sync
//   - [FileSystem]: The few filesystem operations the file-backed block store needs
//
// # Implementations
//
//   - [LocalFS]: Production implementation using standard os package
//   - [FaultyFS]: Test utility for fault injection (simulate I/O errors)
//
// # Usage
//
// Production code should use fs.Default (which is [LocalFS]):
//
//	file, err := fs.Default.OpenFile(path, os.O_RDWR, 0644)
//
// Tests can inject [FaultyFS] to make block writes fail:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("disk.img", fs.Fault{FailAfterBytes: 4096})
//	// pass ffs as blockstore.FileOptions.FS
//
// # Design Notes
//
// This package does not take context.Context parameters. Block reads and
// writes against a local file are single syscalls and cannot be interrupted
// once issued.
package fs
