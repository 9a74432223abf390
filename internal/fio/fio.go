// Package fio provides the low-level positioned-I/O primitives the
// editor is built on: moving, zeroing and copying byte ranges of open
// files, and power-of-two alignment math. All functions operate via
// ReadAt/WriteAt on the file's descriptor; nothing is memory-mapped.
package fio

import (
	"fmt"
	"os"
)

const chunkSize = 1 << 20

// Move copies n bytes within f from offset src to offset dst. The
// ranges may overlap in either direction: when moving toward lower
// offsets the copy walks forward, when moving toward higher offsets it
// walks backward, so no source byte is clobbered before it is read.
func Move(f *os.File, dst, src, n int64) error {
	if dst == src || n == 0 {
		return nil
	}
	buf := make([]byte, min64(n, chunkSize))
	if dst < src {
		for done := int64(0); done < n; {
			c := min64(n-done, chunkSize)
			if _, err := f.ReadAt(buf[:c], src+done); err != nil {
				return fmt.Errorf("move: read %d bytes at %#x: %w", c, src+done, err)
			}
			if _, err := f.WriteAt(buf[:c], dst+done); err != nil {
				return fmt.Errorf("move: write %d bytes at %#x: %w", c, dst+done, err)
			}
			done += c
		}
		return nil
	}
	for left := n; left > 0; {
		c := min64(left, chunkSize)
		left -= c
		if _, err := f.ReadAt(buf[:c], src+left); err != nil {
			return fmt.Errorf("move: read %d bytes at %#x: %w", c, src+left, err)
		}
		if _, err := f.WriteAt(buf[:c], dst+left); err != nil {
			return fmt.Errorf("move: write %d bytes at %#x: %w", c, dst+left, err)
		}
	}
	return nil
}

// Zero overwrites n bytes of f starting at off with zero bytes.
func Zero(f *os.File, off, n int64) error {
	if n <= 0 {
		return nil
	}
	buf := make([]byte, min64(n, chunkSize))
	for done := int64(0); done < n; {
		c := min64(n-done, chunkSize)
		if _, err := f.WriteAt(buf[:c], off+done); err != nil {
			return fmt.Errorf("zero: write %d bytes at %#x: %w", c, off+done, err)
		}
		done += c
	}
	return nil
}

// Copy copies n bytes from src at srcOff into dst at dstOff. The two
// files must be distinct; overlap handling is Move's job.
func Copy(dst *os.File, dstOff int64, src *os.File, srcOff, n int64) error {
	buf := make([]byte, min64(n, chunkSize))
	for done := int64(0); done < n; {
		c := min64(n-done, chunkSize)
		if _, err := src.ReadAt(buf[:c], srcOff+done); err != nil {
			return fmt.Errorf("copy: read %d bytes at %#x: %w", c, srcOff+done, err)
		}
		if _, err := dst.WriteAt(buf[:c], dstOff+done); err != nil {
			return fmt.Errorf("copy: write %d bytes at %#x: %w", c, dstOff+done, err)
		}
		done += c
	}
	return nil
}

// RoundUp rounds x up to the next multiple of align, which must be a
// power of two.
func RoundUp(x, align uint64) uint64 {
	return (x + align - 1) &^ (align - 1)
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
