//go:build unix

package logicaltree

import (
	"os"
	"syscall"
)

func fileInoOf(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return st.Ino
	}
	return 0
}
