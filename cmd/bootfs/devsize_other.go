//go:build !linux

package main

// deviceSize is only implemented on Linux.
func deviceSize(path string) (int64, bool) {
	return 0, false
}
