//go:build !(linux || darwin || freebsd)

package state

func allocateBlock(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func releaseBlock([]byte) error {
	return nil
}
