package crypto

import (
	"crypto/subtle"
	"runtime"
)

// SecureWipe overwrites a byte slice holding sensitive data with zeros. It
// returns ErrNilData if the slice is nil.
func SecureWipe(data []byte) error {
	if data == nil {
		return ErrNilData
	}

	zeros := make([]byte, len(data))
	subtle.ConstantTimeCompare(data, zeros)
	copy(data, zeros)

	runtime.KeepAlive(data)
	runtime.KeepAlive(zeros)

	return nil
}

// ZeroBytes is SecureWipe without the error.
func ZeroBytes(data []byte) {
	_ = SecureWipe(data)
}
