package crypto

import "errors"

var (
	// ErrNilKeyPair indicates a key derivation without a local key pair.
	ErrNilKeyPair = errors.New("nil key pair")
	// ErrNilCertificate indicates an operation on an empty certificate.
	ErrNilCertificate = errors.New("nil certificate")
	// ErrInvalidPEM indicates PEM input that does not hold a certificate and key.
	ErrInvalidPEM = errors.New("invalid PEM data")
	// ErrNilData indicates an attempt to wipe a nil slice.
	ErrNilData = errors.New("cannot wipe nil data")
)
