package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// SRTPMasterKeyLength is the AES-128 master key length.
	SRTPMasterKeyLength = 16
	// SRTPMasterSaltLength is the SRTP master salt length.
	SRTPMasterSaltLength = 14
)

var srtpKeyInfo = []byte("callcore srtp master key")

// SRTPKeys holds the SRTP master key material for one connection. Both ends
// of a connection derive the same value.
type SRTPKeys struct {
	MasterKey  [SRTPMasterKeyLength]byte
	MasterSalt [SRTPMasterSaltLength]byte
}

// Wipe erases the key material.
func (k *SRTPKeys) Wipe() {
	ZeroBytes(k.MasterKey[:])
	ZeroBytes(k.MasterSalt[:])
}

// DeriveSRTPKeys agrees on SRTP master keys with a remote device using X25519
// and HKDF-SHA256. The call id salts the derivation so the same key pairs
// never produce the same keys for two calls.
func DeriveSRTPKeys(local *KeyPair, remotePublic [32]byte, callID uint64) (*SRTPKeys, error) {
	if local == nil {
		return nil, ErrNilKeyPair
	}

	shared, err := curve25519.X25519(local.Private[:], remotePublic[:])
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function":        "DeriveSRTPKeys",
			"peer_key_prefix": fmt.Sprintf("%x", remotePublic[:8]),
			"error":           err.Error(),
		}).Error("X25519 computation failed")
		return nil, fmt.Errorf("failed to compute shared secret: %w", err)
	}
	defer ZeroBytes(shared)

	var salt [8]byte
	binary.BigEndian.PutUint64(salt[:], callID)

	// Both sides must feed the public keys in the same order.
	info := make([]byte, 0, len(srtpKeyInfo)+64)
	info = append(info, srtpKeyInfo...)
	if bytes.Compare(local.Public[:], remotePublic[:]) < 0 {
		info = append(append(info, local.Public[:]...), remotePublic[:]...)
	} else {
		info = append(append(info, remotePublic[:]...), local.Public[:]...)
	}

	keys := &SRTPKeys{}
	reader := hkdf.New(sha256.New, shared, salt[:], info)
	if _, err := io.ReadFull(reader, keys.MasterKey[:]); err != nil {
		return nil, fmt.Errorf("failed to derive master key: %w", err)
	}
	if _, err := io.ReadFull(reader, keys.MasterSalt[:]); err != nil {
		keys.Wipe()
		return nil, fmt.Errorf("failed to derive master salt: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":        "DeriveSRTPKeys",
		"peer_key_prefix": fmt.Sprintf("%x", remotePublic[:8]),
	}).Debug("Derived SRTP master keys")

	return keys, nil
}
