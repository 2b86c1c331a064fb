package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"
	"github.com/sirupsen/logrus"
)

// KeyPair is an X25519 key pair generated for one call.
type KeyPair struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateKeyPair creates a new random X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	dh, err := noise.DH25519.GenerateKeypair(rand.Reader)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "GenerateKeyPair",
			"error":    err.Error(),
		}).Error("Key pair generation failed")
		return nil, fmt.Errorf("failed to generate key pair: %w", err)
	}
	defer ZeroBytes(dh.Private)

	if len(dh.Public) != 32 || len(dh.Private) != 32 {
		return nil, errors.New("unexpected X25519 key length")
	}

	kp := &KeyPair{}
	copy(kp.Public[:], dh.Public)
	copy(kp.Private[:], dh.Private)

	logrus.WithFields(logrus.Fields{
		"function":          "GenerateKeyPair",
		"public_key_prefix": fmt.Sprintf("%x", kp.Public[:8]),
	}).Debug("Generated call key pair")

	return kp, nil
}

// Wipe erases the private half of the key pair.
func (kp *KeyPair) Wipe() {
	if kp == nil {
		return
	}
	ZeroBytes(kp.Private[:])
}
