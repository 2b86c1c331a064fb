// Package crypto provides the per-call key material a call context hands to
// every connection it creates.
//
// A call context owns exactly one Certificate (used as the DTLS identity of
// each peer connection) and one KeyPair (X25519, used to agree on SRTP master
// keys with each remote device). Both are generated fresh for every call and
// wiped when the call context is disposed.
//
// Example:
//
//	cert, err := crypto.GenerateCertificate()
//	if err != nil {
//	    return err
//	}
//	keys, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    return err
//	}
//	srtp, err := crypto.DeriveSRTPKeys(keys, remotePublic, uint64(callID))
package crypto
