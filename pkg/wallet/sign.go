package wallet

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// SignHashOpts is the struct given to the SignHash method
type SignHashOpts struct {
	PrivKey []byte
	Hash    []byte
}

func (o SignHashOpts) validate() error {
	if len(o.PrivKey) <= 0 {
		return ErrNullPrivKey
	}
	if len(o.Hash) <= 0 {
		return ErrNullSigHash
	}
	return nil
}

// SignHash produces a DER encoded ECDSA signature of the provided hash and
// verifies it against the derived public key before returning it.
func SignHash(opts SignHashOpts) ([]byte, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	privKey, pubKey := btcec.PrivKeyFromBytes(opts.PrivKey)
	signature := ecdsa.Sign(privKey, opts.Hash)
	if !signature.Verify(opts.Hash, pubKey) {
		return nil, ErrInvalidSignature
	}
	return signature.Serialize(), nil
}

// VerifySignatureOpts is the struct given to the VerifySignature method
type VerifySignatureOpts struct {
	PubKey    []byte
	Hash      []byte
	Signature []byte
}

func (o VerifySignatureOpts) validate() error {
	if len(o.PubKey) <= 0 {
		return ErrNullPubKey
	}
	if len(o.Hash) <= 0 {
		return ErrNullSigHash
	}
	if len(o.Signature) <= 0 {
		return ErrInvalidSignature
	}
	return nil
}

// VerifySignature reports whether a DER encoded signature matches the
// provided hash and compressed public key.
func VerifySignature(opts VerifySignatureOpts) bool {
	if err := opts.validate(); err != nil {
		return false
	}

	pubKey, err := btcec.ParsePubKey(opts.PubKey)
	if err != nil {
		return false
	}
	signature, err := ecdsa.ParseDERSignature(opts.Signature)
	if err != nil {
		return false
	}
	return signature.Verify(opts.Hash, pubKey)
}
