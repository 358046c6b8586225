package wallet

import (
	"encoding/binary"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
)

// NodeKey is a single node of a BIP32 hierarchy in raw form: the compressed
// public key, the chain code and, for private nodes, the private key, plus
// the positional metadata carried by the extended serialization.
type NodeKey struct {
	PubKey    []byte
	PrivKey   []byte
	ChainCode []byte
	Depth     uint8
	ParentFP  uint32
	ChildNum  uint32
}

// NewMasterKeyOpts is the struct given to the NewMasterKey method
type NewMasterKeyOpts struct {
	Entropy []byte
}

func (o NewMasterKeyOpts) validate() error {
	if len(o.Entropy) <= 0 {
		return ErrNullEntropy
	}
	if len(o.Entropy) < hdkeychain.MinSeedBytes ||
		len(o.Entropy) > hdkeychain.MaxSeedBytes {
		return ErrInvalidEntropySize
	}
	return nil
}

// NewMasterKey derives the root node of a hierarchy from the provided entropy
// with the standard master key generation ("Bitcoin seed" HMAC-SHA512).
func NewMasterKey(opts NewMasterKeyOpts) (*NodeKey, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	masterKey, err := hdkeychain.NewMaster(opts.Entropy, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	return nodeKeyFromExtended(masterKey, 0)
}

// IsPrivate returns whether the node holds private key material.
func (n *NodeKey) IsPrivate() bool {
	return len(n.PrivKey) > 0
}

// Fingerprint returns the first 4 bytes of HASH160 of the node's public key,
// the value children carry as their parent fingerprint.
func (n *NodeKey) Fingerprint() uint32 {
	return binary.BigEndian.Uint32(btcutil.Hash160(n.PubKey)[:4])
}

// DeriveOpts is the struct given to the Derive method
type DeriveOpts struct {
	Index      uint32
	GetPrivate bool
}

// Derive derives the child node at the provided index. Hardened indexes
// require a private parent. When GetPrivate is false the child is neutered
// to public material even if the parent is private.
func (n *NodeKey) Derive(opts DeriveOpts) (*NodeKey, error) {
	hardened := opts.Index >= hdkeychain.HardenedKeyStart
	if hardened && !n.IsPrivate() {
		return nil, ErrNullPrivKey
	}

	wantPrivate := opts.GetPrivate && n.IsPrivate()
	parent, err := n.extendedKey(hardened || wantPrivate)
	if err != nil {
		return nil, err
	}

	child, err := parent.Derive(opts.Index)
	if err != nil {
		if err == hdkeychain.ErrInvalidChild {
			return nil, ErrInvalidDerivation
		}
		return nil, err
	}
	if !wantPrivate && child.IsPrivate() {
		if child, err = child.Neuter(); err != nil {
			return nil, err
		}
	}

	return nodeKeyFromExtended(child, opts.Index)
}

// DerivePath walks the node along the relative path, keeping private material
// when GetPrivate is set, and returns the final node.
func (n *NodeKey) DerivePath(path DerivationPath, getPrivate bool) (*NodeKey, error) {
	node := n
	for _, step := range path {
		child, err := node.Derive(DeriveOpts{Index: step, GetPrivate: getPrivate})
		if err != nil {
			return nil, err
		}
		node = child
	}
	return node, nil
}

// ExtendedKeyOpts is the struct given to the ExtendedKey method
type ExtendedKeyOpts struct {
	Private bool
	Network *chaincfg.Params
}

func (o ExtendedKeyOpts) validate() error {
	if o.Network == nil {
		return ErrNullNetwork
	}
	return nil
}

// ExtendedKey returns the standard 78-byte serialization of the node in
// base58check format (xprv/xpub alike, version bytes from the network).
func (n *NodeKey) ExtendedKey(opts ExtendedKeyOpts) (string, error) {
	if err := opts.validate(); err != nil {
		return "", err
	}
	if opts.Private && !n.IsPrivate() {
		return "", ErrNullPrivKey
	}

	key, err := n.extendedKeyForNet(opts.Private, opts.Network)
	if err != nil {
		return "", err
	}
	return key.String(), nil
}

// NodeKeyFromExtendedOpts is the struct given to the NodeKeyFromExtended method
type NodeKeyFromExtendedOpts struct {
	ExtendedKey string
}

func (o NodeKeyFromExtendedOpts) validate() error {
	if len(o.ExtendedKey) <= 0 {
		return ErrNullExtendedKey
	}
	return nil
}

// NodeKeyFromExtended parses a base58check extended key back into a node.
func NodeKeyFromExtended(opts NodeKeyFromExtendedOpts) (*NodeKey, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	key, err := hdkeychain.NewKeyFromString(opts.ExtendedKey)
	if err != nil {
		return nil, ErrInvalidExtendedKey
	}

	// the child number sits at bytes 9..13 of the 78-byte payload plus the
	// 4-byte checksum
	payload := base58.Decode(opts.ExtendedKey)
	if len(payload) != 82 {
		return nil, ErrInvalidExtendedKey
	}
	childNum := binary.BigEndian.Uint32(payload[9:13])

	return nodeKeyFromExtended(key, childNum)
}

func (n *NodeKey) extendedKey(private bool) (*hdkeychain.ExtendedKey, error) {
	return n.extendedKeyForNet(private, &chaincfg.MainNetParams)
}

func (n *NodeKey) extendedKeyForNet(
	private bool, net *chaincfg.Params,
) (*hdkeychain.ExtendedKey, error) {
	if len(n.ChainCode) <= 0 {
		return nil, ErrNullChainCode
	}

	parentFP := make([]byte, 4)
	binary.BigEndian.PutUint32(parentFP, n.ParentFP)

	if private {
		if !n.IsPrivate() {
			return nil, ErrNullPrivKey
		}
		return hdkeychain.NewExtendedKey(
			net.HDPrivateKeyID[:], n.PrivKey, n.ChainCode, parentFP,
			n.Depth, n.ChildNum, true,
		), nil
	}

	if len(n.PubKey) <= 0 {
		return nil, ErrNullPubKey
	}
	return hdkeychain.NewExtendedKey(
		net.HDPublicKeyID[:], n.PubKey, n.ChainCode, parentFP,
		n.Depth, n.ChildNum, false,
	), nil
}

func nodeKeyFromExtended(
	key *hdkeychain.ExtendedKey, childNum uint32,
) (*NodeKey, error) {
	pubKey, err := key.ECPubKey()
	if err != nil {
		return nil, err
	}

	node := &NodeKey{
		PubKey:    pubKey.SerializeCompressed(),
		ChainCode: key.ChainCode(),
		Depth:     key.Depth(),
		ParentFP:  key.ParentFingerprint(),
		ChildNum:  childNum,
	}
	if key.IsPrivate() {
		privKey, err := key.ECPrivKey()
		if err != nil {
			return nil, err
		}
		node.PrivKey = privKey.Serialize()
	}
	return node, nil
}

// ECPubKey parses the node's compressed public key.
func (n *NodeKey) ECPubKey() (*btcec.PublicKey, error) {
	if len(n.PubKey) <= 0 {
		return nil, ErrNullPubKey
	}
	return btcec.ParsePubKey(n.PubKey)
}

// ECPrivKey parses the node's private key.
func (n *NodeKey) ECPrivKey() (*btcec.PrivateKey, error) {
	if !n.IsPrivate() {
		return nil, ErrNullPrivKey
	}
	privKey, _ := btcec.PrivKeyFromBytes(n.PrivKey)
	return privKey, nil
}

// Zero wipes the private material of the node in place.
func (n *NodeKey) Zero() {
	for i := range n.PrivKey {
		n.PrivKey[i] = 0
	}
	n.PrivKey = nil
}
