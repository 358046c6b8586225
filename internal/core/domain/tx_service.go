package domain

import (
	"bytes"
	"crypto/rand"
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/coinvault-network/coinvault-daemon/pkg/wallet"
)

// NewTxFromMsg decomposes a wire transaction into vault entities. The
// returned Tx carries the unsigned hash identity and no hash; callers
// finalize the hash once signing completes.
func NewTxFromMsg(msg *wire.MsgTx, timestamp int64) (*Tx, []*TxIn, []*TxOut, error) {
	if msg == nil || len(msg.TxIn) <= 0 || len(msg.TxOut) <= 0 {
		return nil, nil, nil, ErrInvalidTx
	}

	tx := &Tx{
		UnsignedHash: UnsignedTxHash(msg),
		Version:      msg.Version,
		LockTime:     msg.LockTime,
		Timestamp:    timestamp,
		Status:       TxStatusUnsigned,
	}

	ins := make([]*TxIn, 0, len(msg.TxIn))
	for i, txIn := range msg.TxIn {
		ins = append(ins, &TxIn{
			TxIndex:  uint32(i),
			OutHash:  txIn.PreviousOutPoint.Hash.CloneBytes(),
			OutIndex: txIn.PreviousOutPoint.Index,
			Script:   txIn.SignatureScript,
			Sequence: txIn.Sequence,
		})
	}

	outs := make([]*TxOut, 0, len(msg.TxOut))
	for i, txOut := range msg.TxOut {
		if txOut.Value < 0 {
			return nil, nil, nil, ErrInvalidTx
		}
		outs = append(outs, &TxOut{
			TxIndex: uint32(i),
			Value:   uint64(txOut.Value),
			Script:  txOut.PkScript,
			Status:  TxOutStatusUnspent,
		})
	}

	return tx, ins, outs, nil
}

// ToMsgTx reassembles the wire form of a tracked transaction.
func ToMsgTx(tx *Tx, ins []*TxIn, outs []*TxOut) (*wire.MsgTx, error) {
	msg := wire.NewMsgTx(tx.Version)
	msg.LockTime = tx.LockTime
	for _, in := range ins {
		hash, err := chainhash.NewHash(in.OutHash)
		if err != nil {
			return nil, ErrInvalidTx
		}
		msg.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Hash: *hash, Index: in.OutIndex},
			SignatureScript:  in.Script,
			Sequence:         in.Sequence,
		})
	}
	for _, out := range outs {
		msg.AddTxOut(wire.NewTxOut(int64(out.Value), out.Script))
	}
	return msg, nil
}

// ParseRawTx deserializes raw transaction bytes.
func ParseRawTx(rawTx []byte) (*wire.MsgTx, error) {
	msg := &wire.MsgTx{}
	if err := msg.Deserialize(bytes.NewReader(rawTx)); err != nil {
		return nil, ErrInvalidTx
	}
	return msg, nil
}

// SerializeTx renders the wire bytes of a transaction.
func SerializeTx(msg *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := msg.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnsignedTxHash computes the malleability-stable identity: the double
// SHA256 of the serialization with every input script cleared.
func UnsignedTxHash(msg *wire.MsgTx) []byte {
	stripped := msg.Copy()
	for _, txIn := range stripped.TxIn {
		txIn.SignatureScript = nil
	}
	hash := stripped.TxHash()
	return hash.CloneBytes()
}

// TxHash computes the regular double SHA256 hash of the full serialization.
func TxHash(msg *wire.MsgTx) []byte {
	hash := msg.TxHash()
	return hash.CloneBytes()
}

// SigHashForInput computes the SIGHASH_ALL digest of an input against the
// script it spends: the redeem script for multisig positions, the output
// script itself otherwise.
func SigHashForInput(
	msg *wire.MsgTx, inIndex int, script *SigningScript,
) ([]byte, error) {
	signScript := script.RedeemScript
	if len(signScript) <= 0 {
		signScript = script.TxOutScript
	}
	return txscript.CalcSignatureHash(signScript, txscript.SigHashAll, msg, inIndex)
}

// InputSignatures tracks which pubkey slots of one input's signing script
// already carry a valid signature.
type InputSignatures struct {
	Script *SigningScript
	Sigs   map[int][]byte
}

// ParseInputSignatures inspects a signature script and assigns every valid
// signature push to the pubkey slot it verifies against. Signatures for
// pubkeys outside the signing script are silently skipped.
func ParseInputSignatures(
	script *SigningScript, sigScript, sigHash []byte,
) (*InputSignatures, error) {
	parsed := &InputSignatures{
		Script: script,
		Sigs:   make(map[int][]byte),
	}
	if len(sigScript) <= 0 {
		return parsed, nil
	}

	pushes, err := wallet.ScriptPushes(sigScript)
	if err != nil {
		return nil, ErrInvalidScript
	}
	// drop the trailing redeem script / pubkey push of the template
	if n := len(pushes); n > 0 {
		last := pushes[n-1]
		if bytes.Equal(last, script.RedeemScript) ||
			(len(script.RedeemScript) <= 0 && bytes.Equal(last, script.PubKeys[0])) {
			pushes = pushes[:n-1]
		}
	}

	for _, push := range pushes {
		if len(push) <= 1 {
			continue
		}
		sig := push[:len(push)-1] // strip the sighash type byte
		for slot, pubKey := range script.PubKeys {
			if _, ok := parsed.Sigs[slot]; ok {
				continue
			}
			if wallet.VerifySignature(wallet.VerifySignatureOpts{
				PubKey:    pubKey,
				Hash:      sigHash,
				Signature: sig,
			}) {
				parsed.Sigs[slot] = push
				break
			}
		}
	}
	return parsed, nil
}

// AddSignature stores a signature for the slot holding the given pubkey.
// Unknown pubkeys are skipped, reported by the false return. Once every
// required placeholder is filled further signatures are dropped.
func (is *InputSignatures) AddSignature(pubKey, sigWithHashType []byte) bool {
	for slot, candidate := range is.Script.PubKeys {
		if bytes.Equal(candidate, pubKey) {
			if _, ok := is.Sigs[slot]; !ok && !is.Complete() {
				is.Sigs[slot] = sigWithHashType
			}
			return true
		}
	}
	return false
}

// MissingCount returns how many signature placeholders are still empty.
func (is *InputSignatures) MissingCount() int {
	missing := int(is.Script.MinSigs) - len(is.Sigs)
	if missing < 0 {
		return 0
	}
	return missing
}

// MissingPubKeys returns the pubkeys that have not contributed a signature.
func (is *InputSignatures) MissingPubKeys() [][]byte {
	missing := make([][]byte, 0)
	for slot, pubKey := range is.Script.PubKeys {
		if _, ok := is.Sigs[slot]; !ok {
			missing = append(missing, pubKey)
		}
	}
	return missing
}

// Complete returns whether enough slots are signed.
func (is *InputSignatures) Complete() bool {
	return is.MissingCount() == 0
}

// Assemble rebuilds the signature script: collected signatures in pubkey
// order, padded with placeholders up to the required count, followed by the
// redeem script or the single pubkey.
func (is *InputSignatures) Assemble() ([]byte, error) {
	pushes := make([][]byte, 0, int(is.Script.MinSigs)+1)
	for slot := range is.Script.PubKeys {
		if len(pushes) >= int(is.Script.MinSigs) {
			break
		}
		if sig, ok := is.Sigs[slot]; ok {
			pushes = append(pushes, sig)
		}
	}
	for len(pushes) < int(is.Script.MinSigs) {
		pushes = append(pushes, []byte{})
	}
	if len(is.Script.RedeemScript) > 0 {
		pushes = append(pushes, is.Script.RedeemScript)
	} else {
		pushes = append(pushes, is.Script.PubKeys[0])
	}
	return wallet.AssembleSigScript(pushes)
}

// ShuffleTxIns permutes inputs uniformly at random, reassigning indexes.
// Order freezes once signing starts.
func ShuffleTxIns(ins []*TxIn) {
	shuffle(len(ins), func(i, j int) { ins[i], ins[j] = ins[j], ins[i] })
	for i, in := range ins {
		in.TxIndex = uint32(i)
	}
}

// ShuffleTxOuts permutes outputs uniformly at random, reassigning indexes.
func ShuffleTxOuts(outs []*TxOut) {
	shuffle(len(outs), func(i, j int) { outs[i], outs[j] = outs[j], outs[i] })
	for i, out := range outs {
		out.TxIndex = uint32(i)
	}
}

// ShuffleMsgTx permutes the inputs and outputs of a wire transaction with
// independent uniformly random permutations. Intended before signing; the
// order freezes afterwards.
func ShuffleMsgTx(msg *wire.MsgTx) {
	shuffle(len(msg.TxIn), func(i, j int) {
		msg.TxIn[i], msg.TxIn[j] = msg.TxIn[j], msg.TxIn[i]
	})
	shuffle(len(msg.TxOut), func(i, j int) {
		msg.TxOut[i], msg.TxOut[j] = msg.TxOut[j], msg.TxOut[i]
	})
}

func shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			continue
		}
		swap(i, int(j.Int64()))
	}
}
