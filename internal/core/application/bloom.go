package application

import (
	"context"
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/bloom"
	"github.com/btcsuite/btcd/wire"
)

// GetBloomFilter synthesizes the peer-side BIP37 filter over the committed
// state: both hashes of every signing script's output script, every pubkey
// behind them, and the outpoint of every unspent owned output. The filter
// is derived on demand and never cached across writes.
func (s *VaultService) GetBloomFilter(
	ctx context.Context, falsePositiveRate float64, nTweak uint32,
	nFlags wire.BloomUpdateType,
) (*bloom.Filter, error) {
	repoManager, err := s.manager()
	if err != nil {
		return nil, err
	}
	accountRepo := repoManager.AccountRepository()
	txRepo := repoManager.TransactionRepository()

	scripts, err := accountRepo.GetAllSigningScripts(ctx)
	if err != nil {
		return nil, err
	}
	unspent, err := txRepo.GetUnspentTxOuts(ctx)
	if err != nil {
		return nil, err
	}

	elements := uint32(0)
	for _, script := range scripts {
		elements += 2 + uint32(len(script.PubKeys))
	}
	elements += uint32(len(unspent))
	if elements == 0 {
		elements = 1
	}

	filter := bloom.NewFilter(elements, nTweak, falsePositiveRate, nFlags)

	for _, script := range scripts {
		scriptSha := sha256.Sum256(script.TxOutScript)
		filter.Add(btcutil.Hash160(script.TxOutScript))
		filter.Add(scriptSha[:])
		for _, pubKey := range script.PubKeys {
			filter.Add(pubKey)
		}
	}

	for _, out := range unspent {
		tx, err := txRepo.GetTxByID(ctx, out.TxID)
		if err != nil {
			return nil, err
		}
		if len(tx.Hash) <= 0 {
			continue
		}
		hash, err := outPointHash(tx.Hash)
		if err != nil {
			return nil, err
		}
		filter.AddOutPoint(&wire.OutPoint{Hash: hash, Index: out.TxIndex})
	}

	return filter, nil
}
