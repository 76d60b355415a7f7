package backend

import (
	"github.com/gagliardetto/solana-go"
)

// Wallets holds the payer keys transactions are signed with.
type Wallets struct {
	keys map[solana.PublicKey]solana.PrivateKey
	list []solana.PublicKey
}

func NewWallets(keys []solana.PrivateKey) *Wallets {
	w := &Wallets{keys: make(map[solana.PublicKey]solana.PrivateKey, len(keys))}
	for _, key := range keys {
		w.Import(key)
	}
	return w
}

func (w *Wallets) Import(key solana.PrivateKey) {
	pub := key.PublicKey()
	if _, ok := w.keys[pub]; !ok {
		w.list = append(w.list, pub)
	}
	w.keys[pub] = key
}

// Get is a solana.Transaction signer lookup.
func (w *Wallets) Get(pub solana.PublicKey) *solana.PrivateKey {
	key, ok := w.keys[pub]
	if !ok {
		return nil
	}
	return &key
}

func (w *Wallets) PublicKeys() []solana.PublicKey {
	return append([]solana.PublicKey(nil), w.list...)
}
