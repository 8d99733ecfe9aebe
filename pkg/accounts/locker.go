package accounts

import (
	"github.com/gagliardetto/solana-go"
	cmap "github.com/orcaman/concurrent-map/v2"
)

// Locker grants exclusive use of a record for the duration of one call.
type Locker struct {
	held cmap.ConcurrentMap[solana.PublicKey, struct{}]
}

func NewLocker() *Locker {
	return &Locker{held: cmap.NewStringer[solana.PublicKey, struct{}]()}
}

// TryLock returns false if another call already holds the record.
func (l *Locker) TryLock(pubkey solana.PublicKey) bool {
	return l.held.SetIfAbsent(pubkey, struct{}{})
}

func (l *Locker) Unlock(pubkey solana.PublicKey) {
	l.held.Remove(pubkey)
}
