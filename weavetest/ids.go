package weavetest

import (
	"crypto/rand"
	"encoding/binary"
	"testing"

	"github.com/iov-one/flowtree"
)

// NewCondition returns a condition that was never returned before. Its
// address identifies a distinct actor: a node manager, a voter or a
// recipient.
func NewCondition() flowtree.Condition {
	seed := make([]byte, 16)
	if _, err := rand.Read(seed); err != nil {
		panic(err)
	}
	return flowtree.NewCondition("test", "actor", seed)
}

// RandomAddr returns a valid address that no condition maps to.
func RandomAddr(t testing.TB) flowtree.Address {
	t.Helper()
	addr := make(flowtree.Address, flowtree.AddressLength)
	if _, err := rand.Read(addr); err != nil {
		t.Fatalf("cannot read random bytes: %s", err)
	}
	if err := addr.Validate(); err != nil {
		t.Fatalf("invalid random address: %s", err)
	}
	return addr
}

// SequenceID is the n-th key produced by an orm sequence.
func SequenceID(n uint64) []byte {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], n)
	return id[:]
}
