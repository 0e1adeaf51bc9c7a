package keystore

import (
	"path/filepath"
	"testing"

	"github.com/sleipnir-radio/sleipnir/internal/crypto"
	"github.com/sleipnir-radio/sleipnir/internal/logging"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	log := logging.New(logging.Config{Level: "error"})
	path := filepath.Join(t.TempDir(), "keys.db")
	s, err := Open(Config{Path: path}, log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestUpsertAndLookupRoundTrip(t *testing.T) {
	s := openTestStore(t)

	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}

	if err := s.Upsert("n0call", kp.PublicKey()); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Lookup("N0CALL")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.X.Cmp(kp.PublicKey().X) != 0 || got.Y.Cmp(kp.PublicKey().Y) != 0 {
		t.Fatalf("round-tripped public key does not match original")
	}
}

func TestLookupUnknownCallsign(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Lookup("NOBODY"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.Known("NOBODY") {
		t.Fatalf("expected unknown callsign to report Known()=false")
	}
}

func TestUpsertReplacesExistingKey(t *testing.T) {
	s := openTestStore(t)

	kp1, _ := crypto.GenerateKeyPair()
	kp2, _ := crypto.GenerateKeyPair()

	if err := s.Upsert("W1AW", kp1.PublicKey()); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if err := s.Upsert("W1AW", kp2.PublicKey()); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	got, err := s.Lookup("W1AW")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.X.Cmp(kp2.PublicKey().X) != 0 {
		t.Fatalf("expected rotated key to be returned")
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly 1 stored key after rotation, got %d", n)
	}
}
