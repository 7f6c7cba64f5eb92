// Package signer verifies oracle vote signatures.
//
// Oracles are identified by the lowercase hex encoding of their ed25519
// public key. The registry is fixed at construction time: the composition
// root loads the allowed key set and hands it to the voting use case as a
// SignerVerifier port.
package signer

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownOracle    = errors.New("oracle identity is not registered")
	ErrInvalidSignature = errors.New("signature does not match oracle key")
)

// Registry holds the set of oracle public keys allowed to vote.
type Registry struct {
	mu   sync.RWMutex
	keys map[string]ed25519.PublicKey
}

func NewRegistry() *Registry {
	return &Registry{keys: make(map[string]ed25519.PublicKey)}
}

// Register adds an oracle identity. The identity must be the hex encoding
// of a 32-byte ed25519 public key.
func (r *Registry) Register(identity string) error {
	key, err := hex.DecodeString(identity)
	if err != nil {
		return fmt.Errorf("decode oracle identity: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("oracle identity must encode %d bytes, got %d", ed25519.PublicKeySize, len(key))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[identity] = ed25519.PublicKey(key)
	return nil
}

// Verify reports whether signature is a valid ed25519 signature over
// message by the registered key for identity.
func (r *Registry) Verify(_ context.Context, identity string, message []byte, signature []byte) (bool, error) {
	r.mu.RLock()
	key, ok := r.keys[identity]
	r.mu.RUnlock()
	if !ok {
		return false, ErrUnknownOracle
	}
	if len(signature) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(key, message, signature), nil
}
