package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/docket/pkg/domain"
	"github.com/aretw0/docket/pkg/ports"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey encrypts every saved snapshot. Must be 32 bytes (AES-256).
	ActiveKey []byte

	// FallbackKeys are tried, in order, when the active key cannot open a
	// snapshot. Rotate by moving the old active key here.
	FallbackKeys [][]byte
}

// envelopeKey is the only store key present in an encrypted snapshot.
const envelopeKey = "__encrypted__"

// ErrNotEncrypted is returned when a snapshot without an envelope is loaded
// through the encryption middleware.
var ErrNotEncrypted = errors.New("snapshot is missing encrypted data envelope")

// ErrUndecryptable is returned when no configured key opens a snapshot.
var ErrUndecryptable = errors.New("decryption failed with all available keys")

// keyring holds one AEAD per key, active first.
type keyring []cipher.AEAD

func newKeyring(cfg EncryptionConfig) (keyring, error) {
	keys := append([][]byte{cfg.ActiveKey}, cfg.FallbackKeys...)
	ring := make(keyring, 0, len(keys))
	for i, key := range keys {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		ring = append(ring, gcm)
	}
	return ring, nil
}

// seal encrypts with the active key. The session ID is authenticated data,
// so an envelope copied under another session ID does not open.
func (r keyring) seal(plaintext []byte, sessionID string) ([]byte, error) {
	active := r[0]
	nonce := make([]byte, active.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return active.Seal(nonce, nonce, plaintext, []byte(sessionID)), nil
}

func (r keyring) open(ciphertext []byte, sessionID string) ([]byte, error) {
	for _, aead := range r {
		n := aead.NonceSize()
		if len(ciphertext) < n {
			return nil, errors.New("ciphertext too short")
		}
		if plain, err := aead.Open(nil, ciphertext[:n], ciphertext[n:], []byte(sessionID)); err == nil {
			return plain, nil
		}
	}
	return nil, ErrUndecryptable
}

type encryptionMiddleware struct {
	next ports.SnapshotStore
	keys keyring
}

// NewEncryptionMiddleware encrypts the stores of every snapshot with
// AES-256-GCM, leaving ID and TakenAt readable for listing.
// It panics if a key is not 32 bytes; validate configuration first.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	keys, err := newKeyring(config)
	if err != nil {
		panic(err)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &encryptionMiddleware{next: next, keys: keys}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	plainText, err := json.Marshal(snap.Stores)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	ciphertext, err := m.keys.seal(plainText, sessionID)
	if err != nil {
		return fmt.Errorf("failed to encrypt snapshot: %w", err)
	}

	blob, err := json.Marshal(base64.StdEncoding.EncodeToString(ciphertext))
	if err != nil {
		return err
	}
	return m.next.Save(ctx, sessionID, &domain.Snapshot{
		ID:      snap.ID,
		TakenAt: snap.TakenAt,
		Stores:  map[string]json.RawMessage{envelopeKey: blob},
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	envelope, err := m.next.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Plain snapshots are rejected.
	raw, ok := envelope.Stores[envelopeKey]
	if !ok || len(envelope.Stores) != 1 {
		return nil, ErrNotEncrypted
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("failed to read envelope: %w", err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := m.keys.open(ciphertext, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session %s: %w", sessionID, err)
	}

	stores := make(map[string]json.RawMessage)
	if err := json.Unmarshal(plainText, &stores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted snapshot: %w", err)
	}
	return &domain.Snapshot{ID: envelope.ID, TakenAt: envelope.TakenAt, Stores: stores}, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *encryptionMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
