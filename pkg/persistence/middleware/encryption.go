package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/chatflow/pkg/domain"
	"github.com/aretw0/chatflow/pkg/ports"
)

const (
	envelopeStep = "encrypted"
	envelopeKey  = "__encrypted__"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.RemoteStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts snapshots using AES-GCM.
// The stored envelope keeps FlowHash and UpdatedAt in clear so stores can index
// them; answers, messages and the current step are sealed.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.RemoteStore) ports.RemoteStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) SaveState(ctx context.Context, userID string, state *domain.ChatState) error {
	plain, err := domain.EncodeState(state)
	if err != nil {
		return err
	}

	ciphertext, err := encrypt([]byte(plain), m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}

	envelope := domain.NewChatState(envelopeStep)
	envelope.FlowHash = state.FlowHash
	envelope.UpdatedAt = state.UpdatedAt
	envelope.Answers[envelopeKey] = base64.StdEncoding.EncodeToString(ciphertext)

	return m.next.SaveState(ctx, userID, envelope)
}

func (m *encryptionMiddleware) LoadState(ctx context.Context, userID string) (*domain.ChatState, error) {
	envelope, err := m.next.LoadState(ctx, userID)
	if err != nil {
		return nil, err
	}

	encoded, ok := envelope.Answers[envelopeKey].(string)
	if !ok {
		// Fail secure: a configured encryption layer never returns plaintext snapshots.
		return nil, errors.New("state is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt state: %w", err)
	}

	return domain.DecodeState(string(plain))
}

func (m *encryptionMiddleware) DeleteState(ctx context.Context, userID string) error {
	if d, ok := m.next.(ports.RemoteDeleter); ok {
		return d.DeleteState(ctx, userID)
	}
	return errors.ErrUnsupported
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	sealed := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, sealed, nil)
}
