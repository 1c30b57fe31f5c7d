package security

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/fastygo/schoolerp/domain"
)

// Ciphertext layout: one byte of key size, the GCM nonce, then the sealed payload, base64 encoded.
// Decrypt takes the key size from the first byte, not from the current standard.

func keySize(standard string) (int, error) {
	switch standard {
	case domain.EncryptionAES128:
		return 16, nil
	case domain.EncryptionAES256, "":
		return 32, nil
	default:
		return 0, domain.ErrUnsupportedCipher
	}
}

func (uc *UseCase) tenantAEAD(tenantID string, size int) (cipher.AEAD, error) {
	if len(uc.cfg.MasterKey) == 0 {
		return nil, domain.NewError(domain.ErrCodeInternal, "encryption master key is not configured")
	}
	key := make([]byte, size)
	kdf := hkdf.New(sha256.New, uc.cfg.MasterKey, []byte(tenantID), []byte("schoolerp/tenant-data"))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "derive tenant key", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "init cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "init gcm", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext with the tenant key sized by the configured encryption standard.
func (uc *UseCase) Encrypt(ctx context.Context, tenantID, plaintext string) (string, error) {
	cfg, _, err := uc.securityConfig(ctx, tenantID)
	if err != nil {
		return "", err
	}
	size, err := keySize(cfg.Encryption.Standard)
	if err != nil {
		return "", err
	}
	aead, err := uc.tenantAEAD(tenantID, size)
	if err != nil {
		return "", err
	}

	buf := make([]byte, 1+aead.NonceSize(), 1+aead.NonceSize()+len(plaintext)+aead.Overhead())
	buf[0] = byte(size)
	if _, err := io.ReadFull(rand.Reader, buf[1:]); err != nil {
		return "", domain.WrapError(domain.ErrCodeInternal, "generate nonce", err)
	}
	sealed := aead.Seal(buf, buf[1:], []byte(plaintext), []byte(tenantID))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt for the same tenant.
func (uc *UseCase) Decrypt(ctx context.Context, tenantID, ciphertext string) (string, error) {
	cfg, _, err := uc.securityConfig(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if _, err := keySize(cfg.Encryption.Standard); err != nil {
		return "", err
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil || len(raw) == 0 {
		return "", domain.ErrCiphertextInvalid
	}
	size := int(raw[0])
	if size != 16 && size != 32 {
		return "", domain.ErrCiphertextInvalid
	}
	aead, err := uc.tenantAEAD(tenantID, size)
	if err != nil {
		return "", err
	}
	body := raw[1:]
	if len(body) < aead.NonceSize() {
		return "", domain.ErrCiphertextInvalid
	}
	nonce, sealed := body[:aead.NonceSize()], body[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, []byte(tenantID))
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeInvalid, domain.ErrCiphertextInvalid.Message, errors.New("authentication failed"))
	}
	return string(plain), nil
}
