package backup

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt: %v", err)
	}
	if len(salt1) != saltSize {
		t.Errorf("salt length = %d, want %d", len(salt1), saltSize)
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("generate salt 2: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("two salts should not be equal")
	}
}

func TestDeriveKeyDeterminism(t *testing.T) {
	salt := []byte("1234567890abcdef")

	key1 := DeriveKey("mypassphrase", salt)
	key2 := DeriveKey("mypassphrase", salt)

	if !bytes.Equal(key1, key2) {
		t.Error("same passphrase+salt should produce same key")
	}
	if len(key1) != keySize {
		t.Errorf("key length = %d, want %d", len(key1), keySize)
	}
	if bytes.Equal(key1, DeriveKey("otherpassphrase", salt)) {
		t.Error("different passphrases should produce different keys")
	}
}

func TestEncryptDecrypt(t *testing.T) {
	plaintext := []byte("SQLite format 3\x00 ledger snapshot")

	sealed, err := Encrypt(plaintext, "correct horse battery")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Contains(sealed, plaintext) {
		t.Error("ciphertext should not contain the plaintext")
	}

	got, err := Decrypt(sealed, "correct horse battery")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("decrypted = %q, want %q", got, plaintext)
	}
}

func TestEncryptUsesFreshSalt(t *testing.T) {
	a, _ := Encrypt([]byte("same"), "passphrase-123")
	b, _ := Encrypt([]byte("same"), "passphrase-123")
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("each encryption should use its own salt")
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	sealed, err := Encrypt([]byte("secret ledger"), "right-passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := Decrypt(sealed, "wrong-passphrase"); err == nil {
		t.Error("expected error with wrong passphrase")
	}
}

func TestDecryptTampered(t *testing.T) {
	sealed, _ := Encrypt([]byte("secret ledger"), "right-passphrase")
	sealed[len(sealed)-1] ^= 0xff
	if _, err := Decrypt(sealed, "right-passphrase"); err == nil {
		t.Error("expected error for tampered ciphertext")
	}
}

func TestDecryptTooShort(t *testing.T) {
	_, err := Decrypt([]byte("short"), "pass")
	if !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("err = %v, want ErrCiphertextTooShort", err)
	}
}
