package privacy

import (
	"errors"
	"strings"
	"testing"
)

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c, err := NewFieldCipher(testKey(0x01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	plaintext := "123456789012"
	ciphertext, err := c.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ciphertext == plaintext {
		t.Error("ciphertext equals plaintext")
	}
	if !strings.HasPrefix(ciphertext, "v1:") {
		t.Errorf("ciphertext missing version prefix: %q", ciphertext)
	}

	got, err := c.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != plaintext {
		t.Errorf("round trip = %q, want %q", got, plaintext)
	}
}

func TestEncryptProducesFreshNonce(t *testing.T) {
	c, err := NewFieldCipher(testKey(0x01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, _ := c.Encrypt("123456789012")
	b, _ := c.Encrypt("123456789012")
	if a == b {
		t.Error("two encryptions of the same plaintext are identical")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	c1, _ := NewFieldCipher(testKey(0x01))
	c2, _ := NewFieldCipher(testKey(0x02))

	ciphertext, err := c1.Encrypt("123456789012")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = c2.Decrypt(ciphertext)
	var de *DecryptionError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecryptionError, got %v", err)
	}
}

func TestDecryptCorruptedInput(t *testing.T) {
	c, _ := NewFieldCipher(testKey(0x01))

	var de *DecryptionError
	for _, bad := range []string{"", "garbage", "v1:!!!not-base64!!!", "v1:QQ==", "v9:AAAA"} {
		_, err := c.Decrypt(bad)
		if !errors.As(err, &de) {
			t.Errorf("Decrypt(%q): expected DecryptionError, got %v", bad, err)
		}
	}
}

func TestKeyRotation(t *testing.T) {
	old, _ := NewFieldCipher(testKey(0x01))
	ciphertext, err := old.Encrypt("123456789012")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rotated, err := NewFieldCipherVersion(testKey(0x02), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rotated.AddPreviousKey(testKey(0x01), 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := rotated.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "123456789012" {
		t.Errorf("decrypt after rotation = %q", got)
	}
	if !rotated.NeedsReEncryption(ciphertext) {
		t.Error("old ciphertext not flagged for re-encryption")
	}

	fresh, _ := rotated.Encrypt("123456789012")
	if !strings.HasPrefix(fresh, "v2:") {
		t.Errorf("new ciphertext version prefix = %q", fresh)
	}
	if rotated.NeedsReEncryption(fresh) {
		t.Error("current ciphertext flagged for re-encryption")
	}
}

func TestNewFieldCipherRejectsShortKey(t *testing.T) {
	if _, err := NewFieldCipher([]byte("short")); err == nil {
		t.Error("expected error for short key")
	}
}

func TestNewEphemeralKey(t *testing.T) {
	a, err := NewEphemeralKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := NewEphemeralKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(a) != 32 {
		t.Errorf("key length = %d, want 32", len(a))
	}
	if string(a) == string(b) {
		t.Error("two ephemeral keys are identical")
	}
}
