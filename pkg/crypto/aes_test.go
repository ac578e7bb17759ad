package crypto

import (
	"errors"
	"strings"
	"testing"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestEncryptRoundTrip(t *testing.T) {
	key, err := KeyFromHex(testKey)
	if err != nil {
		t.Fatalf("KeyFromHex: %v", err)
	}
	owner := []byte("member-1")

	sealed, err := Encrypt(key, "KR12-3456-7890", owner)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(sealed, "3456") {
		t.Fatal("ciphertext leaks plaintext")
	}

	got, err := Decrypt(key, sealed, owner)
	if err != nil || got != "KR12-3456-7890" {
		t.Fatalf("Decrypt = %q, %v", got, err)
	}

	if _, err := Decrypt(key, sealed, []byte("member-2")); err == nil {
		t.Fatal("ciphertext opened under another owner")
	}
}

func TestCryptoErrors(t *testing.T) {
	if _, err := KeyFromHex("abcd"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key: err = %v", err)
	}
	if _, err := KeyFromHex("zz"); err == nil {
		t.Error("bad hex: expected error")
	}
	if _, err := Encrypt([]byte("short"), "x", nil); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Encrypt short key: err = %v", err)
	}
	key, _ := KeyFromHex(testKey)
	if _, err := Decrypt(key, "AAAA", nil); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("Decrypt short input: err = %v", err)
	}
}
