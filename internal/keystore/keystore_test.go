package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"software.sslmate.com/src/go-pkcs12"
)

func TestWriteDisposable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ks", "default.keystore")
	if err := WriteDisposable(path); err != nil {
		t.Fatalf("WriteDisposable failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Keystore unreadable: %v", err)
	}

	key, cert, err := pkcs12.Decode(data, DefaultPassword)
	if err != nil {
		t.Fatalf("Keystore does not decode with the fixed password: %v", err)
	}
	if key == nil {
		t.Error("Decoded keystore has no private key")
	}
	if cert == nil {
		t.Fatal("Decoded keystore has no certificate")
	}
	if cert.Subject.CommonName != "bundlesigner intermediate" {
		t.Errorf("Unexpected certificate subject: %s", cert.Subject.CommonName)
	}
}

func TestWriteDisposableGeneratesFreshKeys(t *testing.T) {
	dir := t.TempDir()
	p1 := filepath.Join(dir, "a.keystore")
	p2 := filepath.Join(dir, "b.keystore")
	if err := WriteDisposable(p1); err != nil {
		t.Fatalf("WriteDisposable failed: %v", err)
	}
	if err := WriteDisposable(p2); err != nil {
		t.Fatalf("WriteDisposable failed: %v", err)
	}

	d1, _ := os.ReadFile(p1)
	d2, _ := os.ReadFile(p2)
	_, c1, err := pkcs12.Decode(d1, DefaultPassword)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	_, c2, err := pkcs12.Decode(d2, DefaultPassword)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if c1.SerialNumber.Cmp(c2.SerialNumber) == 0 {
		t.Error("Two disposable keystores share a certificate serial")
	}
}
