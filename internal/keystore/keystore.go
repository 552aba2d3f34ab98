// Package keystore produces the disposable local keystore that the bundle
// expander signs intermediate APK Sets with. The archives it signs are
// throwaway: their only purpose is to be structurally valid so the real
// digests can be computed from them. The real signing key never appears here.
package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"
	"software.sslmate.com/src/go-pkcs12"

	"github.com/cafebazaar/bundlesigner/internal/utils"
)

// Credentials the expander passes to the bundle tool for the disposable
// keystore. Fixed values, matching what the tool expects on its command line.
const (
	DefaultAlias    = "default"
	DefaultPassword = "defaultpass"
)

const keyBits = 2048

// WriteDisposable generates a fresh RSA key with a self-signed certificate
// and writes them as a PKCS#12 keystore to path
func WriteDisposable(path string) error {
	key, err := rsa.GenerateKey(rand.Reader, keyBits)
	if err != nil {
		return fmt.Errorf("failed to generate keystore key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("failed to generate certificate serial: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "bundlesigner intermediate",
			Organization: []string{"bundlesigner"},
		},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.AddDate(30, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("failed to self-sign keystore certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return fmt.Errorf("failed to parse keystore certificate: %w", err)
	}

	pfx, err := pkcs12.Modern.Encode(key, cert, nil, DefaultPassword)
	if err != nil {
		return fmt.Errorf("failed to encode keystore: %w", err)
	}

	if err := utils.WriteFile(path, pfx, 0600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}

	logrus.Debugf("Disposable keystore written to %s", path)
	return nil
}
