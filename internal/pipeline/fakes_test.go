package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/cafebazaar/bundlesigner/internal/models"
	"github.com/cafebazaar/bundlesigner/internal/signer"
)

// testSigner stands in for the external signer. Digest payloads are derived
// from file content, so the two phases, walking independently rebuilt
// archives with identical content, agree on them; embedding appends a marker
// that tests can assert on.
type testSigner struct {
	t *testing.T
}

func fileDigest(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8]), nil
}

func (s testSigner) SignV1(ctx context.Context, apkPath string, opts signer.Options) (string, error) {
	d, err := fileDigest(apkPath)
	if err != nil {
		return "", err
	}
	return "v1-" + d, nil
}

func (s testSigner) EmbedV1(ctx context.Context, apkPath, payload, outPath string) error {
	return embed(apkPath, outPath, "|V1["+payload+"]")
}

func (s testSigner) SignV2V3(ctx context.Context, apkPath string, opts signer.Options) (string, error) {
	d, err := fileDigest(apkPath)
	if err != nil {
		return "", err
	}
	return "v2v3-" + d, nil
}

func (s testSigner) EmbedV2V3(ctx context.Context, apkPath, payload, outPath string, flags models.SchemeFlags) error {
	return embed(apkPath, outPath, "|V2V3["+payload+"]")
}

func embed(apkPath, outPath, marker string) error {
	data, err := os.ReadFile(apkPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(outPath, append(data, marker...), 0644)
}

// recordingSigner additionally records the scheme flags every EmbedV2V3
// call received
type recordingSigner struct {
	testSigner
	embedV2V3Flags []models.SchemeFlags
}

func (s *recordingSigner) EmbedV2V3(ctx context.Context, apkPath, payload, outPath string, flags models.SchemeFlags) error {
	s.embedV2V3Flags = append(s.embedV2V3Flags, flags)
	return s.testSigner.EmbedV2V3(ctx, apkPath, payload, outPath, flags)
}
