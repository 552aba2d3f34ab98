// Package signer is the boundary to the external APK signer and verifier.
// All cryptography lives on the far side of these interfaces; the pipeline
// only moves digest payloads and signed artifacts between them.
package signer

import (
	"context"

	"github.com/cafebazaar/bundlesigner/internal/models"
)

// Options carries the per-run parameters the external signer needs
type Options struct {
	Credentials []models.SignerCredentials
	Flags       models.SchemeFlags

	MinSdkVersion          int
	MinSdkVersionSpecified bool
	DebuggableApkPermitted bool
}

// Signer computes scheme-specific pre-signature content digests and embeds
// previously computed digest payloads back into APKs.
//
// A digest payload is an opaque single line of text. Its internal structure
// belongs to the external signer; this tool only guarantees it reaches the
// signature-application phase attached to the right variant.
type Signer interface {
	// SignV1 computes the v1 (JAR) digest payload for an unsigned APK
	SignV1(ctx context.Context, apkPath string, opts Options) (string, error)

	// EmbedV1 embeds a v1 digest payload into apkPath, writing outPath
	EmbedV1(ctx context.Context, apkPath, payload, outPath string) error

	// SignV2V3 computes the v2/v3 digest payload from a v1-signed APK
	SignV2V3(ctx context.Context, apkPath string, opts Options) (string, error)

	// EmbedV2V3 embeds a v2/v3 digest payload into a v1-signed APK,
	// writing outPath
	EmbedV2V3(ctx context.Context, apkPath, payload, outPath string, flags models.SchemeFlags) error
}

// Verifier checks whether an APK's signatures are expected to verify on
// device. It owns all reporting; Verify returns nil when the APK verifies
// (and warnings were acceptable) and a typed error otherwise.
type Verifier interface {
	Verify(ctx context.Context, cfg models.VerifyConfig) error
}
