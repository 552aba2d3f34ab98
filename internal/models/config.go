package models

import "math"

// SchemeFlags is the set of APK signature schemes active for a run. The v1
// (JAR) scheme is always applied and has no flag; v2 and v3 are recorded and
// round-tripped independently of each other.
type SchemeFlags struct {
	V2 bool
	V3 bool
}

// NeedsV2V3 reports whether a second, v2/v3 content digest is recorded per
// variant in addition to the v1 digest.
func (f SchemeFlags) NeedsV2V3() bool {
	return f.V2 || f.V3
}

// SignerCredentials carries the key material selection for one signer. The
// fields are opaque to the pipeline; they are handed unmodified to the
// external signer, which does the actual keystore/credential loading.
type SignerCredentials struct {
	Name             string
	KeystorePath     string
	KeystoreKeyAlias string
	KeystorePass     string
	KeyPass          string
	KeyPath          string
	CertPath         string
	V1SignerName     string
}

// IsEmpty reports whether no key material has been selected at all.
func (c SignerCredentials) IsEmpty() bool {
	return c.KeystorePath == "" && c.KeyPath == "" && c.CertPath == ""
}

// GenBinConfig contains configuration for the digest-generation phase
type GenBinConfig struct {
	BundlePath string
	BinDir     string

	Flags   SchemeFlags
	Signers []SignerCredentials

	MinSdkVersion          int
	MinSdkVersionSpecified bool
	MaxSdkVersion          int
	DebuggableApkPermitted bool
}

// SignBundleConfig contains configuration for the signature-application phase
type SignBundleConfig struct {
	BundlePath string
	BinPath    string
	OutputDir  string
}

// VerifyConfig contains configuration for APK verification
type VerifyConfig struct {
	ApkPath string

	MinSdkVersion          int
	MinSdkVersionSpecified bool
	MaxSdkVersion          int
	MaxSdkVersionSpecified bool

	PrintCerts        bool
	Verbose           bool
	WarningsAsErrors  bool
	VerifySourceStamp bool
	StampCertDigest   string
}

// DefaultMaxSdkVersion is used when no --max-sdk-version is given.
const DefaultMaxSdkVersion = math.MaxInt32
