package signer

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/cafebazaar/bundlesigner/internal/models"
)

func TestOptionsArgs(t *testing.T) {
	opts := Options{
		Credentials: []models.SignerCredentials{
			{KeystorePath: "a.keystore", KeystoreKeyAlias: "release", KeystorePass: "pass:secret"},
			{KeyPath: "b.pk8", CertPath: "b.pem", V1SignerName: "CERT"},
		},
		MinSdkVersion:          21,
		MinSdkVersionSpecified: true,
		DebuggableApkPermitted: true,
	}

	got := strings.Join(opts.args(), " ")
	want := "--ks a.keystore --ks-key-alias release --ks-pass pass:secret" +
		" --next-signer --key b.pk8 --cert b.pem --v1-signer-name CERT" +
		" --min-sdk-version 21"
	if got != want {
		t.Errorf("args() = %q, want %q", got, want)
	}
}

func TestOptionsArgsDebuggableNotPermitted(t *testing.T) {
	opts := Options{DebuggableApkPermitted: false}
	got := strings.Join(opts.args(), " ")
	if got != "--debuggable-apk-permitted=false" {
		t.Errorf("args() = %q", got)
	}
}

func TestSchemeArgs(t *testing.T) {
	got := strings.Join(schemeArgs(models.SchemeFlags{V2: true, V3: false}), " ")
	want := "--v2-signing-enabled=true --v3-signing-enabled=false"
	if got != want {
		t.Errorf("schemeArgs() = %q, want %q", got, want)
	}
}

func TestPayloadFromOutput(t *testing.T) {
	payload, err := payloadFromOutput("a.apk", "abc123\n")
	if err != nil || payload != "abc123" {
		t.Errorf("payloadFromOutput = %q, %v", payload, err)
	}

	if _, err := payloadFromOutput("a.apk", ""); err == nil {
		t.Error("Expected error for empty output")
	}
	if _, err := payloadFromOutput("a.apk", "line1\nline2\n"); err == nil {
		t.Error("Expected error for multi-line output")
	}
}

func TestClassifySignerError(t *testing.T) {
	cases := []struct {
		name   string
		stderr string
		want   models.ErrorType
	}{
		{"min sdk", "Failed to determine APK's minimum supported platform version", models.ErrMinSdkVersion},
		{"apk format", "APK format error: missing zip central directory", models.ErrApkFormat},
		{"other", "keystore load failure", models.ErrRuntime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := classifySignerError(fmt.Errorf("exit status 1"), tc.stderr)
			var terr *models.ToolError
			if !errors.As(err, &terr) {
				t.Fatalf("Expected ToolError, got %v", err)
			}
			if terr.Type != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, terr.Type)
			}
		})
	}
}
