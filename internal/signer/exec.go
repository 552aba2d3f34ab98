package signer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cafebazaar/bundlesigner/internal/models"
)

// ExecSigner drives an external apksig-compatible executable. Digest
// payloads come back on the tool's stdout and are fed to it on stdin, so
// they never hit the command line.
type ExecSigner struct {
	// Path of the signer executable, resolved via PATH when relative
	Path string
}

// NewExecSigner creates a signer around the given executable, defaulting to
// "apksig" on PATH
func NewExecSigner(path string) *ExecSigner {
	if path == "" {
		path = "apksig"
	}
	return &ExecSigner{Path: path}
}

// SignV1 computes the v1 (JAR) digest payload for an unsigned APK
func (s *ExecSigner) SignV1(ctx context.Context, apkPath string, opts Options) (string, error) {
	args := []string{"sign-v1", "--in", apkPath}
	args = append(args, opts.args()...)
	out, err := s.run(ctx, nil, args)
	if err != nil {
		return "", err
	}
	return payloadFromOutput(apkPath, out)
}

// EmbedV1 embeds a v1 digest payload into apkPath, writing outPath
func (s *ExecSigner) EmbedV1(ctx context.Context, apkPath, payload, outPath string) error {
	args := []string{"embed-v1", "--in", apkPath, "--out", outPath}
	_, err := s.run(ctx, strings.NewReader(payload+"\n"), args)
	return err
}

// SignV2V3 computes the v2/v3 digest payload from a v1-signed APK
func (s *ExecSigner) SignV2V3(ctx context.Context, apkPath string, opts Options) (string, error) {
	args := []string{"sign-v2v3", "--in", apkPath}
	args = append(args, schemeArgs(opts.Flags)...)
	args = append(args, opts.args()...)
	out, err := s.run(ctx, nil, args)
	if err != nil {
		return "", err
	}
	return payloadFromOutput(apkPath, out)
}

// EmbedV2V3 embeds a v2/v3 digest payload into a v1-signed APK
func (s *ExecSigner) EmbedV2V3(ctx context.Context, apkPath, payload, outPath string, flags models.SchemeFlags) error {
	args := []string{"embed-v2v3", "--in", apkPath, "--out", outPath}
	args = append(args, schemeArgs(flags)...)
	_, err := s.run(ctx, strings.NewReader(payload+"\n"), args)
	return err
}

func (s *ExecSigner) run(ctx context.Context, stdin *strings.Reader, args []string) (string, error) {
	logrus.Debugf("Invoking %s %s", s.Path, strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Path, args...)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", classifySignerError(err, stderr.String())
	}
	return stdout.String(), nil
}

// payloadFromOutput reduces the tool's stdout to the single digest payload
// line recorded in the transfer file
func payloadFromOutput(apkPath, out string) (string, error) {
	payload := strings.TrimSpace(out)
	if payload == "" || strings.ContainsAny(payload, "\n\r") {
		return "", &models.ToolError{
			Type:    models.ErrRuntime,
			Subject: apkPath,
			Err:     fmt.Errorf("signer produced %d bytes where a single digest payload line was expected", len(out)),
		}
	}
	return payload, nil
}

// classifySignerError maps the external tool's failure onto the error
// taxonomy. Malformed-APK and undeterminable-min-sdk failures keep their
// reserved exit codes; everything else propagates as a runtime error.
func classifySignerError(err error, stderr string) error {
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = err.Error()
	}
	errType := models.ErrRuntime
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "minimum supported platform version"):
		errType = models.ErrMinSdkVersion
	case strings.Contains(lower, "apk format"), strings.Contains(lower, "malformed apk"):
		errType = models.ErrApkFormat
	}
	return &models.ToolError{
		Type: errType,
		Err:  fmt.Errorf("signer invocation failed: %s", detail),
	}
}

// args renders the signer selection and SDK options as command-line flags
func (o Options) args() []string {
	var args []string
	for i, cred := range o.Credentials {
		if i > 0 {
			args = append(args, "--next-signer")
		}
		if cred.KeystorePath != "" {
			args = append(args, "--ks", cred.KeystorePath)
		}
		if cred.KeystoreKeyAlias != "" {
			args = append(args, "--ks-key-alias", cred.KeystoreKeyAlias)
		}
		if cred.KeystorePass != "" {
			args = append(args, "--ks-pass", cred.KeystorePass)
		}
		if cred.KeyPass != "" {
			args = append(args, "--key-pass", cred.KeyPass)
		}
		if cred.KeyPath != "" {
			args = append(args, "--key", cred.KeyPath)
		}
		if cred.CertPath != "" {
			args = append(args, "--cert", cred.CertPath)
		}
		if cred.V1SignerName != "" {
			args = append(args, "--v1-signer-name", cred.V1SignerName)
		}
	}
	if o.MinSdkVersionSpecified {
		args = append(args, "--min-sdk-version", strconv.Itoa(o.MinSdkVersion))
	}
	if !o.DebuggableApkPermitted {
		args = append(args, "--debuggable-apk-permitted=false")
	}
	return args
}

func schemeArgs(flags models.SchemeFlags) []string {
	return []string{
		"--v2-signing-enabled=" + strconv.FormatBool(flags.V2),
		"--v3-signing-enabled=" + strconv.FormatBool(flags.V3),
	}
}

// ExecVerifier drives the external verifier, streaming its report through to
// the user unmodified.
type ExecVerifier struct {
	Path string
}

// NewExecVerifier creates a verifier around the given executable, defaulting
// to "apksig" on PATH
func NewExecVerifier(path string) *ExecVerifier {
	if path == "" {
		path = "apksig"
	}
	return &ExecVerifier{Path: path}
}

// Verify runs the external verifier against cfg.ApkPath
func (v *ExecVerifier) Verify(ctx context.Context, cfg models.VerifyConfig) error {
	args := []string{"verify"}
	if cfg.MinSdkVersionSpecified {
		args = append(args, "--min-sdk-version", strconv.Itoa(cfg.MinSdkVersion))
	}
	if cfg.MaxSdkVersionSpecified {
		args = append(args, "--max-sdk-version", strconv.Itoa(cfg.MaxSdkVersion))
	}
	if cfg.PrintCerts {
		args = append(args, "--print-certs")
	}
	if cfg.Verbose {
		args = append(args, "--verbose")
	}
	if cfg.WarningsAsErrors {
		args = append(args, "-Werr")
	}
	if cfg.VerifySourceStamp {
		args = append(args, "--verify-source-stamp")
	}
	if cfg.StampCertDigest != "" {
		args = append(args, "--stamp-cert-digest", cfg.StampCertDigest)
	}
	args = append(args, "--in", cfg.ApkPath)

	logrus.Debugf("Invoking %s %s", v.Path, strings.Join(args, " "))

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, v.Path, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}

	detail := strings.TrimSpace(stderr.String())
	if detail != "" {
		fmt.Fprintln(os.Stderr, detail)
	}
	if strings.Contains(strings.ToLower(detail), "minimum supported platform version") {
		return &models.ToolError{
			Type:    models.ErrMinSdkVersion,
			Subject: cfg.ApkPath,
			Err:     fmt.Errorf("failed to determine APK's minimum supported platform version, use --min-sdk-version to override"),
		}
	}
	return &models.ToolError{
		Type:    models.ErrVerification,
		Subject: cfg.ApkPath,
		Err:     fmt.Errorf("APK does not verify"),
	}
}
