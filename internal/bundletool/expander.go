// Package bundletool is the boundary to the external tool that expands an
// App Bundle into APK Set archives. The pipeline treats its output as an
// opaque zip of named APK entries.
package bundletool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cafebazaar/bundlesigner/internal/models"
)

// BuildRequest describes one APK Set build
type BuildRequest struct {
	Bundle string
	Output string

	// Disposable keystore the intermediate archive is pre-signed with, so
	// the archive is structurally valid independent of the real signer.
	KeystorePath string
	KeyAlias     string
	KeystorePass string

	// Universal selects the single-fat-APK mode instead of per-device splits
	Universal bool
}

// Expander builds APK Set archives from an App Bundle
type Expander interface {
	// BuildApkSet produces the APK Set at req.Output
	BuildApkSet(ctx context.Context, req BuildRequest) error
}

// ExecExpander invokes an external bundletool executable
type ExecExpander struct {
	// Path of the bundletool executable, resolved via PATH when relative
	Path string
}

// NewExecExpander creates an expander around the given bundletool executable,
// defaulting to "bundletool" on PATH
func NewExecExpander(path string) *ExecExpander {
	if path == "" {
		path = "bundletool"
	}
	return &ExecExpander{Path: path}
}

// BuildApkSet runs "bundletool build-apks"
func (e *ExecExpander) BuildApkSet(ctx context.Context, req BuildRequest) error {
	args := []string{
		"build-apks",
		"--bundle", req.Bundle,
		"--output", req.Output,
		"--ks", req.KeystorePath,
		"--ks-key-alias=" + req.KeyAlias,
		"--ks-pass=pass:" + req.KeystorePass,
	}
	if req.Universal {
		args = append(args, "--mode=universal")
	}

	logrus.Debugf("Invoking %s %s", e.Path, strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return classifyBuildError(req.Bundle, err, stderr.String())
	}
	return nil
}

// classifyBuildError separates a structurally broken bundle from plain I/O
// failure around the tool invocation
func classifyBuildError(bundle string, err error, stderr string) error {
	errType := models.ErrBundleToolIO
	if strings.Contains(strings.ToLower(stderr), "invalid bundle") {
		errType = models.ErrInvalidBundle
	}
	detail := strings.TrimSpace(stderr)
	if detail == "" {
		detail = err.Error()
	}
	return &models.ToolError{
		Type:    errType,
		Subject: bundle,
		Err:     fmt.Errorf("bundletool build-apks failed: %s", detail),
	}
}
