package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/cafebazaar/bundlesigner/internal/apkset"
	"github.com/cafebazaar/bundlesigner/internal/bundletool"
	"github.com/cafebazaar/bundlesigner/internal/models"
	"github.com/cafebazaar/bundlesigner/internal/signer"
	"github.com/cafebazaar/bundlesigner/internal/transfer"
	"github.com/cafebazaar/bundlesigner/internal/utils"
	"github.com/cafebazaar/bundlesigner/internal/workspace"
)

// Recorder drives the digest-generation phase: expand the bundle into both
// APK Sets, compute each variant's digest payloads, and persist them to a
// transfer file for the signature-application phase.
type Recorder struct {
	expander bundletool.Expander
	signer   signer.Signer
}

// NewRecorder creates a Recorder
func NewRecorder(expander bundletool.Expander, s signer.Signer) *Recorder {
	return &Recorder{expander: expander, signer: s}
}

// Generate runs the phase and returns the path of the written transfer file,
// <BinDir>/<bundle base name>.bin. Any failure aborts the whole run; there
// is no per-variant partial-failure tolerance.
func (r *Recorder) Generate(ctx context.Context, ws *workspace.Workspace, cfg *models.GenBinConfig) (string, error) {
	if len(cfg.Signers) == 0 {
		return "", &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("at least one signer must be specified"),
		}
	}
	if err := checkBundle(cfg.BundlePath); err != nil {
		return "", err
	}

	sets, err := buildApkSets(ctx, r.expander, ws, cfg.BundlePath)
	if err != nil {
		return "", err
	}

	if err := utils.EnsureDir(cfg.BinDir); err != nil {
		return "", &models.ToolError{Type: models.ErrRuntime, Subject: cfg.BinDir, Err: err}
	}
	outPath := filepath.Join(cfg.BinDir, bundleBaseName(cfg.BundlePath)+".bin")
	out, err := os.Create(outPath)
	if err != nil {
		return "", &models.ToolError{Type: models.ErrRuntime, Subject: outPath, Err: err}
	}
	defer out.Close()

	w, err := transfer.NewWriter(out, cfg.Flags)
	if err != nil {
		return "", &models.ToolError{Type: models.ErrRuntime, Subject: outPath, Err: err}
	}

	opts := signer.Options{
		Credentials:            cfg.Signers,
		Flags:                  cfg.Flags,
		MinSdkVersion:          cfg.MinSdkVersion,
		MinSdkVersionSpecified: cfg.MinSdkVersionSpecified,
		DebuggableApkPermitted: cfg.DebuggableApkPermitted,
	}

	extractDir, err := ws.Mkdir("extract")
	if err != nil {
		return "", &models.ToolError{Type: models.ErrRuntime, Err: err}
	}

	// Split-set record groups first, then universal, matching the order the
	// signature-application phase will walk.
	recorded := 0
	for _, set := range []string{sets.Split, sets.Universal} {
		err := apkset.Walk(set, extractDir, func(v apkset.Variant) error {
			if err := r.recordVariant(ctx, ws, w, opts, v); err != nil {
				return err
			}
			recorded++
			return nil
		})
		if err != nil {
			return "", err
		}
	}

	if err := out.Sync(); err != nil {
		return "", &models.ToolError{Type: models.ErrRuntime, Subject: outPath, Err: err}
	}

	logrus.Infof("Digest content generated for %d variants: %s", recorded, outPath)
	return outPath, nil
}

// recordVariant computes one variant's digest payloads and appends its record
// group to the transfer writer
func (r *Recorder) recordVariant(ctx context.Context, ws *workspace.Workspace, w *transfer.Writer, opts signer.Options, v apkset.Variant) error {
	logrus.Debugf("Recording digests for %s", v.Name)

	v1, err := r.signer.SignV1(ctx, v.Path, opts)
	if err != nil {
		return err
	}
	group := transfer.Group{Name: v.Name, V1: v1}

	if opts.Flags.NeedsV2V3() {
		// The v2/v3 digest covers the v1-signed content, so the v1 payload
		// is embedded into an intermediate artifact first.
		v1Apk := ws.Path("v1_" + v.Name)
		if err := r.signer.EmbedV1(ctx, v.Path, v1, v1Apk); err != nil {
			return err
		}
		group.V2V3, err = r.signer.SignV2V3(ctx, v1Apk, opts)
		if err != nil {
			return err
		}
	}

	return w.Append(group)
}
