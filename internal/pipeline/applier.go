package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cafebazaar/bundlesigner/internal/apkset"
	"github.com/cafebazaar/bundlesigner/internal/bundletool"
	"github.com/cafebazaar/bundlesigner/internal/models"
	"github.com/cafebazaar/bundlesigner/internal/signer"
	"github.com/cafebazaar/bundlesigner/internal/transfer"
	"github.com/cafebazaar/bundlesigner/internal/utils"
	"github.com/cafebazaar/bundlesigner/internal/workspace"
)

// Applier drives the signature-application phase: re-expand the bundle into
// the same two APK Sets, match every variant back to its recorded digest
// payloads by name, embed the signatures and write the signed artifacts.
type Applier struct {
	expander bundletool.Expander
	signer   signer.Signer
}

// NewApplier creates an Applier
func NewApplier(expander bundletool.Expander, s signer.Signer) *Applier {
	return &Applier{expander: expander, signer: s}
}

// Apply runs the phase and returns the signed APK paths. The scheme flags
// travel inside the transfer file; nothing from the digest-generation
// command line needs to be repeated here. No signed APK is written before
// the transfer file has parsed completely.
func (a *Applier) Apply(ctx context.Context, ws *workspace.Workspace, cfg *models.SignBundleConfig) ([]string, error) {
	if cfg.BinPath == "" {
		return nil, &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("missing bin file path"),
		}
	}
	if _, err := os.Stat(cfg.BinPath); err != nil {
		return nil, &models.ToolError{
			Type:    models.ErrParameter,
			Subject: cfg.BinPath,
			Err:     fmt.Errorf("passed bin file does not exist"),
		}
	}
	if err := checkBundle(cfg.BundlePath); err != nil {
		return nil, err
	}

	tf, err := transfer.ParseFile(cfg.BinPath)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Transfer file %s: format %s, v2=%t v3=%t, %d variants",
		filepath.Base(cfg.BinPath), tf.Version, tf.Flags.V2, tf.Flags.V3, len(tf.Groups))

	sets, err := buildApkSets(ctx, a.expander, ws, cfg.BundlePath)
	if err != nil {
		return nil, err
	}

	if err := utils.EnsureDir(cfg.OutputDir); err != nil {
		return nil, &models.ToolError{Type: models.ErrRuntime, Subject: cfg.OutputDir, Err: err}
	}

	extractDir, err := ws.Mkdir("extract")
	if err != nil {
		return nil, &models.ToolError{Type: models.ErrRuntime, Err: err}
	}

	var outputs []string
	seen := make(map[string]struct{})
	for _, set := range []string{sets.Split, sets.Universal} {
		err := apkset.Walk(set, extractDir, func(v apkset.Variant) error {
			// Name is the correlation key; a repeat across the two sets would
			// silently overwrite an already-signed output.
			if _, dup := seen[v.Name]; dup {
				return &models.ToolError{
					Type:    models.ErrCorrelation,
					Subject: v.Name,
					Err:     fmt.Errorf("two APK Set entries normalize to the same variant name"),
				}
			}
			seen[v.Name] = struct{}{}

			signed, err := a.signVariant(ctx, ws, tf, extractDir, cfg.OutputDir, v)
			if err != nil {
				return err
			}
			outputs = append(outputs, signed)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	// The split APK Set archive ships alongside the individually signed APKs
	setCopy := filepath.Join(cfg.OutputDir, filepath.Base(sets.Split))
	if err := utils.CopyFile(sets.Split, setCopy); err != nil {
		return nil, &models.ToolError{Type: models.ErrRuntime, Subject: setCopy, Err: err}
	}

	logrus.Infof("Signed %d APKs into %s", len(outputs), cfg.OutputDir)
	return outputs, nil
}

// signVariant looks up the variant's recorded payloads and embeds them,
// writing the final signed APK into outDir
func (a *Applier) signVariant(ctx context.Context, ws *workspace.Workspace, tf *transfer.File, extractDir, outDir string, v apkset.Variant) (string, error) {
	group, ok := tf.Lookup(v.Name)
	if !ok {
		return "", &models.ToolError{
			Type:    models.ErrCorrelation,
			Subject: v.Name,
			Err:     fmt.Errorf("no recorded digest for variant; the bundle or scheme flags differ from the digest-generation run"),
		}
	}

	final := filepath.Join(outDir, outputName(extractDir, v.Path))
	logrus.Debugf("Applying signatures to %s -> %s", v.Name, final)

	if tf.Flags.NeedsV2V3() {
		v1Apk := ws.Path("v1_" + v.Name)
		if err := a.signer.EmbedV1(ctx, v.Path, group.V1, v1Apk); err != nil {
			return "", err
		}
		if err := a.signer.EmbedV2V3(ctx, v1Apk, group.V2V3, final, tf.Flags); err != nil {
			return "", err
		}
	} else {
		if err := a.signer.EmbedV1(ctx, v.Path, group.V1, final); err != nil {
			return "", err
		}
	}

	return final, nil
}

// outputName decides the final filename of a signed variant. The universal
// APK keeps its own name; split variants get their parent directory (the
// device-configuration qualifier) prefixed so same-named leaves from
// different configurations stay distinct.
func outputName(extractDir, extractedPath string) string {
	leaf := filepath.Base(extractedPath)
	if strings.Contains(leaf, "universal") {
		return leaf
	}
	rel, err := filepath.Rel(extractDir, extractedPath)
	if err != nil {
		return leaf
	}
	parent := filepath.Base(filepath.Dir(rel))
	if parent == "." {
		return leaf
	}
	return parent + "_" + leaf
}
