// Package pipeline contains the two phase orchestrations: digest recording
// (genbin) and signature application (signbundle). Both rebuild the same two
// APK Sets from the bundle and walk them in the same order, which is what
// keeps the transfer file's records attached to the right variants.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cafebazaar/bundlesigner/internal/bundletool"
	"github.com/cafebazaar/bundlesigner/internal/keystore"
	"github.com/cafebazaar/bundlesigner/internal/models"
	"github.com/cafebazaar/bundlesigner/internal/utils"
	"github.com/cafebazaar/bundlesigner/internal/workspace"
)

// apkSets is the pair of APK Set archives built per run
type apkSets struct {
	Split     string
	Universal string
}

// buildApkSets writes a disposable keystore into the workspace and expands
// the bundle twice: once into device-configuration splits, once into a
// universal fat APK. Both phases call this with identical parameters.
func buildApkSets(ctx context.Context, expander bundletool.Expander, ws *workspace.Workspace, bundlePath string) (apkSets, error) {
	ksPath := ws.Path("default.keystore")
	if err := keystore.WriteDisposable(ksPath); err != nil {
		return apkSets{}, &models.ToolError{Type: models.ErrRuntime, Err: err}
	}

	sets := apkSets{
		Split:     ws.Path(bundleBaseName(bundlePath) + ".apks"),
		Universal: ws.Path("universal.apks"),
	}

	logrus.Infof("Building split APK Set from %s", bundlePath)
	if err := expander.BuildApkSet(ctx, buildRequest(bundlePath, ksPath, sets.Split, false)); err != nil {
		return apkSets{}, err
	}

	logrus.Infof("Building universal APK Set from %s", bundlePath)
	if err := expander.BuildApkSet(ctx, buildRequest(bundlePath, ksPath, sets.Universal, true)); err != nil {
		return apkSets{}, err
	}

	return sets, nil
}

func buildRequest(bundle, ksPath, output string, universal bool) bundletool.BuildRequest {
	return bundletool.BuildRequest{
		Bundle:       bundle,
		Output:       output,
		KeystorePath: ksPath,
		KeyAlias:     keystore.DefaultAlias,
		KeystorePass: keystore.DefaultPassword,
		Universal:    universal,
	}
}

// bundleBaseName strips the bundle filename at its first dot, mirroring how
// the transfer file and APK Set archive are named after the bundle
func bundleBaseName(path string) string {
	base := filepath.Base(path)
	if idx := strings.Index(base, "."); idx >= 0 {
		base = base[:idx]
	}
	return base
}

// checkBundle verifies the bundle exists and logs its content hash so the
// operator can compare it between the two phases; nothing in the transfer
// file binds it to a specific bundle build.
func checkBundle(path string) error {
	if path == "" {
		return &models.ToolError{
			Type: models.ErrParameter,
			Err:  fmt.Errorf("missing input bundle file path"),
		}
	}
	if _, err := os.Stat(path); err != nil {
		return &models.ToolError{
			Type:    models.ErrParameter,
			Subject: path,
			Err:     fmt.Errorf("input bundle file does not exist"),
		}
	}
	sum, err := utils.CalculateChecksum(path)
	if err != nil {
		return &models.ToolError{Type: models.ErrRuntime, Subject: path, Err: err}
	}
	logrus.Infof("Bundle %s sha256=%s size=%d", filepath.Base(path), sum.SHA256, sum.Size)
	return nil
}
