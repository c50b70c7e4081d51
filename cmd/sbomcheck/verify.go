package main

import (
	"fmt"
	"os"

	"github.com/BadgerOps/sbomcheck/internal/engine"
	"github.com/spf13/cobra"
)

func newVerifyCmd() *cobra.Command {
	var (
		sbomPath    string
		installPath string
		roots       []string
		ignores     []string
		productName string
		output      string
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify one installation against the SBOM",
		Long: `Verify one installed product, a directory or a zip/tar archive, against an
SPDX manifest. Every installed file must be declared by a package reachable
from the root packages, with checksums that match.

--product takes the path and root packages from the products section of the
config file; explicit flags override them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if globalRunner == nil {
				return fmt.Errorf("runner not initialized")
			}

			spec := engine.ProductSpec{
				Name:         productName,
				Path:         installPath,
				RootPackages: roots,
				Ignore:       ignores,
			}
			if productName != "" {
				p, ok := globalCfg.Product(productName)
				if !ok {
					return fmt.Errorf("product %q is not configured", productName)
				}
				if spec.Path == "" {
					spec.Path = p.Path
				}
				if len(spec.RootPackages) == 0 {
					spec.RootPackages = p.RootPackages
				}
			}
			if spec.Path == "" {
				return fmt.Errorf("either --path or --product is required")
			}

			result := globalRunner.RunProduct(cmd.Context(), sbomPath, spec)

			if output == outputJSON {
				if err := writeJSON(os.Stdout, result); err != nil {
					return err
				}
			} else {
				printResult(os.Stdout, result)
			}

			if !result.Success {
				return errVerificationFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sbomPath, "sbom", "s", "", "path to the SPDX 2.3 JSON manifest")
	cmd.Flags().StringVarP(&installPath, "path", "p", "", "installation directory or archive to verify")
	cmd.Flags().StringArrayVarP(&roots, "root-package", "r", nil, "root package name (repeatable; all packages when omitted)")
	cmd.Flags().StringArrayVarP(&ignores, "ignore", "i", nil, "glob pattern of installed files to skip (repeatable)")
	cmd.Flags().StringVar(&productName, "product", "", "name of a product from the config file")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format (text or json)")
	_ = cmd.MarkFlagRequired("sbom")

	return cmd
}
