package main

import (
	"fmt"
	"os"

	"github.com/BadgerOps/sbomcheck/internal/config"
	"github.com/BadgerOps/sbomcheck/internal/engine"
	"github.com/spf13/cobra"
)

func newVerifyBatchCmd() *cobra.Command {
	var (
		sbomPath  string
		batchPath string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "verify-batch",
		Short: "Verify several products against one SBOM",
		Long: `Verify several products against the same SPDX manifest. Products come from a
batch file (JSON or YAML) passed with --batch, or from the products section
of the config file. Every product is checked even when an earlier one fails.`,
		Example: `  sbomcheck verify-batch --sbom sbom.spdx.json --batch products.json

products.json:
  {
    "products": [
      {"name": "ide", "rootDirectory": "/opt/ide", "rootPackages": ["ide"]}
    ],
    "ignores": ["logs/**"]
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if globalRunner == nil {
				return fmt.Errorf("runner not initialized")
			}

			var batch *config.Batch
			if batchPath != "" {
				b, err := config.LoadBatch(batchPath)
				if err != nil {
					return err
				}
				batch = b
			} else {
				if len(globalCfg.Products) == 0 {
					return fmt.Errorf("no products: pass --batch or configure products in the config file")
				}
				batch = &config.Batch{Products: globalCfg.Products}
			}

			var onResult func(engine.ProductResult)
			if output == outputText {
				onResult = func(pr engine.ProductResult) {
					printProductBanner(os.Stdout, pr.Product.DisplayName())
					printResult(os.Stdout, pr.Result)
				}
			}

			report := globalRunner.RunBatch(cmd.Context(), sbomPath, batch, onResult)

			if output == outputJSON {
				if err := writeJSON(os.Stdout, report); err != nil {
					return err
				}
			} else {
				printBatchSummary(os.Stdout, report)
			}

			if !report.Success {
				return errVerificationFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sbomPath, "sbom", "s", "", "path to the SPDX 2.3 JSON manifest")
	cmd.Flags().StringVarP(&batchPath, "batch", "j", "", "batch file listing the products to verify")
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format (text or json)")
	_ = cmd.MarkFlagRequired("sbom")

	return cmd
}
