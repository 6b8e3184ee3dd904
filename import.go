package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"endpoint-prober/internal/catalog"
	"endpoint-prober/internal/ledger"
	"endpoint-prober/internal/parser"
)

type importOptions struct {
	url    string
	file   string
	output string
	merge  bool
}

func newImportCommand(global *globalOptions) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Build an endpoint catalog from an OpenAPI description",
		Long: "import reads an OpenAPI (Swagger) document from a URL or a file and writes an " +
			"endpoint catalog grouped by tag. With --merge, endpoints missing from the existing " +
			"catalog are appended and everything already there, including earlier results, is kept.",
		Example: "endpoint-prober import --url https://api.example.com --merge",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := global.setup()
			if err != nil {
				return err
			}
			defer log.Close()

			var imported *catalog.Catalog
			switch {
			case opts.file != "":
				data, err := os.ReadFile(opts.file)
				if err != nil {
					return fmt.Errorf("failed to read OpenAPI document: %w", err)
				}
				imported, err = parser.ParseData(data)
				if err != nil {
					return err
				}
			default:
				url := opts.url
				if url == "" {
					url = cfg.Environment.BaseURL
				}
				imported, err = parser.NewSwaggerParser(url, log.Logger).ParseCatalog(cmd.Context())
				if err != nil {
					return err
				}
			}

			output := opts.output
			if output == "" {
				output = cfg.Catalog.Path
			}
			result, added, err := mergeCatalog(output, imported, opts.merge)
			if err != nil {
				return err
			}
			if err := ledger.NewStore(output, cfg.Ledger.KeepBackup).SaveCatalog(result); err != nil {
				return err
			}
			log.Info("catalog written", "path", output, "endpoints", result.Count(), "added", added)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d endpoints to %s (%d new)\n", result.Count(), output, added)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "Base URL or document URL of the OpenAPI description (default: environment.base_url)")
	cmd.Flags().StringVar(&opts.file, "file", "", "Read the OpenAPI description from a local file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Catalog to write (default: catalog.path)")
	cmd.Flags().BoolVar(&opts.merge, "merge", false, "Append new endpoints to the existing catalog")
	cmd.MarkFlagsMutuallyExclusive("url", "file")
	return cmd
}

// mergeCatalog returns the catalog to write at path and how many endpoints
// are new. Without merge the imported catalog replaces whatever is there.
func mergeCatalog(path string, imported *catalog.Catalog, merge bool) (*catalog.Catalog, int, error) {
	if !merge {
		return imported, imported.Count(), nil
	}
	existing, err := catalog.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return imported, imported.Count(), nil
	}
	if err != nil {
		return nil, 0, err
	}
	return existing, catalog.Merge(existing, imported), nil
}
