package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/njprem/regdocs/internal/client"
	"github.com/njprem/regdocs/internal/domain"
	"github.com/njprem/regdocs/internal/manifest"
	"github.com/njprem/regdocs/internal/service"
)

type importOptions struct {
	api   string
	token string
	kb    string
}

func newImportCmd() *cobra.Command {
	opts := importOptions{}
	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Upload a directory described by its manifest.csv",
		Long: `Upload every document listed in the directory's manifest.csv to the API,
one at a time and in manifest order. The manifest needs name, file and
department columns; a last update date column is optional.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.api, "api", envOr("REGDOCS_API", "http://localhost:8080"), "regdocs API base URL")
	cmd.Flags().StringVar(&opts.token, "token", envOr("REGDOCS_TOKEN", ""), "admin bearer token")
	cmd.Flags().StringVar(&opts.kb, "kb", "", "knowledge base (RAGFlow dataset) name; empty uses the server default")
	return cmd
}

func runImport(cmd *cobra.Command, dir string, opts importOptions) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	files, err := manifest.DirFiles(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}
	var total int64
	for _, f := range files {
		total += f.Size()
	}
	fmt.Fprintln(out, formatHeader(dir, opts.api, opts.kb, len(files), total))

	api := client.New(client.Config{BaseURL: opts.api, Token: opts.token})
	departments, err := api.Departments(ctx)
	if err != nil || departments.Len() == 0 {
		fmt.Fprintln(out, warnStyle.Render(fmt.Sprintf("could not load departments from the API (%v), using the built-in list", err)))
		departments = domain.NewDepartmentSet(domain.DefaultDepartments)
	}

	printer := &importPrinter{w: out}
	importer := service.NewBulkImportService(api, service.BulkImportServiceConfig{
		Departments: departments,
		Logf:        func(string, ...any) {},
	})
	res, err := importer.Run(ctx, files, opts.kb, printer.observer())
	if err != nil {
		log.Printf("[bulk-import] %s: %v", dir, err)
		return err
	}
	fmt.Fprintln(out, formatSummary(res))
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d entries failed", res.Failed, res.Progress.Total)
	}
	return nil
}
