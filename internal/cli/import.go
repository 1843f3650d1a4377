package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/thinktide/tasks/internal/db"
)

var importDryRun bool

var reposImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import repository aliases from CSV",
	Long: `Import repository aliases from a CSV file with an alias,ocid[,description] header.

Examples:
  tasks repos import repos.csv
  cat repos.csv | tasks repos import -
  tasks repos import --dry-run repos.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	reposImportCmd.Flags().BoolVarP(&importDryRun, "dry-run", "n", false, "Preview import without saving")
}

func runImport(cmd *cobra.Command, args []string) error {
	filename := args[0]

	var reader io.Reader
	if filename == "-" {
		reader = stdin
	} else {
		file, err := os.Open(filename)
		if err != nil {
			return fmt.Errorf("failed to open file: %w", err)
		}
		defer file.Close()
		reader = file
	}

	imported, skipped, err := importRepositories(reader, stdout, importDryRun)
	if err != nil {
		return err
	}

	if importDryRun {
		fmt.Fprintf(stdout, "\nDry run: would import %d repositories (%d skipped)\n", imported, skipped)
	} else {
		fmt.Fprintf(stdout, "Imported %d repositories (%d skipped)\n", imported, skipped)
	}
	return nil
}

// importRepositories reads alias,ocid[,description] records from r.
// Records with an empty alias or an OCID that does not start with ocid1. are skipped.
func importRepositories(r io.Reader, w io.Writer, dryRun bool) (imported, skipped int, err error) {
	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	// Read header
	header, err := csvReader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) < 2 || strings.ToLower(header[0]) != "alias" || strings.ToLower(header[1]) != "ocid" {
		return 0, 0, fmt.Errorf("invalid header: expected alias,ocid[,description]")
	}

	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to read record: %w", err)
		}

		if len(record) < 2 {
			skipped++
			continue
		}
		alias := strings.ToLower(strings.TrimSpace(record[0]))
		ocid := strings.TrimSpace(record[1])
		description := ""
		if len(record) > 2 {
			description = strings.TrimSpace(record[2])
		}

		if alias == "" || !strings.HasPrefix(ocid, "ocid1.") {
			fmt.Fprintf(os.Stderr, "Skipping: invalid record %q\n", strings.Join(record, ","))
			skipped++
			continue
		}

		if dryRun {
			fmt.Fprintf(w, "Would import: %s -> %s\n", alias, ocid)
			imported++
			continue
		}

		if _, err := db.UpsertRepository(alias, ocid, description); err != nil {
			return imported, skipped, fmt.Errorf("failed to import %q: %w", alias, err)
		}
		imported++
	}

	return imported, skipped, nil
}
