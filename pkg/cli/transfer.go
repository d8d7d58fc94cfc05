package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/smith3v/puzzle-keeper/pkg/collection"
	"github.com/smith3v/puzzle-keeper/pkg/db"
	"github.com/smith3v/puzzle-keeper/pkg/importexport"
	"github.com/spf13/cobra"
)

func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var userID, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a user's collection as a JSON document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeDB, err := openService()
			if err != nil {
				return err
			}
			defer closeDB()

			doc, err := importexport.NewExporter(svc.Store()).ExportAll(cmd.Context(), userID)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				if err := importexport.Encode(cmd.OutOrStdout(), doc); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				return nil
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			if err := writeDocument(f, doc); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d puzzles to %s\n", len(doc.Puzzles), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner id (required)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// writeDocument encodes doc and closes w. A failed close means the file may
// be truncated, so it is reported like a failed write.
func writeDocument(w io.WriteCloser, doc *importexport.Document) error {
	if err := importexport.Encode(w, doc); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add a JSON document to a user's collection",
		Long: `Import adds every record of an export document to the user's collection.
Categories merge with existing ones of the same name. Records that cannot be
applied are skipped and listed, and the command exits with an error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open %s: %w", args[0], err)
			}
			defer f.Close()
			doc, err := importexport.Decode(f)
			if err != nil {
				return err
			}

			svc, closeDB, err := openService()
			if err != nil {
				return err
			}
			defer closeDB()

			if _, err := svc.EnsureUser(cmd.Context(), &db.User{ID: userID}); err != nil {
				return err
			}
			res, err := importexport.NewImporter(svc.Store(), svc.SentinelName()).ImportAll(cmd.Context(), userID, doc)
			if err != nil && !errors.Is(err, collection.ErrPartialFailure) {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "imported %d puzzles, %d categories (%d merged), %d approaches, %d hints\n",
				res.Puzzles, res.Categories, res.CategoriesMerged, res.Approaches, res.Hints)
			if len(res.Reassigned) > 0 {
				fmt.Fprintf(w, "%d puzzles filed under %s\n", len(res.Reassigned), svc.SentinelLabel(cmd.Context(), res.SentinelID))
			}
			for _, r := range res.Rejected {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s %d: %s\n", r.Record, r.ID, r.Reason)
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "owner id (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
