package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/homeserver/chordscan/internal/config"
	"github.com/homeserver/chordscan/internal/library"
	"github.com/spf13/cobra"
)

func newLibraryCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the finalized song library",
		Long: `Finalized songs are stored as JSON files in the library directory. The
parquet index next to them lists every song with its key and size.`,
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "Library directory (overrides CHORDSCAN_LIBRARY_DIR)")

	libraryDir := func() (string, error) {
		if dir != "" {
			return dir, nil
		}
		cfg, err := config.Load()
		if err != nil {
			return "", err
		}
		return cfg.LibraryDir, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "index",
		Short: "Rebuild the parquet index from the song files",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := libraryDir()
			if err != nil {
				return err
			}
			entries, err := library.New(d).Reindex(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("✅ Indexed %d song(s) into %s\n", len(entries), filepath.Join(d, library.IndexFile))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the songs in the index",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := libraryDir()
			if err != nil {
				return err
			}
			entries, err := library.Read(filepath.Join(d, library.IndexFile))
			if err != nil {
				return fmt.Errorf("%w (run 'chordscan library index' first)", err)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tKEY\tSECTIONS\tLINES\tFILE")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", e.Name, e.Key, e.Sections, e.Lines, e.File)
			}
			return tw.Flush()
		},
	})

	return cmd
}
