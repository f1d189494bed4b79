package main

import (
	"fmt"

	"github.com/latoulicious/kenny/internal/config"
	"github.com/latoulicious/kenny/pkg/music"
	"github.com/spf13/cobra"
)

func catalogCmd(envFile *string) *cobra.Command {
	var (
		path  string
		prune bool
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the playlist file without connecting to Discord",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				cfg, err := config.LoadOfflineConfig(*envFile)
				if err != nil {
					return err
				}
				path = cfg.CatalogPath
			}

			catalog, err := music.LoadCatalog(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprint(out, formatCatalog(catalog.Tracks()))

			dropped := catalog.Dropped()
			switch {
			case dropped == 0:
			case prune:
				if err := catalog.Save(); err != nil {
					return err
				}
				fmt.Fprintf(out, "removed %d invalid entries from %s\n", dropped, path)
			default:
				fmt.Fprintf(out, "%d invalid entries skipped, run with --prune to remove them\n", dropped)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "playlist file (defaults to CATALOG_PATH)")
	cmd.Flags().BoolVar(&prune, "prune", false, "rewrite the file without invalid entries")
	return cmd
}
