package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/tiresias/internal/gallery"
	"github.com/MeKo-Tech/tiresias/internal/imgutil"
	"github.com/MeKo-Tech/tiresias/internal/render"
)

func newGalleriesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "galleries",
		Aliases: []string{"gallery"},
		Short:   "Inspect the gallery shapefile",
	}
	cmd.AddCommand(
		newGalleriesListCommand(a),
		newGalleriesNeighborsCommand(a),
		newGalleriesMapCommand(a),
		newGalleriesExportCommand(a),
	)
	return cmd
}

func newGalleriesListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the gallery ids, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			cat, err := loadCatalogue(cfg)
			if err != nil {
				return err
			}
			for _, id := range cat.SortedIDs() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func newGalleriesNeighborsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighbors [ID]",
		Short: "Print the neighbours of one gallery, or of every gallery",
		Long: `Print the galleries closer than --distance to each gallery.

Examples:
  tiresias galleries neighbors
  tiresias galleries neighbors G12 --distance 0.5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			distance := cfg.Gallery.NeighborDistance
			if cmd.Flags().Changed("distance") {
				distance, _ = cmd.Flags().GetFloat64("distance")
			}
			if distance < 0 {
				return fmt.Errorf("invalid --distance: %g (must not be negative)", distance)
			}
			cat, err := loadCatalogue(cfg)
			if err != nil {
				return err
			}
			neighbors := gallery.FindNeighbors(cat, distance)

			ids := cat.SortedIDs()
			if len(args) == 1 {
				if _, ok := cat.Get(args[0]); !ok {
					return fmt.Errorf("%w: %s", gallery.ErrUnknownID, args[0])
				}
				ids = args
			}
			for _, id := range ids {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", id, strings.Join(neighbors.Of(id), ", ")); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Float64("distance", gallery.DefaultDistance, "maximum distance between neighbours, in CRS units")
	return cmd
}

func newGalleriesMapCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map ID",
		Short: "Draw the plan with one gallery and its neighbours highlighted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("output")
			if out == "" {
				out = args[0] + "_map.png"
			}
			cat, err := loadCatalogue(cfg)
			if err != nil {
				return err
			}
			style, err := cfg.Style()
			if err != nil {
				return err
			}
			neighbors := gallery.FindNeighbors(cat, cfg.Gallery.NeighborDistance)
			panel, err := render.MapPanel(cat, args[0], neighbors.Of(args[0]), style)
			if err != nil {
				return err
			}
			if err := imgutil.SavePNG(out, panel); err != nil {
				return err
			}
			slog.Info("map saved", "gallery", args[0], "path", filepath.Clean(out))
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "PNG file to write (default: ID_map.png)")
	return cmd
}

func newGalleriesExportCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the galleries and their neighbours as GeoJSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			cat, err := loadCatalogue(cfg)
			if err != nil {
				return err
			}
			data, err := cat.GeoJSON(cfg.Gallery.ColumnID, gallery.FindNeighbors(cat, cfg.Gallery.NeighborDistance))
			if err != nil {
				return err
			}
			out, _ := cmd.Flags().GetString("output")
			if out == "" || out == "-" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			slog.Info("galleries exported", "path", out, "count", cat.Len())
			return nil
		},
	}
	cmd.Flags().StringP("output", "o", "", "GeoJSON file to write (default: stdout)")
	return cmd
}
