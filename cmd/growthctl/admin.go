package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanjade/growthctl/internal/api"
	"github.com/alanjade/growthctl/internal/market"
	"github.com/alanjade/growthctl/internal/output"
)

const adminLandsPath = "/admin/lands"

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer land listings (admin accounts only)",
	}
	lands := &cobra.Command{
		Use:   "lands",
		Short: "Manage listings",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// cobra runs only the nearest persistent hook
			if err := a.setup(cmd); err != nil {
				return err
			}
			return a.requireAdmin(cmd.Context(), adminLandsPath)
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List every listing, including disabled ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lands, err := a.market.AdminLands(cmd.Context())
			if err != nil {
				return err
			}
			if ok, err := a.printJSON(lands); ok {
				return err
			}
			t := a.out.Table("ID", "TITLE", "LOCATION", "PRICE/UNIT", "SOLD", "TOTAL", "STATUS")
			for _, l := range lands {
				t.AddRow(l.ID.String(), l.Title, l.Location, market.FormatNaira(l.PricePerUnitKobo),
					strconv.Itoa(l.SoldUnits()), strconv.Itoa(l.TotalUnits), a.out.Badge(landStatus(l)))
			}
			if err := t.Render(); err != nil {
				return err
			}
			a.out.PrintHints("admin lands list")
			return nil
		},
	}

	create := &cobra.Command{
		Use:   "create",
		Short: "Publish a new listing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := market.LandInput{IsAvailable: true}
			closeFiles, err := applyLandFlags(cmd, &in)
			defer closeFiles()
			if err != nil {
				return err
			}
			msg, err := a.market.CreateLand(cmd.Context(), in)
			if err != nil {
				return err
			}
			a.out.Success("%s", msg)
			return nil
		},
	}
	addLandFlags(create)

	update := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a listing; unset flags keep their current values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			current, err := a.market.Land(ctx, args[0])
			if err != nil {
				return notFound(err, "land", args[0])
			}
			in := inputFromLand(*current)
			closeFiles, err := applyLandFlags(cmd, &in)
			defer closeFiles()
			if err != nil {
				return err
			}
			in.RemoveImages, _ = cmd.Flags().GetStringSlice("remove-image")
			msg, err := a.market.UpdateLand(ctx, args[0], in)
			if err != nil {
				return err
			}
			a.out.Success("%s", msg)
			return nil
		},
	}
	addLandFlags(update)
	update.Flags().StringSlice("remove-image", nil, "image IDs to delete")

	price := &cobra.Command{
		Use:   "price <id>",
		Short: "Record a new unit price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			naira, _ := cmd.Flags().GetFloat64("price")
			date, _ := cmd.Flags().GetString("date")
			if date == "" {
				date = time.Now().Format(market.PriceDateLayout)
			}
			msg, err := a.market.SetPrice(cmd.Context(), args[0], toKobo(naira), date)
			if err != nil {
				return err
			}
			a.out.Success("%s", msg)
			return nil
		},
	}
	price.Flags().Float64("price", 0, "price per unit in naira")
	price.Flags().String("date", "", "effective date YYYY-MM-DD (default today)")
	_ = price.MarkFlagRequired("price")

	lands.AddCommand(list, create, update, price, availabilityCmd(a, true), availabilityCmd(a, false))
	cmd.AddCommand(lands)
	return cmd
}

func availabilityCmd(a *app, enabled bool) *cobra.Command {
	use, short := "disable <id>", "Stop trading on a listing"
	if enabled {
		use, short = "enable <id>", "Open a listing for trading"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := a.market.SetAvailability(cmd.Context(), args[0], enabled)
			if err != nil {
				return err
			}
			a.out.Success("%s", msg)
			return nil
		},
	}
}

func addLandFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("title", "", "listing title")
	f.String("location", "", "human readable location")
	f.String("description", "", "description")
	f.Float64("size", 0, "size in square metres")
	f.Float64("price", 0, "price per unit in naira")
	f.Int("units", 0, "total units")
	f.Bool("available", true, "open for trading")
	f.String("polygon", "", "GeoJSON polygon, or a JSON ring of [lng, lat] positions; @file reads it from a file")
	f.Float64("lat", 0, "latitude when no polygon is given")
	f.Float64("lng", 0, "longitude when no polygon is given")
	f.StringSlice("image", nil, "image file to upload (repeatable)")
}

func inputFromLand(l market.Land) market.LandInput {
	in := market.LandInput{
		Title:            l.Title,
		Location:         l.Location,
		Description:      l.Description,
		Size:             float64(l.Size),
		PricePerUnitKobo: int64(l.PricePerUnitKobo),
		TotalUnits:       l.TotalUnits,
		IsAvailable:      bool(l.IsAvailable),
	}
	if l.HasPolygon() {
		g := *l.Coordinates
		in.Polygon = &g
	} else if l.Lat != nil && l.Lng != nil {
		lat, lng := float64(*l.Lat), float64(*l.Lng)
		in.Lat, in.Lng = &lat, &lng
	}
	return in
}

// applyLandFlags copies the changed flags onto in and opens the image files.
// The returned func closes them and is safe to call on error.
func applyLandFlags(cmd *cobra.Command, in *market.LandInput) (func(), error) {
	f := cmd.Flags()
	var files []*os.File
	closeAll := func() {
		for _, fh := range files {
			_ = fh.Close()
		}
	}
	if f.Changed("title") {
		in.Title, _ = f.GetString("title")
	}
	if f.Changed("location") {
		in.Location, _ = f.GetString("location")
	}
	if f.Changed("description") {
		in.Description, _ = f.GetString("description")
	}
	if f.Changed("size") {
		in.Size, _ = f.GetFloat64("size")
	}
	if f.Changed("price") {
		p, _ := f.GetFloat64("price")
		in.PricePerUnitKobo = toKobo(p)
	}
	if f.Changed("units") {
		in.TotalUnits, _ = f.GetInt("units")
	}
	if f.Changed("available") {
		in.IsAvailable, _ = f.GetBool("available")
	}
	if f.Changed("polygon") {
		raw, _ := f.GetString("polygon")
		g, err := parsePolygon(raw)
		if err != nil {
			return closeAll, err
		}
		in.Polygon, in.Lat, in.Lng = g, nil, nil
	}
	if f.Changed("lat") || f.Changed("lng") {
		lat, _ := f.GetFloat64("lat")
		lng, _ := f.GetFloat64("lng")
		in.Lat, in.Lng, in.Polygon = &lat, &lng, nil
	}
	paths, _ := f.GetStringSlice("image")
	for _, p := range paths {
		fh, err := os.Open(p)
		if err != nil {
			return closeAll, &output.CLIError{Summary: "cannot read image", Detail: err.Error(), ExitCode: output.ExitUsageError, Err: err}
		}
		files = append(files, fh)
		in.Images = append(in.Images, api.FormFile{Filename: filepath.Base(p), Content: fh})
	}
	return closeAll, nil
}

// parsePolygon accepts a GeoJSON polygon or a bare ring, inline or as @file.
func parsePolygon(raw string) (*market.Geometry, error) {
	raw = strings.TrimSpace(raw)
	if name, ok := strings.CutPrefix(raw, "@"); ok {
		b, err := os.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read polygon: %w", err)
		}
		raw = strings.TrimSpace(string(b))
	}
	if strings.HasPrefix(raw, "{") {
		var g market.Geometry
		if err := json.Unmarshal([]byte(raw), &g); err != nil {
			return nil, &output.CLIError{Summary: "invalid polygon", Detail: err.Error(), ExitCode: output.ExitUsageError, Err: err}
		}
		return &g, nil
	}
	var ring [][2]float64
	if err := json.Unmarshal([]byte(raw), &ring); err != nil {
		return nil, &output.CLIError{Summary: "invalid polygon", Detail: err.Error(), Suggestion: `Pass a ring such as [[3.35,6.52],[3.36,6.52],[3.36,6.53]]`, ExitCode: output.ExitUsageError, Err: err}
	}
	g := market.NewPolygon(ring)
	return &g, nil
}

func toKobo(naira float64) int64 { return int64(math.Round(naira * 100)) }
