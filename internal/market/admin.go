package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanjade/growthctl/internal/api"
)

var (
	ErrTitleLocation   = errors.New("title and location are required")
	ErrNoPosition      = errors.New("draw a polygon or provide latitude and longitude")
	ErrPriceDate       = errors.New("price and date are required")
	ErrUnitsBelowSold  = errors.New("total units cannot be less than units already sold")
	ErrInvalidLandSize = errors.New("size, price and total units must not be negative")
)

// PriceDateLayout is the calendar date format of a price change.
const PriceDateLayout = "2006-01-02"

// LandInput is the admin form for creating or editing a listing.
type LandInput struct {
	Title            string
	Location         string
	Description      string
	Size             float64
	PricePerUnitKobo int64
	TotalUnits       int
	IsAvailable      bool
	Polygon          *Geometry
	Lat, Lng         *float64

	Images       []api.FormFile
	RemoveImages []string
}

// Validate checks the form before anything is sent.
func (in LandInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Location) == "" {
		return ErrTitleLocation
	}
	if in.Size < 0 || in.PricePerUnitKobo < 0 || in.TotalUnits < 0 {
		return ErrInvalidLandSize
	}
	if in.Polygon != nil {
		return in.Polygon.Validate()
	}
	if in.Lat == nil || in.Lng == nil {
		return ErrNoPosition
	}
	if *in.Lat < -90 || *in.Lat > 90 || *in.Lng < -180 || *in.Lng > 180 {
		return fmt.Errorf("lat %g lng %g: %w", *in.Lat, *in.Lng, ErrCoordinateRange)
	}
	return nil
}

func boolDigit(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func (in LandInput) payload() map[string]any {
	p := map[string]any{
		"title":               in.Title,
		"location":            in.Location,
		"size":                in.Size,
		"price_per_unit_kobo": in.PricePerUnitKobo,
		"total_units":         in.TotalUnits,
		"description":         in.Description,
		"is_available":        boolDigit(in.IsAvailable),
	}
	if in.Polygon != nil {
		p["coordinates"] = in.Polygon
	} else {
		p["lat"] = *in.Lat
		p["lng"] = *in.Lng
	}
	return p
}

func (in LandInput) scalarFields() [][2]string {
	return [][2]string{
		{"title", in.Title},
		{"location", in.Location},
		{"size", formatFloat(in.Size)},
		{"price_per_unit_kobo", strconv.FormatInt(in.PricePerUnitKobo, 10)},
		{"total_units", strconv.Itoa(in.TotalUnits)},
		{"description", in.Description},
		{"is_available", strconv.Itoa(boolDigit(in.IsAvailable))},
	}
}

func imageFiles(files []api.FormFile) []api.FormFile {
	out := make([]api.FormFile, len(files))
	for i, f := range files {
		f.Field = "images[]"
		out[i] = f
	}
	return out
}

func resultMessage(raw json.RawMessage, fallback string) string {
	if msg, ok := api.Lookup(raw, "message"); ok {
		return msg
	}
	return fallback
}

// AdminLands lists every listing including unavailable ones.
func (s *Service) AdminLands(ctx context.Context) ([]Land, error) {
	var raw json.RawMessage
	if err := s.client.Get(ctx, "/lands/admin/show", &raw); err != nil {
		return nil, fmt.Errorf("admin list lands: %w", err)
	}
	lands, err := api.DecodeList[Land](raw, "data.data", "data", "lands")
	if err != nil {
		return nil, fmt.Errorf("admin list lands: %w", err)
	}
	return lands, nil
}

// CreateLand publishes a new listing. Images switch the request to
// multipart with the polygon flattened into bracketed fields.
func (s *Service) CreateLand(ctx context.Context, in LandInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	var raw json.RawMessage
	const path = "/lands/admin/create"
	if len(in.Images) == 0 {
		if err := s.client.Post(ctx, path, in.payload(), &raw); err != nil {
			return "", fmt.Errorf("create land: %w", err)
		}
		return resultMessage(raw, "Land created successfully"), nil
	}
	fields := in.scalarFields()
	if in.Polygon != nil {
		fields = append(fields, in.Polygon.formFields()...)
	} else {
		fields = append(fields, [2]string{"lat", formatFloat(*in.Lat)}, [2]string{"lng", formatFloat(*in.Lng)})
	}
	if err := s.client.PostMultipart(ctx, path, fields, imageFiles(in.Images), &raw); err != nil {
		return "", fmt.Errorf("create land: %w", err)
	}
	return resultMessage(raw, "Land created successfully"), nil
}

// UpdateLand edits a listing. The current listing is fetched first so total
// units never drop below what has been sold.
func (s *Service) UpdateLand(ctx context.Context, id string, in LandInput) (string, error) {
	if err := in.Validate(); err != nil {
		return "", err
	}
	current, err := s.Land(ctx, id)
	if err != nil {
		return "", err
	}
	if sold := current.SoldUnits(); in.TotalUnits < sold {
		return "", fmt.Errorf("%w (%d sold)", ErrUnitsBelowSold, sold)
	}

	path := "/lands/admin/" + api.PathEscape(id)
	var raw json.RawMessage
	if len(in.Images) == 0 && len(in.RemoveImages) == 0 {
		if err := s.client.Post(ctx, path, in.payload(), &raw); err != nil {
			return "", fmt.Errorf("update land %s: %w", id, err)
		}
		return resultMessage(raw, "Land updated successfully"), nil
	}

	fields := append([][2]string{{"_method", "POST"}}, in.scalarFields()...)
	if in.Polygon != nil {
		enc, err := json.Marshal(in.Polygon)
		if err != nil {
			return "", fmt.Errorf("update land %s: %w", id, err)
		}
		fields = append(fields, [2]string{"coordinates", string(enc)})
	} else {
		fields = append(fields, [2]string{"lat", formatFloat(*in.Lat)}, [2]string{"lng", formatFloat(*in.Lng)})
	}
	for _, imgID := range in.RemoveImages {
		fields = append(fields, [2]string{"remove_images[]", imgID})
	}
	if err := s.client.PostMultipart(ctx, path, fields, imageFiles(in.Images), &raw); err != nil {
		return "", fmt.Errorf("update land %s: %w", id, err)
	}
	return resultMessage(raw, "Land updated successfully"), nil
}

// SetPrice records a new unit price effective on date (YYYY-MM-DD).
func (s *Service) SetPrice(ctx context.Context, id string, kobo int64, date string) (string, error) {
	date = strings.TrimSpace(date)
	if kobo <= 0 || date == "" {
		return "", ErrPriceDate
	}
	if _, err := time.Parse(PriceDateLayout, date); err != nil {
		return "", fmt.Errorf("price date %q: want YYYY-MM-DD", date)
	}
	body := map[string]any{"price_per_unit_kobo": kobo, "price_date": date}
	var raw json.RawMessage
	if err := s.client.Patch(ctx, "/lands/admin/"+api.PathEscape(id)+"/price", body, &raw); err != nil {
		return "", fmt.Errorf("set price of land %s: %w", id, err)
	}
	return resultMessage(raw, "Price updated successfully"), nil
}

// SetAvailability enables or disables a listing for trading.
func (s *Service) SetAvailability(ctx context.Context, id string, enabled bool) (string, error) {
	action, fallback := "disable", "Land disabled"
	if enabled {
		action, fallback = "enable", "Land enabled"
	}
	var raw json.RawMessage
	if err := s.client.Patch(ctx, "/lands/admin/"+api.PathEscape(id)+"/"+action, nil, &raw); err != nil {
		return "", fmt.Errorf("%s land %s: %w", action, id, err)
	}
	return resultMessage(raw, fallback), nil
}
