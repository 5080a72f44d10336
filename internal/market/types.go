package market

import (
	"github.com/alanjade/growthctl/internal/api"
)

// Geometry is a GeoJSON geometry as stored on a land. Only polygons carry a
// ring list; points use Land.Lat and Land.Lng.
type Geometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates,omitempty"`
}

// Image is an uploaded listing photo.
type Image struct {
	ID  api.ID `json:"id"`
	URL string `json:"url"`
}

// Land is a listing whose units can be bought and sold.
type Land struct {
	ID               api.ID      `json:"id"`
	Title            string      `json:"title"`
	Location         string      `json:"location"`
	Description      string      `json:"description"`
	Size             api.Number  `json:"size"`
	PricePerUnitKobo api.Kobo    `json:"price_per_unit_kobo"`
	TotalUnits       int         `json:"total_units"`
	AvailableUnits   int         `json:"available_units"`
	IsAvailable      api.Flag    `json:"is_available"`
	Lat              *api.Number `json:"lat"`
	Lng              *api.Number `json:"lng"`
	Coordinates      *Geometry   `json:"coordinates"`
	Images           []Image     `json:"images"`
}

// SoldUnits is the number of units already held by investors.
func (l Land) SoldUnits() int {
	if l.TotalUnits < l.AvailableUnits {
		return 0
	}
	return l.TotalUnits - l.AvailableUnits
}

// HasPolygon reports whether the land is drawn as a polygon.
func (l Land) HasPolygon() bool {
	return l.Coordinates != nil && len(l.Coordinates.Coordinates) > 0
}

// OwnedLand is one row of the user's portfolio.
type OwnedLand struct {
	LandID       api.ID     `json:"land_id"`
	LandName     string     `json:"land_name"`
	UnitsOwned   int        `json:"units_owned"`
	CurrentValue api.Amount `json:"current_value"`
}

// Transaction is a wallet or land movement. Amounts are naira.
type Transaction struct {
	ID        api.ID     `json:"id"`
	Type      string     `json:"type"`
	Amount    api.Amount `json:"amount"`
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	Land      string     `json:"land"`
	Units     int        `json:"units"`
	Date      string     `json:"date"`
}

// Stats are the dashboard totals. Amounts are naira.
type Stats struct {
	Balance            api.Amount `json:"balance"`
	TotalInvested      api.Amount `json:"total_invested"`
	TotalWithdrawn     api.Amount `json:"total_withdrawn"`
	PendingWithdrawals api.Amount `json:"pending_withdrawals"`
	LandsOwned         int        `json:"lands_owned"`
	UnitsOwned         int        `json:"units_owned"`
}

// ProfitLossPercent compares balance with the amount invested. Nothing
// invested reports zero.
func (s Stats) ProfitLossPercent() float64 {
	if s.TotalInvested == 0 {
		return 0
	}
	return float64(s.Balance-s.TotalInvested) / float64(s.TotalInvested) * 100
}

// PortfolioSummary is the valuation of everything the user holds.
type PortfolioSummary struct {
	CurrentValueKobo    api.Kobo   `json:"current_portfolio_value_kobo"`
	TotalInvestedKobo   api.Kobo   `json:"total_invested_kobo"`
	TotalProfitLossKobo api.Kobo   `json:"total_profit_loss_kobo"`
	ProfitLossPercent   api.Amount `json:"profit_loss_percent"`
}

// Receipt is returned by purchase and sale.
type Receipt struct {
	Message   string `json:"message"`
	Reference string `json:"reference"`
}

// DepositResult tells the user where to complete payment.
type DepositResult struct {
	PaymentURL     string     `json:"payment_url"`
	Reference      string     `json:"reference"`
	TransactionFee api.Amount `json:"transaction_fee"`
	TotalAmount    api.Amount `json:"total_amount"`
}
