package adapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/karanuppal/halo/internal/domain"
)

// mockCatalog prices known items; anything else costs mockDefaultPrice.
var mockCatalog = map[string]int64{
	"paper towels": 1299,
	"detergent":    1599,
	"pet food":     2499,
}

const mockDefaultPrice = 999

// MockOption configures the mock adapters.
type MockOption func(*mockConfig)

type mockConfig struct {
	now         func() time.Time
	hexID       func() string
	windowCount int
}

func defaultMockConfig() mockConfig {
	return mockConfig{
		now:         time.Now,
		hexID:       randomHex,
		windowCount: DefaultTimeWindowCount,
	}
}

// WithNow sets the clock used for booking windows and confirmation ids.
func WithNow(now func() time.Time) MockOption {
	return func(c *mockConfig) {
		c.now = now
	}
}

// WithHexID sets the source of random hex suffixes for receipt ids.
func WithHexID(fn func() string) MockOption {
	return func(c *mockConfig) {
		c.hexID = fn
	}
}

// WithWindowCount sets how many appointment windows MockBooking offers.
// Values below 1 are ignored.
func WithWindowCount(n int) MockOption {
	return func(c *mockConfig) {
		if n >= 1 {
			c.windowCount = n
		}
	}
}

func randomHex() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// MockReorder is a catalog-priced reorder adapter that never fails.
type MockReorder struct {
	cfg mockConfig
}

// NewMockReorder creates the AMAZON_MOCK adapter.
func NewMockReorder(opts ...MockOption) *MockReorder {
	cfg := defaultMockConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MockReorder{cfg: cfg}
}

func (m *MockReorder) Vendor() string { return VendorAmazonMock }

// BuildDraft prices each item from the catalog.
func (m *MockReorder) BuildDraft(_ context.Context, _ string, items []domain.OrderItem) (ReorderQuote, error) {
	priced := make([]domain.PricedItem, 0, len(items))
	for _, it := range items {
		unit, ok := mockCatalog[strings.ToLower(it.Name)]
		if !ok {
			unit = mockDefaultPrice
		}
		priced = append(priced, domain.PricedItem{
			Name:           it.Name,
			Quantity:       it.Quantity,
			UnitPriceCents: unit,
			LineTotalCents: unit * int64(it.Quantity),
		})
	}
	return ReorderQuote{
		Items:               priced,
		EstimatedTotalCents: domain.SumLineTotals(priced),
		DeliveryWindow:      "3-5 days",
		PaymentMethodMasked: "Visa •••• 4242",
		Warnings:            []string{},
	}, nil
}

// Execute "places" the order at the expected total.
func (m *MockReorder) Execute(_ context.Context, _ string, _ []domain.PricedItem, expectedTotalCents int64) (OrderResult, error) {
	return OrderResult{
		ReceiptID:  "amz_" + truncate(m.cfg.hexID(), 10),
		TotalCents: expectedTotalCents,
		Summary:    "Order placed",
	}, nil
}

// MockBooking offers fixed windows tomorrow and confirms any of them.
type MockBooking struct {
	cfg mockConfig
}

// NewMockBooking creates the MOCK_BOOKING adapter.
func NewMockBooking(opts ...MockOption) *MockBooking {
	cfg := defaultMockConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &MockBooking{cfg: cfg}
}

func (m *MockBooking) Vendor() string { return VendorMockBooking }

// BuildDraft returns the configured number of windows starting tomorrow.
func (m *MockBooking) BuildDraft(_ context.Context, _ string, req BookingRequest) (BookingQuote, error) {
	return BookingQuote{
		VendorName:              req.VendorName,
		ServiceType:             req.ServiceType,
		PriceEstimateCents:      req.PriceEstimateCents,
		TimeWindows:             TimeWindowsFrom(m.cfg.now(), m.cfg.windowCount),
		SelectedTimeWindowIndex: 0,
		Warnings:                []string{},
	}, nil
}

// Execute confirms the selected window.
func (m *MockBooking) Execute(_ context.Context, _ string, draft *domain.BookingDraft) (BookingResult, error) {
	confirmationID := "book_" + m.cfg.now().UTC().Format("20060102150405")
	w := draft.SelectedWindow()
	summary := fmt.Sprintf("Booked %s with %s. Confirmation: %s. Window: %s to %s",
		draft.ServiceType, draft.VendorName, confirmationID, w.Start, w.End)
	return BookingResult{
		ConfirmationID:      confirmationID,
		Summary:             summary,
		ExternalReferenceID: confirmationID,
	}, nil
}

// TimeWindowsFrom returns n two-hour windows on the day after now, starting
// at 09:00 UTC and three hours apart. Times are ISO-8601 with a Z suffix.
func TimeWindowsFrom(now time.Time, n int) []domain.TimeWindow {
	base := now.UTC().Truncate(time.Hour).AddDate(0, 0, 1)
	day := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, time.UTC)
	windows := make([]domain.TimeWindow, 0, n)
	for i := 0; i < n; i++ {
		start := day.Add(time.Duration(9+3*i) * time.Hour)
		windows = append(windows, domain.TimeWindow{
			Start: isoZ(start),
			End:   isoZ(start.Add(2 * time.Hour)),
		})
	}
	return windows
}

func isoZ(t time.Time) string {
	return t.Format("2006-01-02T15:04:05") + "Z"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
