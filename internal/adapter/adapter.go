package adapter

import (
	"context"

	"github.com/karanuppal/halo/internal/domain"
)

// Vendor identifiers recorded on drafts.
const (
	VendorAmazonMock    = "AMAZON_MOCK"
	VendorAmazonBrowser = "AMAZON_BROWSER"
	VendorMockBooking   = "MOCK_BOOKING"
	VendorResyBrowser   = "RESY_BROWSER"
	VendorMockSubs      = "MOCK_SUBS"
)

// DefaultTimeWindowCount is the number of appointment windows a booking
// draft offers.
const DefaultTimeWindowCount = 3

// ReorderQuote is the priced result of ReorderAdapter.BuildDraft.
type ReorderQuote struct {
	Items               []domain.PricedItem
	EstimatedTotalCents int64
	DeliveryWindow      string
	PaymentMethodMasked string
	Warnings            []string
}

// OrderResult is the outcome of a placed order.
type OrderResult struct {
	ReceiptID  string
	TotalCents int64
	Summary    string
}

// ReorderAdapter prices and places household orders.
type ReorderAdapter interface {
	Vendor() string
	BuildDraft(ctx context.Context, householdID string, items []domain.OrderItem) (ReorderQuote, error)
	Execute(ctx context.Context, householdID string, items []domain.PricedItem, expectedTotalCents int64) (OrderResult, error)
}

// BookingRequest carries the resolved inputs for a booking draft.
type BookingRequest struct {
	VendorName         string
	ServiceType        string
	PriceEstimateCents int64
	Params             domain.Blob
}

// BookingQuote is the result of BookingAdapter.BuildDraft.
type BookingQuote struct {
	VendorName              string
	ServiceType             string
	PriceEstimateCents      int64
	TimeWindows             []domain.TimeWindow
	SelectedTimeWindowIndex int
	Warnings                []string
}

// BookingResult is the outcome of a booked appointment.
type BookingResult struct {
	ConfirmationID      string
	Summary             string
	ExternalReferenceID string
}

// BookingAdapter offers and books appointment windows.
type BookingAdapter interface {
	Vendor() string
	BuildDraft(ctx context.Context, householdID string, req BookingRequest) (BookingQuote, error)
	Execute(ctx context.Context, householdID string, draft *domain.BookingDraft) (BookingResult, error)
}
