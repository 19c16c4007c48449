package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/karanuppal/halo/internal/domain"
)

// Sidecar error codes.
const (
	codeBotCheck     = "bot_check"
	codeLinkRequired = "link_required"
	codeTotalDrift   = "total_drift"
	codeUnavailable  = "unavailable"
)

// DefaultMaxTotalDriftRatio is the largest relative difference allowed between
// a draft's estimate and the checkout total.
const DefaultMaxTotalDriftRatio = 0.05

// RemoteConfig configures the browser-automation adapters.
type RemoteConfig struct {
	// BaseURL of the automation sidecar, e.g. "http://127.0.0.1:7310".
	BaseURL string

	// StorageStateDir holds one linked-session file per household,
	// named "<household_id>.json".
	StorageStateDir string

	// DryRun stops at checkout without placing the order.
	DryRun bool

	// MaxTotalDriftRatio bounds |actual-expected|/expected at checkout.
	MaxTotalDriftRatio float64

	// RequestsPerSecond limits calls to the sidecar. Zero means unlimited.
	RequestsPerSecond float64

	// WindowCount is the number of windows a booking draft must offer.
	WindowCount int

	HTTPClient *http.Client
}

type automationClient struct {
	vendor   string
	label    string
	site     string
	baseURL  string
	stateDir string
	http     *http.Client
	limiter  *rate.Limiter
}

func newAutomationClient(vendor, label, site string, cfg RemoteConfig) *automationClient {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Minute}
	}
	return &automationClient{
		vendor:   vendor,
		label:    label,
		site:     site,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		stateDir: cfg.StorageStateDir,
		http:     hc,
		limiter:  rate.NewLimiter(limit, 1),
	}
}

// storageStatePath returns the household's linked-session file or a
// link-required error when it does not exist.
func (c *automationClient) storageStatePath(householdID string) (string, error) {
	name := householdID + ".json"
	if householdID == "" || !filepath.IsLocal(name) || strings.ContainsAny(householdID, `/\`) {
		return "", NewLinkRequiredError(c.vendor, c.label, name)
	}
	path := filepath.Join(c.stateDir, name)
	if _, err := os.Stat(path); err != nil {
		return "", NewLinkRequiredError(c.vendor, c.label, path)
	}
	return path, nil
}

type sidecarError struct {
	Error struct {
		Code             string `json:"code"`
		Message          string `json:"message"`
		ExpectedTotal    int64  `json:"expected_total_cents"`
		ActualTotalCents int64  `json:"actual_total_cents"`
	} `json:"error"`
}

// post sends one JSON request to the sidecar and decodes the response,
// translating transport and sidecar failures into the error taxonomy.
func (c *automationClient) post(ctx context.Context, op string, req, resp any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return NewAdapterError(c.vendor, fmt.Sprintf("%s %s: rate limit wait: %v", c.label, op, err), err)
	}
	if c.baseURL == "" {
		return NewAutomationUnavailableError(c.vendor, errors.New("automation URL not configured"))
	}

	body, err := json.Marshal(req)
	if err != nil {
		return NewAdapterError(c.vendor, fmt.Sprintf("%s %s: encode request: %v", c.label, op, err), err)
	}
	url := fmt.Sprintf("%s/v1/%s/%s", c.baseURL, c.site, op)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return NewAdapterError(c.vendor, fmt.Sprintf("%s %s: %v", c.label, op, err), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return NewAutomationUnavailableError(c.vendor, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return NewAdapterError(c.vendor, fmt.Sprintf("%s %s: read response: %v", c.label, op, err), err)
	}

	if httpResp.StatusCode/100 != 2 {
		return c.translate(op, httpResp.StatusCode, data)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return NewAdapterError(c.vendor, fmt.Sprintf("%s %s: decode response: %v", c.label, op, err), err)
	}
	return nil
}

func (c *automationClient) translate(op string, status int, data []byte) error {
	var se sidecarError
	_ = json.Unmarshal(data, &se)
	msg := se.Error.Message
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}

	switch se.Error.Code {
	case codeBotCheck:
		return NewBotDetectedError(c.vendor, msg)
	case codeLinkRequired:
		return NewLinkRequiredError(c.vendor, c.label, msg)
	case codeTotalDrift:
		return NewCostDriftError(c.vendor, se.Error.ExpectedTotal, se.Error.ActualTotalCents)
	case codeUnavailable:
		return NewAutomationUnavailableError(c.vendor, errors.New(msg))
	}
	if status == http.StatusServiceUnavailable {
		return NewAutomationUnavailableError(c.vendor, fmt.Errorf("status %d: %s", status, msg))
	}
	return NewAdapterError(c.vendor, fmt.Sprintf("%s browser %s failed: status %d: %s", c.label, op, status, msg), nil)
}

// DriftRatio returns |actual-expected|/expected, or 0 when expected is not
// positive.
func DriftRatio(actualCents, expectedCents int64) float64 {
	if expectedCents <= 0 {
		return 0
	}
	return math.Abs(float64(actualCents-expectedCents)) / float64(expectedCents)
}

// RemoteReorder is the AMAZON_BROWSER adapter.
type RemoteReorder struct {
	client   *automationClient
	dryRun   bool
	maxDrift float64
}

// NewRemoteReorder creates the browser-automation reorder adapter.
func NewRemoteReorder(cfg RemoteConfig) *RemoteReorder {
	drift := cfg.MaxTotalDriftRatio
	if drift <= 0 {
		drift = DefaultMaxTotalDriftRatio
	}
	return &RemoteReorder{
		client:   newAutomationClient(VendorAmazonBrowser, "Amazon", "amazon", cfg),
		dryRun:   cfg.DryRun,
		maxDrift: drift,
	}
}

func (r *RemoteReorder) Vendor() string { return VendorAmazonBrowser }

type reorderDraftRequest struct {
	HouseholdID      string             `json:"household_id"`
	StorageStatePath string             `json:"storage_state_path"`
	Items            []domain.OrderItem `json:"items"`
}

type reorderDraftResponse struct {
	Items               []domain.PricedItem `json:"items"`
	DeliveryWindow      string              `json:"delivery_window"`
	PaymentMethodMasked string              `json:"payment_method_masked"`
	Warnings            []string            `json:"warnings"`
}

// BuildDraft asks the sidecar to price each item. Items it could not price
// come back at zero and carry a warning.
func (r *RemoteReorder) BuildDraft(ctx context.Context, householdID string, items []domain.OrderItem) (ReorderQuote, error) {
	path, err := r.client.storageStatePath(householdID)
	if err != nil {
		return ReorderQuote{}, err
	}
	var resp reorderDraftResponse
	if err := r.client.post(ctx, "draft", reorderDraftRequest{
		HouseholdID:      householdID,
		StorageStatePath: path,
		Items:            items,
	}, &resp); err != nil {
		return ReorderQuote{}, err
	}

	warnings := append([]string{}, resp.Warnings...)
	priced := make([]domain.PricedItem, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.UnitPriceCents <= 0 {
			warnings = append(warnings, fmt.Sprintf("Could not determine a price for %q. Total may differ at checkout.", it.Name))
			it.UnitPriceCents = 0
		}
		it.LineTotalCents = it.UnitPriceCents * int64(it.Quantity)
		priced = append(priced, it)
	}
	return ReorderQuote{
		Items:               priced,
		EstimatedTotalCents: domain.SumLineTotals(priced),
		DeliveryWindow:      orDefault(resp.DeliveryWindow, "See Amazon"),
		PaymentMethodMasked: orDefault(resp.PaymentMethodMasked, "Amazon default"),
		Warnings:            warnings,
	}, nil
}

type checkoutRequest struct {
	HouseholdID        string              `json:"household_id"`
	StorageStatePath   string              `json:"storage_state_path"`
	Items              []domain.PricedItem `json:"items"`
	ExpectedTotalCents int64               `json:"expected_total_cents"`
	MaxTotalDriftRatio float64             `json:"max_total_drift_ratio"`
	DryRun             bool                `json:"dry_run"`
}

type checkoutResponse struct {
	ReceiptID  string `json:"receipt_id"`
	TotalCents int64  `json:"total_cents"`
	Summary    string `json:"summary"`
}

// Execute checks out the cart. The sidecar aborts before placing the order
// when the total drifts; the returned total is checked again here.
func (r *RemoteReorder) Execute(ctx context.Context, householdID string, items []domain.PricedItem, expectedTotalCents int64) (OrderResult, error) {
	path, err := r.client.storageStatePath(householdID)
	if err != nil {
		return OrderResult{}, err
	}
	var resp checkoutResponse
	if err := r.client.post(ctx, "checkout", checkoutRequest{
		HouseholdID:        householdID,
		StorageStatePath:   path,
		Items:              items,
		ExpectedTotalCents: expectedTotalCents,
		MaxTotalDriftRatio: r.maxDrift,
		DryRun:             r.dryRun,
	}, &resp); err != nil {
		return OrderResult{}, err
	}

	total := resp.TotalCents
	if total <= 0 {
		total = expectedTotalCents
	}
	if expectedTotalCents > 0 && DriftRatio(total, expectedTotalCents) > r.maxDrift {
		return OrderResult{}, NewCostDriftError(VendorAmazonBrowser, expectedTotalCents, total)
	}
	if resp.ReceiptID == "" {
		return OrderResult{}, NewAdapterError(VendorAmazonBrowser, "Amazon browser checkout returned no order number", nil)
	}
	return OrderResult{
		ReceiptID:  resp.ReceiptID,
		TotalCents: total,
		Summary:    orDefault(resp.Summary, "Order placed"),
	}, nil
}

// RemoteBooking is the RESY_BROWSER adapter.
type RemoteBooking struct {
	client      *automationClient
	windowCount int
}

// NewRemoteBooking creates the browser-automation booking adapter.
func NewRemoteBooking(cfg RemoteConfig) *RemoteBooking {
	n := cfg.WindowCount
	if n < 1 {
		n = DefaultTimeWindowCount
	}
	return &RemoteBooking{
		client:      newAutomationClient(VendorResyBrowser, "Booking", "resy", cfg),
		windowCount: n,
	}
}

func (r *RemoteBooking) Vendor() string { return VendorResyBrowser }

type availabilityRequest struct {
	HouseholdID      string      `json:"household_id"`
	StorageStatePath string      `json:"storage_state_path"`
	VendorName       string      `json:"vendor_name"`
	ServiceType      string      `json:"service_type"`
	WindowCount      int         `json:"window_count"`
	Params           domain.Blob `json:"params"`
}

type availabilityResponse struct {
	TimeWindows        []domain.TimeWindow `json:"time_windows"`
	PriceEstimateCents *int64              `json:"price_estimate_cents"`
	Warnings           []string            `json:"warnings"`
}

// BuildDraft fetches availability. The sidecar must return exactly the
// configured number of windows.
func (r *RemoteBooking) BuildDraft(ctx context.Context, householdID string, req BookingRequest) (BookingQuote, error) {
	path, err := r.client.storageStatePath(householdID)
	if err != nil {
		return BookingQuote{}, err
	}
	params := req.Params
	if params == nil {
		params = domain.Blob{}
	}
	var resp availabilityResponse
	if err := r.client.post(ctx, "availability", availabilityRequest{
		HouseholdID:      householdID,
		StorageStatePath: path,
		VendorName:       req.VendorName,
		ServiceType:      req.ServiceType,
		WindowCount:      r.windowCount,
		Params:           params,
	}, &resp); err != nil {
		return BookingQuote{}, err
	}
	if len(resp.TimeWindows) != r.windowCount {
		return BookingQuote{}, NewAdapterError(VendorResyBrowser,
			fmt.Sprintf("Booking availability returned %d time windows, want %d", len(resp.TimeWindows), r.windowCount), nil)
	}

	price := req.PriceEstimateCents
	if resp.PriceEstimateCents != nil {
		price = *resp.PriceEstimateCents
	}
	return BookingQuote{
		VendorName:              req.VendorName,
		ServiceType:             req.ServiceType,
		PriceEstimateCents:      price,
		TimeWindows:             resp.TimeWindows,
		SelectedTimeWindowIndex: 0,
		Warnings:                append([]string{}, resp.Warnings...),
	}, nil
}

type bookRequest struct {
	HouseholdID      string            `json:"household_id"`
	StorageStatePath string            `json:"storage_state_path"`
	VendorName       string            `json:"vendor_name"`
	ServiceType      string            `json:"service_type"`
	TimeWindow       domain.TimeWindow `json:"time_window"`
}

type bookResponse struct {
	ConfirmationID      string `json:"confirmation_id"`
	Summary             string `json:"summary"`
	ExternalReferenceID string `json:"external_reference_id"`
}

// Execute books the selected window.
func (r *RemoteBooking) Execute(ctx context.Context, householdID string, draft *domain.BookingDraft) (BookingResult, error) {
	path, err := r.client.storageStatePath(householdID)
	if err != nil {
		return BookingResult{}, err
	}
	var resp bookResponse
	if err := r.client.post(ctx, "book", bookRequest{
		HouseholdID:      householdID,
		StorageStatePath: path,
		VendorName:       draft.VendorName,
		ServiceType:      draft.ServiceType,
		TimeWindow:       draft.SelectedWindow(),
	}, &resp); err != nil {
		return BookingResult{}, err
	}
	if resp.ConfirmationID == "" {
		return BookingResult{}, NewAdapterError(VendorResyBrowser, "Booking returned no confirmation id", nil)
	}
	return BookingResult{
		ConfirmationID:      resp.ConfirmationID,
		Summary:             orDefault(resp.Summary, "Booked "+draft.ServiceType+" with "+draft.VendorName+"."),
		ExternalReferenceID: resp.ExternalReferenceID,
	}, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
