package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/jashub/parcelhub/app/dto"
	businessflow "github.com/jashub/parcelhub/business_flow"
	"github.com/jashub/parcelhub/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Details any    `json:"details"`
	} `json:"error"`
}

func doRequest(t *testing.T, app *fiber.App, method, target string, body any) (*http.Response, apiEnvelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env apiEnvelope
	if json.Valid(raw) {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp, env
}

type fakeParcelFlow struct {
	err        error
	lastTN     string
	lastEmail  string
	lastActor  string
	trackCalls int
}

func (f *fakeParcelFlow) Track(_ context.Context, tn string, md *businessflow.ClientMetadata) (*dto.TrackParcelResponse, error) {
	f.trackCalls++
	f.lastTN = tn
	f.lastActor = md.Actor
	if f.err != nil {
		return nil, f.err
	}
	return &dto.TrackParcelResponse{TrackingNumber: tn, Status: "Received", Pricing: dto.PricingDTO{TotalPrice: 21}}, nil
}

func (f *fakeParcelFlow) Quote(_ context.Context, tn string, _ *businessflow.ClientMetadata) (*dto.QuoteResponse, error) {
	f.lastTN = tn
	if f.err != nil {
		return nil, f.err
	}
	return &dto.QuoteResponse{TrackingNumber: tn, Status: "Received"}, nil
}

func (f *fakeParcelFlow) ListByRecipient(_ context.Context, req *dto.ListRecipientParcelsRequest, _ *businessflow.ClientMetadata) (*dto.ListRecipientParcelsResponse, error) {
	f.lastEmail = req.RecipientEmail
	if f.err != nil {
		return nil, f.err
	}
	return &dto.ListRecipientParcelsResponse{Items: []dto.TrackParcelResponse{}, TotalDue: 26}, nil
}

func newParcelApp(flow businessflow.ParcelFlow) *fiber.App {
	h := NewParcelHandler(flow)
	app := fiber.New()
	app.Get("/api/v1/parcels/track/:trackingNumber", h.Track)
	app.Get("/api/v1/parcels/track/:trackingNumber/quote", h.Quote)
	app.Get("/api/v1/parcels", h.ListByRecipient)
	return app
}

func TestParcelHandler_Track(t *testing.T) {
	flow := &fakeParcelFlow{}
	app := newParcelApp(flow)

	resp, env := doRequest(t, app, http.MethodGet, "/api/v1/parcels/track/JT-1001", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.Equal(t, "JT-1001", flow.lastTN)

	var data dto.TrackParcelResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 21.0, data.Pricing.TotalPrice)
}

func TestParcelHandler_TrackRejectsMalformedTrackingNumber(t *testing.T) {
	flow := &fakeParcelFlow{}
	app := newParcelApp(flow)

	resp, env := doRequest(t, app, http.MethodGet, "/api/v1/parcels/track/ab", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_TRACKING_NUMBER", env.Error.Code)
	assert.Zero(t, flow.trackCalls)
}

func TestParcelHandler_TrackNotFound(t *testing.T) {
	app := newParcelApp(&fakeParcelFlow{err: businessflow.NewBusinessError("PARCEL_NOT_FOUND", "Parcel not found", businessflow.ErrParcelNotFound)})

	resp, env := doRequest(t, app, http.MethodGet, "/api/v1/parcels/track/JT-404", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "PARCEL_NOT_FOUND", env.Error.Code)
}

func TestParcelHandler_Quote(t *testing.T) {
	flow := &fakeParcelFlow{}
	app := newParcelApp(flow)

	resp, _ := doRequest(t, app, http.MethodGet, "/api/v1/parcels/track/JT-1001/quote", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "JT-1001", flow.lastTN)
}

func TestParcelHandler_ListByRecipient(t *testing.T) {
	flow := &fakeParcelFlow{}
	app := newParcelApp(flow)

	resp, env := doRequest(t, app, http.MethodGet, "/api/v1/parcels?recipient_email=ali@student.edu", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ali@student.edu", flow.lastEmail)

	var data dto.ListRecipientParcelsResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 26.0, data.TotalDue)

	resp, env = doRequest(t, app, http.MethodGet, "/api/v1/parcels", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestBusinessErrorResponse_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", businessflow.ErrParcelNotFound, http.StatusNotFound, "PARCEL_NOT_FOUND"},
		{"wrapped already collected", businessflow.NewBusinessError("X", "x", businessflow.ErrParcelAlreadyCollected), http.StatusConflict, "PARCEL_ALREADY_COLLECTED"},
		{"returned", businessflow.ErrParcelReturned, http.StatusConflict, "PARCEL_RETURNED"},
		{"lock busy", businessflow.ErrCollectionInProgress, http.StatusConflict, "COLLECTION_IN_PROGRESS"},
		{"pickup code", businessflow.ErrInvalidPickupCode, http.StatusForbidden, "INVALID_PICKUP_CODE"},
		{"receipt expired", businessflow.ErrReceiptExpired, http.StatusUnprocessableEntity, "RECEIPT_EXPIRED"},
		{"page size", businessflow.ErrInvalidPageSize, http.StatusBadRequest, "INVALID_PAGINATION"},
		{"coded internal", businessflow.NewBusinessError("EXCEL_WRITE_ERROR", "boom", errors.New("disk")), http.StatusInternalServerError, "EXCEL_WRITE_ERROR"},
		{"plain internal", errors.New("boom"), http.StatusInternalServerError, "FALLBACK"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newBaseHandler()
			app := fiber.New()
			app.Get("/", func(c fiber.Ctx) error {
				return h.BusinessErrorResponse(c, tt.err, "failed", "FALLBACK")
			})
			resp, env := doRequest(t, app, http.MethodGet, "/", nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, env.Error.Code)
		})
	}
}

func TestMetadata_CarriesActor(t *testing.T) {
	flow := &fakeParcelFlow{}
	h := NewParcelHandler(flow)
	app := fiber.New()
	app.Get("/track/:trackingNumber", func(c fiber.Ctx) error {
		c.Locals(utils.ActorKey, "admin:front-desk")
		return h.Track(c)
	})

	resp, _ := doRequest(t, app, http.MethodGet, "/track/JT-1", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "admin:front-desk", flow.lastActor)
}

func TestValidator_ParcelCategory(t *testing.T) {
	v := newValidator()

	ok := dto.ReceiveParcelRequest{
		TrackingNumber: "JT-1", RecipientName: "Ali", RecipientEmail: "ali@student.edu", CourierName: "J&T",
		Categories: []string{"Above 5kg", "March", "Fragile"},
	}
	require.NoError(t, v.Struct(&ok))

	tooLong := ok
	tooLong.Categories = []string{"this tag is far too long to be a category label"}
	assert.Error(t, v.Struct(&tooLong))

	blank := ok
	blank.Categories = []string{"  "}
	assert.Error(t, v.Struct(&blank))

	badTN := ok
	badTN.TrackingNumber = "JT 1"
	assert.Error(t, v.Struct(&badTN))
}

func TestValidator_BasePriceCents(t *testing.T) {
	v := newValidator()

	tests := []struct {
		name  string
		price float64
		valid bool
	}{
		{name: "whole", price: 7, valid: true},
		{name: "two decimals", price: 4.55, valid: true},
		{name: "binary inexact cents", price: 0.29, valid: true},
		{name: "zero", price: 0, valid: true},
		{name: "rounds to zero", price: 0.004, valid: false},
		{name: "three decimals", price: 4.555, valid: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			receive := dto.ReceiveParcelRequest{
				TrackingNumber: "JT-1", RecipientName: "Ali", RecipientEmail: "ali@student.edu", CourierName: "J&T",
				Categories: []string{"5kg"}, BasePrice: utils.ToPtr(tt.price),
			}
			update := dto.UpdateParcelRequest{UUID: parcelUUID, BasePrice: utils.ToPtr(tt.price)}
			if tt.valid {
				assert.NoError(t, v.Struct(&receive))
				assert.NoError(t, v.Struct(&update))
			} else {
				assert.Error(t, v.Struct(&receive))
				assert.Error(t, v.Struct(&update))
			}
		})
	}
}
