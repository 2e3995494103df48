package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	internalorders "github.com/haiminhle/storefront-backend/internal/orders"
	"github.com/haiminhle/storefront-backend/internal/payments/vnpay"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
	"github.com/haiminhle/storefront-backend/pkg/pagination"
)

type testOrdersService struct {
	createFn     func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error)
	getFn        func(ctx context.Context, id uuid.UUID) (*models.Order, error)
	transitionFn func(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error)
}

func (s *testOrdersService) Create(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
	return s.createFn(ctx, input)
}

func (s *testOrdersService) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.getFn(ctx, id)
}

func (s *testOrdersService) GetByCode(ctx context.Context, code string) (*models.Order, error) {
	return nil, nil
}

func (s *testOrdersService) GetByPaymentRef(ctx context.Context, ref string) (*models.Order, error) {
	return nil, nil
}

func (s *testOrdersService) ListByUser(ctx context.Context, userID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	return nil, "", nil
}

func (s *testOrdersService) Transition(ctx context.Context, input internalorders.TransitionInput) (*models.Order, error) {
	return s.transitionFn(ctx, input)
}

func (s *testOrdersService) ConfirmReturn(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID) (*models.Order, error) {
	return nil, nil
}

func (s *testOrdersService) ApplyCancellation(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, reason string, actorID *uuid.UUID) (*models.Order, error) {
	return nil, nil
}

func (s *testOrdersService) MarkReturned(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, actorID *uuid.UUID) error {
	return nil
}

func (s *testOrdersService) SetCancelFlag(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, open bool) error {
	return nil
}

func (s *testOrdersService) RestoreInventory(ctx context.Context, orderID uuid.UUID, actorID *uuid.UUID, reason enums.InventoryReason) error {
	return nil
}

func (s *testOrdersService) ApplyPaymentSuccess(ctx context.Context, orderID uuid.UUID, gatewayTxnID string, paidAt time.Time) (bool, error) {
	return false, nil
}

func (s *testOrdersService) ApplyPaymentFailure(ctx context.Context, orderID uuid.UUID, gatewayTxnID string, responseCode string) (bool, error) {
	return false, nil
}

type testPaymentsService struct {
	urlFn    func(ctx context.Context, order *models.Order, clientIP string) (string, error)
	returnFn func(ctx context.Context, query url.Values) (*vnpay.ReturnResult, error)
	ipnFn    func(ctx context.Context, query url.Values) vnpay.IPNResponse
}

func (s *testPaymentsService) PaymentURL(ctx context.Context, order *models.Order, clientIP string) (string, error) {
	if s.urlFn != nil {
		return s.urlFn(ctx, order, clientIP)
	}
	return "", nil
}

func (s *testPaymentsService) HandleReturn(ctx context.Context, query url.Values) (*vnpay.ReturnResult, error) {
	return s.returnFn(ctx, query)
}

func (s *testPaymentsService) HandleIPN(ctx context.Context, query url.Values) vnpay.IPNResponse {
	return s.ipnFn(ctx, query)
}

func TestCreateOrderPrepaidIncludesPaymentURL(t *testing.T) {
	userID := uuid.New()
	sku := uuid.New()
	orderID := uuid.New()

	svc := &testOrdersService{
		createFn: func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
			if input.UserID != userID {
				t.Fatalf("unexpected user %s", input.UserID)
			}
			if len(input.Items) != 1 || input.Items[0].Qty != 2 {
				t.Fatalf("unexpected items %+v", input.Items)
			}
			return &models.Order{ID: orderID, UserID: userID, Code: "ORD-000001", PaymentMethod: enums.PaymentMethodVNPay}, nil
		},
	}
	payments := &testPaymentsService{
		urlFn: func(ctx context.Context, order *models.Order, clientIP string) (string, error) {
			return "https://gateway.example/pay?ref=" + order.Code, nil
		},
	}

	body := `{
		"paymentMethod": "vnpay",
		"shippingAddress": "12 Hang Bai, Hanoi",
		"items": [{"sku": {"productId": "` + sku.String() + `", "variantId": "` + sku.String() + `", "sizeId": "` + sku.String() + `"}, "name": "Runner Mk2", "qty": 2}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = asActor(req, userID, "customer")

	resp := httptest.NewRecorder()
	CreateOrder(svc, payments, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var data struct {
		Order      models.Order `json:"order"`
		PaymentURL string       `json:"paymentUrl"`
	}
	decodeData(t, resp.Body.Bytes(), &data)
	if data.Order.ID != orderID {
		t.Fatalf("unexpected order id %s", data.Order.ID)
	}
	if !strings.Contains(data.PaymentURL, "ORD-000001") {
		t.Fatalf("payment url missing order code: %s", data.PaymentURL)
	}
}

func TestCreateOrderGatewayOutageStillCreates(t *testing.T) {
	userID := uuid.New()
	sku := uuid.NewString()

	svc := &testOrdersService{
		createFn: func(ctx context.Context, input internalorders.CreateOrderInput) (*models.Order, error) {
			return &models.Order{ID: uuid.New(), UserID: userID, Code: "ORD-000002", PaymentMethod: enums.PaymentMethodVNPay}, nil
		},
	}
	payments := &testPaymentsService{
		urlFn: func(ctx context.Context, order *models.Order, clientIP string) (string, error) {
			return "", context.DeadlineExceeded
		},
	}

	body := `{
		"paymentMethod": "vnpay",
		"shippingAddress": "12 Hang Bai, Hanoi",
		"items": [{"sku": {"productId": "` + sku + `", "variantId": "` + sku + `", "sizeId": "` + sku + `"}, "name": "Runner Mk2", "qty": 1}]
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req = asActor(req, userID, "customer")

	resp := httptest.NewRecorder()
	CreateOrder(svc, payments, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
	var data struct {
		PaymentURL string `json:"paymentUrl"`
	}
	decodeData(t, resp.Body.Bytes(), &data)
	if data.PaymentURL != "" {
		t.Fatalf("expected no payment url, got %s", data.PaymentURL)
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{"paymentMethod":"cod","shippingAddress":"somewhere","items":[]}`))
	req = asActor(req, uuid.New(), "customer")

	resp := httptest.NewRecorder()
	CreateOrder(&testOrdersService{}, &testPaymentsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if code := errorCode(t, resp.Body.Bytes()); code != "VALIDATION_ERROR" {
		t.Fatalf("unexpected error code %s", code)
	}
}

func TestGetOrderForbiddenForOtherCustomer(t *testing.T) {
	owner := uuid.New()
	orderID := uuid.New()
	svc := &testOrdersService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: orderID, UserID: owner}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = addRouteParam(req, "orderId", orderID.String())
	req = asActor(req, uuid.New(), "customer")

	resp := httptest.NewRecorder()
	GetOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusForbidden {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestGetOrderStaffBypassesOwnership(t *testing.T) {
	orderID := uuid.New()
	svc := &testOrdersService{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: orderID, UserID: uuid.New()}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+orderID.String(), nil)
	req = addRouteParam(req, "orderId", orderID.String())
	req = asActor(req, uuid.New(), "staff")

	resp := httptest.NewRecorder()
	GetOrder(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestTransitionOrderRejectsUnknownStatus(t *testing.T) {
	orderID := uuid.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/orders/"+orderID.String()+"/transition", strings.NewReader(`{"status":"teleported"}`))
	req = addRouteParam(req, "orderId", orderID.String())
	req = asActor(req, uuid.New(), "staff")

	resp := httptest.NewRecorder()
	TransitionOrder(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestTransitionOrderRejectsMalformedShipper(t *testing.T) {
	orderID := uuid.New()
	body := `{"status":"assigned_to_shipper","shipperId":"not-a-uuid"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/orders/"+orderID.String()+"/transition", strings.NewReader(body))
	req = addRouteParam(req, "orderId", orderID.String())
	req = asActor(req, uuid.New(), "staff")

	resp := httptest.NewRecorder()
	TransitionOrder(&testOrdersService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}
