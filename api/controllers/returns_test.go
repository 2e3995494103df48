package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/haiminhle/storefront-backend/internal/returns"
	"github.com/haiminhle/storefront-backend/pkg/db/models"
	"github.com/haiminhle/storefront-backend/pkg/enums"
)

type testReturnsService struct {
	createFn  func(ctx context.Context, input returns.CreateInput) (*models.ReturnRequest, error)
	approveFn func(ctx context.Context, input returns.ResolveInput) (*models.ReturnRequest, error)
}

func (s *testReturnsService) Create(ctx context.Context, input returns.CreateInput) (*models.ReturnRequest, error) {
	return s.createFn(ctx, input)
}

func (s *testReturnsService) Approve(ctx context.Context, input returns.ResolveInput) (*models.ReturnRequest, error) {
	return s.approveFn(ctx, input)
}

func (s *testReturnsService) Reject(ctx context.Context, input returns.ResolveInput) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) AssignShipper(ctx context.Context, input returns.AssignShipperInput) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) MarkReceived(ctx context.Context, input returns.ResolveInput) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) MarkRefunded(ctx context.Context, input returns.ResolveInput) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) Complete(ctx context.Context, input returns.ResolveInput) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) RequestCancel(ctx context.Context, requestID, requestedBy uuid.UUID) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) ConfirmCancel(ctx context.Context, input returns.ResolveInput) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) Get(ctx context.Context, id uuid.UUID) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) GetByCode(ctx context.Context, code string) (*models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.ReturnRequest, error) {
	return nil, nil
}

func (s *testReturnsService) ExpireStale(ctx context.Context) (int, error) {
	return 0, nil
}

func TestCreateReturnForwardsRefundMethod(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := &testReturnsService{
		createFn: func(ctx context.Context, input returns.CreateInput) (*models.ReturnRequest, error) {
			if input.OrderID != orderID || input.RequestedBy != userID {
				t.Fatalf("unexpected input %+v", input)
			}
			if input.RefundMethod != enums.RefundMethodBankTransfer {
				t.Fatalf("unexpected refund method %s", input.RefundMethod)
			}
			if input.BankName != "VCB" || input.BankAccount != "00110022" {
				t.Fatalf("bank details not forwarded")
			}
			return &models.ReturnRequest{ID: uuid.New(), OrderID: orderID, Code: "RR-000001"}, nil
		},
	}

	body := `{
		"orderId": "` + orderID.String() + `",
		"reason": "torn on arrival",
		"images": ["https://cdn.example/evidence/1.jpg"],
		"refundMethod": "bank_transfer",
		"bankName": "VCB",
		"bankAccount": "00110022"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", strings.NewReader(body))
	req = asActor(req, userID, "customer")

	resp := httptest.NewRecorder()
	CreateReturn(svc, testLogger())(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCreateReturnRejectsMissingImages(t *testing.T) {
	body := `{
		"orderId": "` + uuid.NewString() + `",
		"reason": "wrong size",
		"images": [],
		"refundMethod": "cash"
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", strings.NewReader(body))
	req = asActor(req, uuid.New(), "customer")

	resp := httptest.NewRecorder()
	CreateReturn(&testReturnsService{}, testLogger())(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestApproveReturnUsesActorAsResolver(t *testing.T) {
	staffID := uuid.New()
	requestID := uuid.New()
	svc := &testReturnsService{
		approveFn: func(ctx context.Context, input returns.ResolveInput) (*models.ReturnRequest, error) {
			if input.RequestID != requestID || input.ResolvedBy != staffID {
				t.Fatalf("unexpected input %+v", input)
			}
			return &models.ReturnRequest{ID: requestID, Status: enums.ReturnStatusApproved}, nil
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/staff/returns/"+requestID.String()+"/approve", strings.NewReader(`{"note":"looks valid"}`))
	req = addRouteParam(req, "returnId", requestID.String())
	req = asActor(req, staffID, "staff")

	resp := httptest.NewRecorder()
	ApproveReturn(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}
