package controllers

import (
	"testing"

	"github.com/google/uuid"

	pkgerrors "github.com/haiminhle/storefront-backend/pkg/errors"
)

func TestParseUUIDFieldRejectsMalformedValue(t *testing.T) {
	_, err := parseUUIDField("not-a-uuid", "shipperId")
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	id, err := parseUUIDField(uuid.NewString(), "shipperId")
	if err != nil {
		t.Fatalf("well-formed value rejected: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected parsed id")
	}
}

func TestSKURefRejectsMalformedProductID(t *testing.T) {
	req := skuRequest{
		ProductID: "nope",
		VariantID: uuid.NewString(),
		SizeID:    uuid.NewString(),
	}
	if _, err := req.ref(); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
