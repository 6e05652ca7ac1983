package payments

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/inlane-funnel/internal/functions"
)

var gatewayTracer = otel.Tracer("inlane.internal.payments.gateway")

const (
	initiatePaymentFunction = "initiate-payment"
	verifyPaymentFunction   = "verify-payment"
)

// InitiateRequest is the body sent to the payment-initiation function.
type InitiateRequest struct {
	LeadID            string `json:"leadId,omitempty"`
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	CustomerArea      string `json:"customerArea"`
	HasDrivingLicense bool   `json:"hasDrivingLicense"`
	Amount            int    `json:"amount"`
}

// InitiateResponse is the gateway handoff returned by the initiation function.
type InitiateResponse struct {
	GatewayURL    string            `json:"gatewayURL"`
	FormData      map[string]string `json:"formData"`
	TransactionID string            `json:"transactionId"`
}

// VerifyResponse is the decrypted callback returned by verify-payment.
type VerifyResponse struct {
	ResponseCode    string `json:"ResponseCode"`
	ResponseMessage string `json:"ResponseMessage"`
	TransactionID   string `json:"TransactionId"`
}

// Gateway talks to the hosted payment functions.
type Gateway interface {
	Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error)
	Verify(ctx context.Context, encData string) (*VerifyResponse, error)
}

// FunctionGateway implements Gateway over the functions client.
type FunctionGateway struct {
	invoker functions.Invoker
}

func NewFunctionGateway(invoker functions.Invoker) *FunctionGateway {
	if invoker == nil {
		panic("payments: functions invoker required")
	}
	return &FunctionGateway{invoker: invoker}
}

func (g *FunctionGateway) Initiate(ctx context.Context, req InitiateRequest) (*InitiateResponse, error) {
	ctx, span := gatewayTracer.Start(ctx, "payments.initiate")
	defer span.End()
	span.SetAttributes(
		attribute.String("inlane.lead_id", req.LeadID),
		attribute.Int("inlane.amount", req.Amount),
	)

	var resp InitiateResponse
	if err := g.invoker.Invoke(ctx, initiatePaymentFunction, req, &resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("payments: initiate: %w", err)
	}
	resp.GatewayURL = strings.TrimSpace(resp.GatewayURL)
	return &resp, nil
}

func (g *FunctionGateway) Verify(ctx context.Context, encData string) (*VerifyResponse, error) {
	ctx, span := gatewayTracer.Start(ctx, "payments.verify")
	defer span.End()

	var resp VerifyResponse
	if err := g.invoker.Invoke(ctx, verifyPaymentFunction, map[string]string{"EncData": encData}, &resp); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("payments: verify: %w", err)
	}
	span.SetAttributes(
		attribute.String("inlane.transaction_id", resp.TransactionID),
		attribute.String("inlane.response_code", resp.ResponseCode),
	)
	return &resp, nil
}
