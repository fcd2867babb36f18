// Package payment wraps the subscription payment gateway.
package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/rs/zerolog"
)

// Status is the normalised outcome of a gateway transaction.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Checkout describes the order sent to the gateway.
type Checkout struct {
	Reference     string
	Amount        int64
	ItemName      string
	CustomerName  string
	CustomerEmail string
}

// Session is the hosted checkout returned by the gateway.
type Session struct {
	Token       string
	RedirectURL string
}

// Transaction is the gateway's view of an order.
type Transaction struct {
	Reference         string
	Status            Status
	TransactionStatus string
	FraudStatus       string
	GrossAmount       string
}

// Gateway is implemented by payment providers.
type Gateway interface {
	CreateCheckout(ctx context.Context, checkout Checkout) (Session, error)
	TransactionStatus(ctx context.Context, reference string) (Transaction, error)
	VerifySignature(orderID, statusCode, grossAmount, signature string) bool
}

// Config configures the Midtrans client.
type Config struct {
	ServerKey  string
	Production bool
}

// Midtrans implements Gateway with Snap checkout and the Core API status endpoint.
type Midtrans struct {
	snap      snap.Client
	core      coreapi.Client
	serverKey string
	logger    zerolog.Logger
}

// NewMidtrans constructs the Midtrans gateway.
func NewMidtrans(cfg Config, logger zerolog.Logger) (*Midtrans, error) {
	if strings.TrimSpace(cfg.ServerKey) == "" {
		return nil, errors.New("midtrans server key must be provided")
	}

	env := midtrans.Sandbox
	if cfg.Production {
		env = midtrans.Production
	}

	gateway := &Midtrans{
		serverKey: cfg.ServerKey,
		logger:    logger.With().Str("component", "midtrans").Logger(),
	}
	gateway.snap.New(cfg.ServerKey, env)
	gateway.core.New(cfg.ServerKey, env)
	return gateway, nil
}

// CreateCheckout opens a Snap transaction. The SDK does not take a context, so ctx is only
// checked before the call.
func (m *Midtrans) CreateCheckout(ctx context.Context, checkout Checkout) (Session, error) {
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	if checkout.Amount <= 0 {
		return Session{}, errors.New("checkout amount must be positive")
	}

	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  checkout.Reference,
			GrossAmt: checkout.Amount,
		},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: checkout.CustomerName,
			Email: checkout.CustomerEmail,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    checkout.Reference,
				Name:  truncate(checkout.ItemName, 50),
				Price: checkout.Amount,
				Qty:   1,
			},
		},
	}

	resp, gatewayErr := m.snap.CreateTransaction(req)
	if gatewayErr != nil {
		return Session{}, fmt.Errorf("create snap transaction: %s", gatewayErr.GetMessage())
	}

	m.logger.Info().Str("reference", checkout.Reference).Msg("checkout created")
	return Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// TransactionStatus asks the gateway for the current state of the order.
func (m *Midtrans) TransactionStatus(ctx context.Context, reference string) (Transaction, error) {
	if err := ctx.Err(); err != nil {
		return Transaction{}, err
	}

	resp, gatewayErr := m.core.CheckTransaction(reference)
	if gatewayErr != nil {
		return Transaction{}, fmt.Errorf("check transaction %s: %s", reference, gatewayErr.GetMessage())
	}

	return Transaction{
		Reference:         resp.OrderID,
		Status:            MapStatus(resp.TransactionStatus, resp.FraudStatus),
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
		GrossAmount:       resp.GrossAmount,
	}, nil
}

// VerifySignature checks SHA512(order_id + status_code + gross_amount + server_key).
func (m *Midtrans) VerifySignature(orderID, statusCode, grossAmount, signature string) bool {
	return VerifySignature(m.serverKey, orderID, statusCode, grossAmount, signature)
}

// Signature computes the notification signature for the given fields.
func Signature(serverKey, orderID, statusCode, grossAmount string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature compares the expected signature in constant time.
func VerifySignature(serverKey, orderID, statusCode, grossAmount, signature string) bool {
	if signature == "" || serverKey == "" {
		return false
	}
	want := Signature(serverKey, orderID, statusCode, grossAmount)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(signature))) == 1
}

// MapStatus normalises Midtrans transaction and fraud statuses.
func MapStatus(transactionStatus, fraudStatus string) Status {
	switch strings.ToLower(transactionStatus) {
	case "settlement":
		return StatusSuccess
	case "capture":
		switch strings.ToLower(fraudStatus) {
		case "", "accept":
			return StatusSuccess
		case "challenge":
			return StatusPending
		default:
			return StatusFailed
		}
	case "deny", "cancel", "expire", "failure":
		return StatusFailed
	default:
		return StatusPending
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}
