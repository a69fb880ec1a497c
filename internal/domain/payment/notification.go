// internal/domain/payment/notification.go
package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// ErrInvalidSignature is returned for notifications whose signature does not
// match our server key.
var ErrInvalidSignature = errors.New("invalid payment notification signature")

// Gateway transaction statuses
const (
	TxSettlement = "settlement"
	TxCapture    = "capture"
	TxPending    = "pending"
	TxCancel     = "cancel"
	TxExpire     = "expire"
	TxDeny       = "deny"

	FraudAccept    = "accept"
	FraudChallenge = "challenge"
)

// Notification is the HTTP notification body sent by the gateway. OrderID
// carries our order number.
type Notification struct {
	TransactionID     string `json:"transaction_id" binding:"required"`
	TransactionStatus string `json:"transaction_status" binding:"required"`
	TransactionTime   string `json:"transaction_time"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
	OrderID           string `json:"order_id" binding:"required"`
	StatusCode        string `json:"status_code" binding:"required"`
	GrossAmount       string `json:"gross_amount" binding:"required"`
	SignatureKey      string `json:"signature_key" binding:"required"`
}

// Signature computes sha512(order_id + status_code + gross_amount + server_key)
// as lowercase hex.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks n against serverKey.
func VerifySignature(n *Notification, serverKey string) bool {
	if serverKey == "" || n.SignatureKey == "" {
		return false
	}
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

// settles reports whether the notification means money was received.
func (n *Notification) settles() bool {
	switch n.TransactionStatus {
	case TxSettlement:
		return true
	case TxCapture:
		return n.FraudStatus == "" || n.FraudStatus == FraudAccept
	}
	return false
}

// fails reports whether the payment attempt is over without money.
func (n *Notification) fails() bool {
	switch n.TransactionStatus {
	case TxCancel, TxExpire, TxDeny:
		return true
	}
	return false
}
