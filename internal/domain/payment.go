package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodPix        PaymentMethod = "PIX"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodBoleto     PaymentMethod = "BOLETO"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodPix, PaymentMethodCreditCard, PaymentMethodBoleto:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type Payment struct {
	ID      uuid.UUID       `json:"id"`
	OrderID uuid.UUID       `json:"order_id"`
	Amount  decimal.Decimal `json:"amount"`
	Method  PaymentMethod   `json:"method"`
	Status  PaymentStatus   `json:"status"`
	PaidAt  time.Time       `json:"paid_at"`
}
