package model

type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "credit-card"
	PaymentMethodPayPal     PaymentMethod = "paypal"
	PaymentMethodGooglePay  PaymentMethod = "google-pay"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodPayPal, PaymentMethodGooglePay:
		return true
	default:
		return false
	}
}

// PaymentDetails 付款表單，只用於驗證，不會儲存也不會送出
type PaymentDetails struct {
	Method     PaymentMethod `json:"method"`
	CardNumber string        `json:"cardNumber,omitempty"`
	CardName   string        `json:"cardName,omitempty"`
	Expiry     string        `json:"expiry,omitempty"`
	CVC        string        `json:"cvc,omitempty"`
	Email      string        `json:"email,omitempty"`
}
