package checkout

import (
	"regexp"
	"strings"

	"github.com/RoyceAzure/lab/storefront/internal/model"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidatePayment 信用卡需要卡號、持卡人、有效期限、CVC；paypal / google-pay 需要 email
func ValidatePayment(p model.PaymentDetails) error {
	switch p.Method {
	case model.PaymentMethodCreditCard:
		for _, f := range []struct{ name, value string }{
			{"cardNumber", p.CardNumber},
			{"cardName", p.CardName},
			{"expiry", p.Expiry},
			{"cvc", p.CVC},
		} {
			if err := required(f.name, f.value); err != nil {
				return err
			}
		}
		return nil
	case model.PaymentMethodPayPal, model.PaymentMethodGooglePay:
		if !emailPattern.MatchString(strings.TrimSpace(p.Email)) {
			return &ValidationError{Field: "email", Message: "must be a valid email address"}
		}
		return nil
	default:
		return &ValidationError{Field: "paymentMethod", Message: "must be one of credit-card, paypal, google-pay"}
	}
}

// ValidateDelivery 自取只需要聯絡資料，宅配另外需要地址
func ValidateDelivery(d *model.DeliveryData) error {
	if d == nil {
		return &ValidationError{Field: "deliveryData", Message: "delivery information is required"}
	}
	if !d.DeliveryMethod.Valid() {
		return &ValidationError{Field: "deliveryMethod", Message: "must be delivery or pickup"}
	}
	fields := []struct{ name, value string }{
		{"name", d.Name},
		{"lastName", d.LastName},
		{"phoneNumber", d.PhoneNumber},
	}
	if d.DeliveryMethod == model.DeliveryMethodDelivery {
		fields = append(fields, []struct{ name, value string }{
			{"address", d.Address},
			{"city", d.City},
			{"postalCode", d.PostalCode},
			{"country", d.Country},
		}...)
	}
	for _, f := range fields {
		if err := required(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}
