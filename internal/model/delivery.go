package model

type DeliveryMethod string

const (
	DeliveryMethodDelivery DeliveryMethod = "delivery"
	DeliveryMethodPickup   DeliveryMethod = "pickup"
)

func (m DeliveryMethod) Valid() bool {
	switch m {
	case DeliveryMethodDelivery, DeliveryMethodPickup:
		return true
	default:
		return false
	}
}

// DeliveryData 配送表單暫存，從配送頁帶到付款頁再帶進訂單
type DeliveryData struct {
	Country        string         `json:"country"`
	DeliveryMethod DeliveryMethod `json:"deliveryMethod"`
	Name           string         `json:"name"`
	LastName       string         `json:"lastName"`
	Address        string         `json:"address"`
	Apartment      string         `json:"apartment,omitempty"`
	City           string         `json:"city"`
	Province       string         `json:"province,omitempty"`
	PostalCode     string         `json:"postalCode"`
	PhoneNumber    string         `json:"phoneNumber"`
}
