package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/RoyceAzure/lab/storefront/internal/model"
	"github.com/shopspring/decimal"
)

// ReceiptSender 訂單收據通知，失敗不影響訂單本身
type ReceiptSender interface {
	SendReceipt(ctx context.Context, r Receipt) error
}

type ReceiptLine struct {
	Name     string
	Quantity int
	Subtotal decimal.Decimal
}

// Receipt 收據內容
type Receipt struct {
	OrderID       string
	ShopName      string
	CustomerName  string
	Email         string
	CreatedAt     string
	Lines         []ReceiptLine
	Total         decimal.Decimal
	PaymentMethod model.PaymentMethod
	Delivery      *model.DeliveryData
}

func NewReceipt(shopName string, user model.User, order model.Order) Receipt {
	lines := make([]ReceiptLine, 0, len(order.Items))
	for _, item := range order.Items {
		lines = append(lines, ReceiptLine{Name: item.Name, Quantity: item.Quantity, Subtotal: item.Subtotal()})
	}
	return Receipt{
		OrderID:       order.ID,
		ShopName:      shopName,
		CustomerName:  user.Name,
		Email:         user.Email,
		CreatedAt:     order.CreatedAt,
		Lines:         lines,
		Total:         order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
		Delivery:      order.DeliveryData,
	}
}

func (r Receipt) Subject() string {
	return fmt.Sprintf("%s order confirmation %s", r.ShopName, r.OrderID)
}

var receiptTmpl = template.Must(template.New("receiptHTML").Parse(receiptTemplate))

// RenderReceiptHTML 產生 HTML 格式的收據
func RenderReceiptHTML(r Receipt) (string, error) {
	var buf bytes.Buffer
	if err := receiptTmpl.Execute(&buf, r); err != nil {
		return "", fmt.Errorf("執行 HTML 模板失敗: %w", err)
	}
	return buf.String(), nil
}

const receiptTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.ShopName}} order confirmation</title>
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #111; color: white; padding: 20px; text-align: center; }
        .content { padding: 30px; background-color: #f9f9f9; }
        table { width: 100%; border-collapse: collapse; }
        td { padding: 6px 0; border-bottom: 1px solid #e5e5e5; }
        .total { font-weight: bold; text-align: right; padding-top: 12px; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>Thank you for your order, {{.CustomerName}}</h1>
        </div>

        <div class="content">
            <p>Order <strong>{{.OrderID}}</strong>{{if .CreatedAt}} placed on {{.CreatedAt}}{{end}}</p>
            <table>
                {{range .Lines}}
                <tr>
                    <td>{{.Name}} x {{.Quantity}}</td>
                    <td style="text-align: right;">{{.Subtotal.StringFixed 2}}</td>
                </tr>
                {{end}}
            </table>
            <p class="total">Total: {{.Total.StringFixed 2}}</p>
            <p>Payment method: {{.PaymentMethod}}</p>
            {{with .Delivery}}
            <p>
                {{if eq .DeliveryMethod "pickup"}}Pickup by{{else}}Deliver to{{end}}
                {{.Name}} {{.LastName}}<br>
                {{if .Address}}{{.Address}}{{if .Apartment}}, {{.Apartment}}{{end}}<br>{{end}}
                {{if .City}}{{.City}} {{.PostalCode}}<br>{{end}}
                {{.Country}}
            </p>
            {{end}}
        </div>

        <div class="footer">
            <p>This email was sent automatically, please do not reply.</p>
            <p>&copy; {{.ShopName}}</p>
        </div>
    </div>
</body>
</html>
`
