package orders

import (
	"strconv"
	"strings"
	"time"
)

// Order type values as stored by the backend.
const (
	TypeTable    = "table"
	TypeDelivery = "delivery"
	TypeCounter  = "counter"
	TypeTakeout  = "takeout"
)

// Order is a remote order pending printing. Orders are owned by the
// backend; the agent never mutates them locally.
type Order struct {
	ID              string     `json:"id"`
	OrderNumber     *int64     `json:"order_number"`
	OrderType       string     `json:"order_type"`
	TableNumber     *int64     `json:"table_number"`
	CustomerName    string     `json:"customer_name"`
	DeliveryPhone   string     `json:"delivery_phone"`
	DeliveryAddress string     `json:"delivery_address"`
	Notes           string     `json:"notes"`
	Total           float64    `json:"total"`
	DeliveryFee     float64    `json:"delivery_fee"`
	CreatedAt       string     `json:"created_at"`
	Items           []LineItem `json:"order_items"`
}

// LineItem is a single line of an order.
type LineItem struct {
	ProductName  string  `json:"product_name"`
	Quantity     int     `json:"quantity"`
	ProductPrice float64 `json:"product_price"`
	Notes        string  `json:"notes"`
}

// Qty returns the item quantity, defaulting to 1 when the backend
// sent zero or null.
func (li LineItem) Qty() int {
	if li.Quantity <= 0 {
		return 1
	}
	return li.Quantity
}

// Extension returns quantity times unit price.
func (li LineItem) Extension() float64 {
	return float64(li.Qty()) * li.ProductPrice
}

// DisplayNumber returns the human-facing order number. When the backend
// did not assign one, the first 8 characters of the order ID are used,
// upper-cased.
func (o Order) DisplayNumber() string {
	if o.OrderNumber != nil {
		return strconv.FormatInt(*o.OrderNumber, 10)
	}
	id := o.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToUpper(id)
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// CreatedTime parses the created_at timestamp. The backend is not
// consistent about fractional seconds or zone suffixes, so several
// layouts are tried; ok is false when none match.
func (o Order) CreatedTime() (t time.Time, ok bool) {
	s := strings.TrimSpace(o.CreatedAt)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
