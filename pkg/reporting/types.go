package reporting

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// APIError is the uniform error envelope returned by the Reporting API.
type APIError struct {
	Status     int    `json:"status"`
	StatusText string `json:"statusText"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return fmt.Sprintf("reporting api %d %s", e.Status, e.StatusText)
	}
	return fmt.Sprintf("reporting api %d %s: %s", e.Status, e.StatusText, e.Message)
}

type Customer struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type Product struct {
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Inventory *int            `json:"inventory,omitempty"`
}

type Order struct {
	ID         string          `json:"id"`
	CustomerID string          `json:"customerId"`
	Total      decimal.Decimal `json:"total"`
	CreatedAt  time.Time       `json:"createdAt"`
}

type Club struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MemberCount *int   `json:"memberCount,omitempty"`
}

// member is the minimal shape shared by every *_members endpoint.
type member struct {
	ID string `json:"id"`
}
