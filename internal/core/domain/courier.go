package domain

import "time"

const (
	RoleCourier  = "courier"
	RoleCustomer = "customer"
	RoleOps      = "ops"
)

// CourierCredential is a courier device allowed to report locations.
type CourierCredential struct {
	ID         string    `json:"id"`
	CourierID  string    `json:"courier_id"`
	SecretHash string    `json:"-"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
