package models

type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleProctor UserRole = "proctor"
	RoleAdmin   UserRole = "admin"
)

// Identity is the caller as asserted by the identity provider. It is never
// persisted by this service.
type Identity struct {
	ID          string   `json:"id"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Role        UserRole `json:"role"`
}
