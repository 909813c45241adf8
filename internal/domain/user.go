package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleMCP   Role = "mcp"
	RoleAdmin Role = "admin"
)

// User is an MCP operator account.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Phone        string    `json:"phone,omitempty"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

func (u *User) Owner() Owner {
	return MCPOwner(u.ID)
}
