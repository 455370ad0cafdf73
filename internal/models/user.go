package models

import "github.com/uptrace/bun"

// User is the slice of the users collaborator the ticketing core needs.
// Registration, sessions and profile CRUD live outside this service;
// requests carry these fields in token claims, async flows read the row.
type User struct {
	bun.BaseModel `bun:"table:users"`

	ID      string `bun:"id,pk" json:"id"`
	Name    string `bun:"name" json:"name"`
	Email   string `bun:"email" json:"email"`
	CPF     string `bun:"cpf" json:"cpf"`
	Phone   string `bun:"phone" json:"phone,omitempty"`
	IsStaff bool   `bun:"is_staff" json:"is_staff"`
}
