package domain

import (
	"errors"
	"net/mail"
	"strings"
	"time"
)

type Client struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Company   string    `json:"company,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClientInput carries the mutable client fields for create and update.
type ClientInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Company string `json:"company"`
}

func (in ClientInput) Normalize() (ClientInput, error) {
	out := ClientInput{
		Name:    strings.TrimSpace(in.Name),
		Email:   strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:   strings.TrimSpace(in.Phone),
		Company: strings.TrimSpace(in.Company),
	}
	if out.Name == "" {
		return ClientInput{}, WrapError(ErrInvalidInput, "validate client", errors.New("name is required"))
	}
	if out.Email == "" {
		return ClientInput{}, WrapError(ErrInvalidInput, "validate client", errors.New("email is required"))
	}
	if _, err := mail.ParseAddress(out.Email); err != nil {
		return ClientInput{}, WrapError(ErrInvalidInput, "validate client", err)
	}
	return out, nil
}
