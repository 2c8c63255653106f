package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"marketchat/internal/domain/entity"
	"marketchat/internal/infrastructure/firebase"
	"marketchat/pkg/response"
)

// UserSeeder stores user profiles in a development store.
type UserSeeder interface {
	Save(user *entity.User)
}

// DevTokenHandler seeds users into the in-memory store and hands out matching dev tokens.
type DevTokenHandler struct {
	users UserSeeder
}

func NewDevTokenHandler(users UserSeeder) *DevTokenHandler {
	return &DevTokenHandler{
		users: users,
	}
}

type devBankAccountRequest struct {
	BankName      string `json:"bank_name" validate:"required"`
	AccountName   string `json:"account_name" validate:"required"`
	AccountNumber string `json:"account_number" validate:"required"`
	Branch        string `json:"branch"`
}

type devUserRequest struct {
	ID          string                 `json:"id" validate:"required"`
	Username    string                 `json:"username" validate:"required"`
	Email       string                 `json:"email" validate:"omitempty,email"`
	Role        string                 `json:"role" validate:"omitempty,oneof=user admin"`
	BankAccount *devBankAccountRequest `json:"bank_account"`
}

func (h *DevTokenHandler) CreateUser(c echo.Context) error {
	var req devUserRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	role := req.Role
	if role == "" {
		role = "user"
	}

	now := time.Now()
	user := &entity.User{
		ID:        req.ID,
		Email:     req.Email,
		Username:  req.Username,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.BankAccount != nil {
		user.BankAccount = &entity.BankAccount{
			BankName:      req.BankAccount.BankName,
			AccountName:   req.BankAccount.AccountName,
			AccountNumber: req.BankAccount.AccountNumber,
			Branch:        req.BankAccount.Branch,
		}
	}
	h.users.Save(user)

	return response.Created(c, map[string]interface{}{
		"token": firebase.DevTokenPrefix + user.ID,
		"user":  user,
	})
}
