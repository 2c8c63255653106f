package entity

import (
	"time"
)

const RoleAdmin = "admin"

// User is the read model of users/{id}; profiles are owned elsewhere.
type User struct {
	ID          string       `json:"id" firestore:"id"`
	Email       string       `json:"email" firestore:"email"`
	Username    string       `json:"username" firestore:"username"`
	DisplayName string       `json:"display_name,omitempty" firestore:"displayName,omitempty"`
	Role        string       `json:"role" firestore:"role"`
	BankAccount *BankAccount `json:"-" firestore:"bankAccount,omitempty"`
	CreatedAt   time.Time    `json:"created_at" firestore:"createdAt"`
	UpdatedAt   time.Time    `json:"updated_at" firestore:"updatedAt"`
}

func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
