// Package domain contains the playground records and the errors shared by every layer.
// Entities carry no behaviour beyond small derived helpers.
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen   = 128
	MaxUsernameLen = 64
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUserIDEmpty     = errors.New("user id empty")
	ErrUserIDTooLong   = errors.New("user id too long")
	ErrInvalidRole     = errors.New("invalid role")
)

type UserID string

// Role decides what a participant may see and do inside a room.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	return r == RoleTeacher || r == RoleStudent
}

// User is the identity context handed over by the auth collaborator.
type User struct {
	ID    UserID `json:"userId"`
	Name  string `json:"userName"`
	Email string `json:"userEmail"`
	Role  Role   `json:"userRole"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id, name, email string, role Role) (User, error) {
	u := User{ID: UserID(strings.TrimSpace(id)), Email: strings.TrimSpace(email), Role: role}
	if u.ID == "" {
		return User{}, ErrUserIDEmpty
	}
	if len(u.ID) > MaxUserIDLen {
		return User{}, ErrUserIDTooLong
	}
	if !role.Valid() {
		return User{}, ErrInvalidRole
	}
	if err := u.SetName(name); err != nil {
		return User{}, err
	}
	return u, nil
}

func (u *User) SetName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	u.Name = name
	return nil
}
