package models

import "time"

type User struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Gender     string    `json:"gender" db:"gender"`
	UniqueCode string    `json:"uniqueCode" db:"unique_code"`
	Avatar     *string   `json:"avatar,omitempty" db:"avatar"`
	IsBanned   bool      `json:"-" db:"is_banned"`
	IsOnline   bool      `json:"isOnline" db:"is_online"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// PublicProfile is the subset of a user shown to a matched partner.
type PublicProfile struct {
	Name       string  `json:"name"`
	Gender     string  `json:"gender"`
	UniqueCode string  `json:"uniqueCode"`
	Avatar     *string `json:"avatar,omitempty"`
}

func (u *User) Profile() PublicProfile {
	return PublicProfile{
		Name:       u.Name,
		Gender:     u.Gender,
		UniqueCode: u.UniqueCode,
		Avatar:     u.Avatar,
	}
}
