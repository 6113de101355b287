// Package models holds the server's persistence rows that are not sync
// records (those live in internal/records).
package models

import "time"

type User struct {
	ID           string
	UserName     string
	PasswordHash []byte
	CreatedAt    time.Time
}
