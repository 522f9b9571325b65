package models

import (
	"time"

	"gorm.io/gorm"
)

type User struct {
	gorm.Model
	Username  string `gorm:"unique;not null"`
	Email     string
	FirstName string
	LastName  string
	Avatar    string
}

// Token is the opaque credential handed out on login. A user holds at most one.
type Token struct {
	Key       string `gorm:"primaryKey;size:40"`
	UserID    uint   `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}
