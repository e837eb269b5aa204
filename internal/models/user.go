package models

import (
	"errors"
	"time"
)

// City labels used by the dashboard.
const (
	CityBucaramanga = "Bucaramanga"
	CityBogota      = "Bogotá"
)

// UserRecord is one chat interaction reconciled against its city's roster.
// It is built once from a raw row and the matcher returns a new value with the
// registration fields set; nothing mutates a record after that.
type UserRecord struct {
	UserID       int64      `json:"userId" yaml:"userId"`
	Name         string     `json:"nombre" yaml:"nombre"`
	Age          *int       `json:"edad" yaml:"edad"`
	Phone        string     `json:"celular" yaml:"celular"` // 10 digits starting with "3"
	Timestamp    time.Time  `json:"fecha" yaml:"fecha"`
	City         string     `json:"ciudad" yaml:"ciudad"`
	Registered   bool       `json:"registrado" yaml:"registrado"`
	Status       *string    `json:"estado" yaml:"estado"`
	RegisteredAt *time.Time `json:"fechaRegistro,omitempty" yaml:"fechaRegistro,omitempty"`
}

// HasPhone reports whether the record carries a normalized phone.
func (u *UserRecord) HasPhone() bool {
	return u.Phone != ""
}

// WithRegistration returns a copy of u marked as registered.
func (u UserRecord) WithRegistration(status string, registeredAt time.Time) UserRecord {
	s := status
	at := registeredAt
	u.Registered = true
	u.Status = &s
	u.RegisteredAt = &at
	return u
}

// Validate checks that all user record fields are valid
func (u *UserRecord) Validate() error {
	if u.City == "" {
		return errors.New("city must not be empty")
	}
	if u.Phone != "" && !isMobileShape(u.Phone) {
		return errors.New("phone must be 10 digits starting with 3")
	}
	if u.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if u.Age != nil && *u.Age < 0 {
		return errors.New("age must not be negative")
	}
	if u.Registered {
		if u.Phone == "" {
			return errors.New("registered user must have a phone")
		}
		if u.Status == nil {
			return errors.New("registered user must have a status")
		}
	} else if u.Status != nil || u.RegisteredAt != nil {
		return errors.New("unregistered user must not carry registration fields")
	}
	return nil
}

func isMobileShape(p string) bool {
	if len(p) != 10 || p[0] != '3' {
		return false
	}
	for i := 0; i < len(p); i++ {
		if p[i] < '0' || p[i] > '9' {
			return false
		}
	}
	return true
}
