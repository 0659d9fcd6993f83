package store

import "time"

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Roles        []string
	CreatedAt    time.Time
}

// CatalogueItem is a row of one of the reference tables (grades,
// population grades, thematic lines, experience states).
type CatalogueItem struct {
	ID   int64  `json:"id"`
	Code string `json:"code,omitempty"`
	Name string `json:"name"`
}
