package storage

import "time"

// Identity is the reward service user bound to a client origin
type Identity struct {
	Origin    string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}
