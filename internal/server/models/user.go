// Package models holds the server's persisted records. Note bodies and data
// keys only ever appear here in encrypted form.
package models

import "time"

type User struct {
	ID        string
	Username  string
	CreatedAt time.Time
}
