package offices

import "time"

type Office struct {
	ID           int64
	Name         string
	Headquarters bool
	Email        string
	Active       bool
	CreatedAt    time.Time
}
