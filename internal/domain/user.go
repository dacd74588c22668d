package domain

import "time"

type User struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	CreatedAt  time.Time
}

// DisplayName returns first and last name, falling back to the username
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		name = u.Username
	}
	return name
}

type Interaction struct {
	ID        int64
	UserID    int64
	Command   string
	Category  string
	CreatedAt time.Time
}
