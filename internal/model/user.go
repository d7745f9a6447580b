package model

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// UserPublic is the shape returned to clients (no credential material).
type UserPublic struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (u *User) ToPublic() UserPublic {
	return UserPublic{ID: u.ID, Username: u.Username}
}

// InsertUser is a User before the store has assigned an id.
type InsertUser struct {
	Username     string
	PasswordHash string
}
