package domain

import "time"

type UserProfile struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	PictureURL  string    `json:"pictureUrl"`
	LastActive  time.Time `json:"lastActive"`
}
