package models

import "time"

type User struct {
	ID          int64     `json:"id" bson:"id"`
	Username    string    `json:"username" bson:"username"`
	Email       string    `json:"email" bson:"email"`
	PhotoURL    *string   `json:"photoURL" bson:"photoURL,omitempty"`
	DisplayName string    `json:"displayName" bson:"displayName"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// AuthResult is returned by login and registration.
type AuthResult struct {
	User    User   `json:"user"`
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}
