package models

import "time"

// User is an account holder.
type User struct {
	Base          `bson:",inline"`
	Email         string     `json:"email"           bson:"email"`
	Name          string     `json:"name"            bson:"name"`
	Password      string     `json:"-"               bson:"password"`
	IsVerified    bool       `json:"is_verified"     bson:"is_verified"`
	Avatar        string     `json:"avatar"          bson:"avatar,omitempty"`
	Bio           string     `json:"bio"             bson:"bio,omitempty"`
	Provider      string     `json:"provider"        bson:"provider,omitempty"`
	ProviderUID   string     `json:"-"               bson:"provider_uid,omitempty"`
	LastLoginTime *time.Time `json:"last_login_time" bson:"last_login_time,omitempty"`
	LastLoginIP   string     `json:"-"               bson:"last_login_ip,omitempty"`
}

// UserCollection is the mongo collection name.
const UserCollection = "users"
