package models

import "time"

// Activity is an audit-trail row written by background jobs, never by the
// request path directly.
type Activity struct {
	Base       `bson:",inline"`
	UserID     string    `json:"user_id"     bson:"user_id"`
	Action     string    `json:"action"      bson:"action"`
	IP         string    `json:"ip"          bson:"ip,omitempty"`
	Browser    string    `json:"browser"     bson:"browser,omitempty"`
	OS         string    `json:"os"          bson:"os,omitempty"`
	DeviceType string    `json:"device_type" bson:"device_type,omitempty"`
	Location   string    `json:"location"    bson:"location,omitempty"`
	Timestamp  time.Time `json:"timestamp"   bson:"timestamp"`
}

// Activity actions recorded by the auth flows.
const (
	ActivitySignup        = "signup"
	ActivityLogin         = "login"
	ActivityLogout        = "logout"
	ActivityPasswordReset = "password-reset"
)

const ActivityCollection = "activities"
