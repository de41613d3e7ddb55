package models

// Contact is an address-book entry owned by a user.
type Contact struct {
	Base     `bson:",inline"`
	OwnerID  string   `json:"-"         bson:"owner_id"`
	Name     string   `json:"name"      bson:"name"`
	Email    string   `json:"email"     bson:"email,omitempty"`
	Phone    string   `json:"phone"     bson:"phone,omitempty"`
	Company  string   `json:"company"   bson:"company,omitempty"`
	JobTitle string   `json:"job_title" bson:"job_title,omitempty"`
	Address  string   `json:"address"   bson:"address,omitempty"`
	Note     string   `json:"note"      bson:"note,omitempty"`
	Avatar   string   `json:"avatar"    bson:"avatar,omitempty"`
	Starred  bool     `json:"starred"   bson:"starred"`
	LabelIDs []string `json:"label_ids" bson:"label_ids,omitempty"`
}

// Label groups contacts for one user.
type Label struct {
	Base    `bson:",inline"`
	OwnerID string `json:"-"     bson:"owner_id"`
	Name    string `json:"name"  bson:"name"`
	Color   string `json:"color" bson:"color,omitempty"`
}

// Feedback is a free-form message a user files about the product.
type Feedback struct {
	Base    `bson:",inline"`
	OwnerID string `json:"-"       bson:"owner_id"`
	Subject string `json:"subject" bson:"subject"`
	Message string `json:"message" bson:"message"`
}

const (
	ContactCollection  = "contacts"
	LabelCollection    = "labels"
	FeedbackCollection = "feedbacks"
)
