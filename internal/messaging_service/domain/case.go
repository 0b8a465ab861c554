package domain

import "github.com/google/uuid"

// Case is the SAV case a conversation belongs to. Cases are owned by the
// external case-management service; this service only reads the fields it
// needs to gate and route messages.
type Case struct {
	ID            uuid.UUID `json:"id"`
	ShopID        uuid.UUID `json:"shop_id"`
	CaseNumber    string    `json:"case_number"`
	Status        string    `json:"status"`
	CaseType      string    `json:"case_type"`
	ClientName    string    `json:"client_name"`
	ClientPhone   string    `json:"client_phone"`
	TrackingToken string    `json:"tracking_token"`
}

// HasClientPhone reports whether an SMS can be addressed to the case's client.
func (c *Case) HasClientPhone() bool {
	return c.ClientPhone != ""
}

// HasTrackingToken reports whether the case has a public tracking link.
func (c *Case) HasTrackingToken() bool {
	return c.TrackingToken != ""
}
