package models

import (
	"io"
	"time"
)

// Donation is an accepted textile donation. PhotoPaths keeps the generated
// storage names in submission order and is never empty.
type Donation struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"ownerId"`
	Quantity    string    `json:"quantity"`
	Category    string    `json:"category"`
	Condition   string    `json:"condition"`
	Description string    `json:"description"`
	Address     string    `json:"address"`
	Contact     string    `json:"contact"`
	LocationLat *float64  `json:"locationLat,omitempty"`
	LocationLon *float64  `json:"locationLon,omitempty"`
	PhotoPaths  []string  `json:"photoPaths"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DonationForm is the descriptive part of a submission as received from the
// client, before validation.
type DonationForm struct {
	Quantity    string
	Category    string
	Condition   string
	Description string
	Address     string
	Contact     string
	LocationLat *float64
	LocationLon *float64
}

// Attachment is one uploaded photo. Content is read at most once.
type Attachment struct {
	OriginalName string
	ContentType  string
	Size         int64
	Content      io.Reader
}
