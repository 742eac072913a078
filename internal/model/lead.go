package model

import "time"

// Lead is an ingested prospect row as seen by the duplicate detector.
type Lead struct {
	ID        string    `json:"id"`
	BatchID   string    `json:"batch_id,omitempty"`
	Plate     string    `json:"plate,omitempty"`
	Chassis   string    `json:"chassis,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	OwnerName string    `json:"owner_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
