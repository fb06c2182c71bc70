package models

import "time"

// Medication is the minimal shape the auth core needs from the medication collaborator.
type Medication struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	DrugName  string    `json:"drugName"`
	Dosage    string    `json:"dosage"`
	Frequency string    `json:"frequency"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
