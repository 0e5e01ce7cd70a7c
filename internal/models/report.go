package models

import "time"

type Report struct {
	ID         string    `json:"id" db:"id"`
	ReporterID string    `json:"reporterId" db:"reporter_id"`
	ReportedID string    `json:"reportedId" db:"reported_id"`
	Reason     string    `json:"reason" db:"reason"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}
