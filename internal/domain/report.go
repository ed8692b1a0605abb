package domain

import "time"

// Report is an audit record filed by one ride participant against the other.
type Report struct {
	ID             string
	RideID         string
	ReporterID     string
	ReportedUserID string
	ReporterRole   Role
	Reason         string
	IsResolved     bool
	CreatedAt      time.Time
}
