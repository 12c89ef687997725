// Package store persists projects, job records and settings.
package store

import (
	"errors"
	"time"
)

var ErrProjectNotFound = errors.New("project not found")

// ProjectSummary is a listing row; it does not carry the timeline.
type ProjectSummary struct {
	Name      string    `json:"name"`
	ClipCount int       `json:"clipCount"`
	Duration  float64   `json:"duration"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Backup records one project snapshot copied to the object store.
type Backup struct {
	ID        int64     `json:"id"`
	Project   string    `json:"project"`
	ObjectKey string    `json:"objectKey"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
}

// Config keys stored in the config table.
const (
	ConfigAuthToken    = "auth_token"
	ConfigLastProject  = "last_project"
	ConfigMasterVolume = "master_volume"
	ConfigKeepOnly     = "keep_only"
)
