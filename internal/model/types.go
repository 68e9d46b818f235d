package model

import (
	"strings"
	"time"
)

// StoreType tags a point of interest and the reminders that target it.
type StoreType string

const (
	StoreTypeConvenience StoreType = "convenience"
	StoreTypePharmacy    StoreType = "pharmacy"
)

// Valid reports whether t is one of the known store types.
func (t StoreType) Valid() bool {
	switch t {
	case StoreTypeConvenience, StoreTypePharmacy:
		return true
	}
	return false
}

// ParseStoreType accepts the backend's spelling variants ("Pharmacy", " convenience ").
func ParseStoreType(s string) (StoreType, bool) {
	t := StoreType(strings.ToLower(strings.TrimSpace(s)))
	return t, t.Valid()
}

// Reminder is a saved intent: notify me near any store of StoreType.
type Reminder struct {
	ID              string    `json:"id"`
	StoreType       StoreType `json:"store_type"`
	Title           string    `json:"title"`
	Memo            string    `json:"memo,omitempty"`
	TriggerDistance float64   `json:"trigger_distance"`
	IsActive        bool      `json:"is_active"`
}

// ReminderPatch is a partial update sent to the reminder repository.
type ReminderPatch struct {
	IsActive *bool `json:"is_active,omitempty"`
}

// Deactivate returns the patch that turns a reminder off.
func Deactivate() ReminderPatch {
	f := false
	return ReminderPatch{IsActive: &f}
}

// Store is a candidate point of interest returned by a store directory.
type Store struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	StoreType StoreType `json:"store_type" yaml:"store_type"`
	Latitude  float64   `json:"latitude" yaml:"latitude"`
	Longitude float64   `json:"longitude" yaml:"longitude"`
	// DistanceM is the distance from the last directory query centre, when known.
	DistanceM *float64 `json:"distance_m,omitempty" yaml:"distance_m,omitempty"`
}

// Sample is one position fix from a location source.
type Sample struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Altitude  *float64  `json:"altitude,omitempty"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Accuracy is the requested fix accuracy of a sampling profile.
type Accuracy string

const (
	AccuracyLow  Accuracy = "low"
	AccuracyHigh Accuracy = "high"
)

// Profile describes how a location source should sample.
type Profile struct {
	Name         string        `json:"name"`
	Accuracy     Accuracy      `json:"accuracy"`
	MinInterval  time.Duration `json:"min_interval"`
	MinDistanceM float64       `json:"min_distance_m"`
}

// Notification is a user-visible alert handed to a notification sink.
type Notification struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data,omitempty"`
}

// Mode is the engine's monitoring mode.
type Mode string

const (
	ModeCoarse  Mode = "coarse"
	ModePrecise Mode = "precise"
)

// ActivityTag classifies a recorded location sample.
type ActivityTag string

const (
	ActivityStationary ActivityTag = "stationary"
	ActivityWalking    ActivityTag = "walking"
	ActivityInTransit  ActivityTag = "in_transit"
)
