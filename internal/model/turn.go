// Package model defines domain types for kaiwastats turns and statistics.
package model

import (
	"strings"
	"time"
)

// Turn represents one user-message/bot-response exchange with a device.
// Turns are immutable once appended to the conversation log.
type Turn struct {
	ID          string    `json:"id"`
	DeviceID    string    `json:"device_id"`
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Timestamp   time.Time `json:"timestamp"`
	Location    string    `json:"location,omitempty"`
}

// Keyword is a classified keyword extracted from conversational text.
// Keywords are derived per analysis run and never persisted independently.
type Keyword struct {
	Text     string
	Category string
	Weight   int
}

// DeviceInfo describes a registered physical device.
type DeviceInfo struct {
	DeviceID         string    `json:"device_id"`
	Name             string    `json:"name"`
	MACAddress       string    `json:"mac_address,omitempty"`
	Location         string    `json:"location,omitempty"`
	FirstSeen        time.Time `json:"first_seen"`
	LastSeen         time.Time `json:"last_seen"`
	TotalConnections int       `json:"total_connections"`
}

// DeviceID derives the canonical device identifier from a MAC address and
// device name. Colons are stripped and spaces replaced so the ID is safe
// as a key in URLs and file names.
func DeviceID(macAddress, name string) string {
	id := strings.ToUpper(macAddress) + "_" + name
	id = strings.ReplaceAll(id, ":", "")
	id = strings.ReplaceAll(id, " ", "_")
	return id
}
