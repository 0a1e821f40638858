package model

import "time"

type Feedback struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	ManagerID   int64     `json:"manager_id"`
	Message     string    `json:"message"`
	CreatedAt   time.Time `json:"created_at"`
	UserName    string    `json:"user_name,omitempty"`
	ManagerName string    `json:"manager_name,omitempty"`
}

// LogEntry is one row of the user-visible activity log.
type LogEntry struct {
	ID        int64          `json:"id"`
	UserID    *int64         `json:"user_id"`
	Action    string         `json:"action"`
	Meta      map[string]any `json:"meta"`
	IPAddress string         `json:"ip_address"`
	CreatedAt time.Time      `json:"created_at"`
}
