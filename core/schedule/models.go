package schedule

import "context"

// Slot is one hourly row of a suggested Monday to Friday timetable.
type Slot struct {
	Time      string `json:"time"` // eg. "09:00 AM - 10:00 AM"
	Monday    string `json:"monday,omitempty"`
	Tuesday   string `json:"tuesday,omitempty"`
	Wednesday string `json:"wednesday,omitempty"`
	Thursday  string `json:"thursday,omitempty"`
	Friday    string `json:"friday,omitempty"`
}

type Suggestion struct {
	Analysis string `json:"analysis"`
	Schedule []Slot `json:"schedule"`
}

// Summary counts scans per weekday name, then hour ("00" - "23"), then department.
type Summary map[string]map[string]map[string]int

// Model is a language model able to complete a prompt with a JSON document.
type Model interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
