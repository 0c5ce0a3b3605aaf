package schedule

import (
	"strings"
	"testing"
	"time"

	"github.com/vericlock/vericlock/core/attendance"
)

func TestSummarize(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	logs := []attendance.Log{
		{DeviceID: "gate", Timestamp: time.Date(2024, 3, 11, 3, 40, 0, 0, time.UTC)}, // Monday 09:10 IST
		{DeviceID: "gate", Timestamp: time.Date(2024, 3, 11, 3, 50, 0, 0, time.UTC)},
		{DeviceID: "lab", Timestamp: time.Date(2024, 3, 11, 3, 55, 0, 0, time.UTC)},
		{DeviceID: "gone", Timestamp: time.Date(2024, 3, 11, 20, 0, 0, 0, time.UTC)}, // Tuesday 01:30 IST
	}
	got := Summarize(logs, map[string]string{"gate": "CSE", "lab": "EEE"}, ist)

	if n := got["Monday"]["09"]["CSE"]; n != 2 {
		t.Errorf(`Summarize()["Monday"]["09"]["CSE"] = %d, want 2`, n)
	}
	if n := got["Monday"]["09"]["EEE"]; n != 1 {
		t.Errorf(`Summarize()["Monday"]["09"]["EEE"] = %d, want 1`, n)
	}
	if n := got["Tuesday"]["01"][unknownDepartment]; n != 1 {
		t.Errorf(`Summarize()["Tuesday"]["01"]["Unknown"] = %d, want 1`, n)
	}
	if len(got) != 2 {
		t.Errorf("Summarize() days = %d, want 2", len(got))
	}
}

func TestParseSuggestion(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		wantErr  bool
		wantSlot string
	}{
		{
			name:     "plain json",
			answer:   `{"analysis": "CSE peaks at 9", "schedule": [{"time": "09:00 AM - 10:00 AM", "monday": "CSE"}]}`,
			wantSlot: "CSE",
		},
		{
			name:     "fenced json",
			answer:   "Here you go:\n```json\n{\"analysis\": \"ok\", \"schedule\": [{\"time\": \"10:00 AM - 11:00 AM\", \"monday\": \"EEE\"}]}\n```",
			wantSlot: "EEE",
		},
		{name: "empty", answer: "", wantErr: true},
		{name: "not json", answer: "I cannot help with that.", wantErr: true},
		{name: "broken json", answer: `{"analysis": "ok", "schedule": [}`, wantErr: true},
		{name: "empty object", answer: `{}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSuggestion(tt.answer)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSuggestion() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got.Schedule) != 1 || got.Schedule[0].Monday != tt.wantSlot {
				t.Errorf("ParseSuggestion() = %+v", got)
			}
		})
	}
}

func TestPrompt(t *testing.T) {
	prompt, err := Prompt(Summary{"Monday": {"09": {"CSE": 2}}})
	if err != nil {
		t.Fatalf("Prompt() error = %v", err)
	}
	for _, want := range []string{`"Monday"`, `"09"`, `"CSE": 2`, "9 AM to 5 PM"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt() does not contain %q", want)
		}
	}
}
