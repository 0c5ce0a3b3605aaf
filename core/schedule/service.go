package schedule

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vericlock/vericlock/core"
	"github.com/vericlock/vericlock/core/attendance"
	"github.com/vericlock/vericlock/core/device"
)

const (
	unknownDepartment = "Unknown"
	noDataAnalysis    = "There is no attendance data available to analyze. Please check back after some attendance has been logged."
)

// ErrInvalidSuggestion is returned when the model answer is not a schedule.
var ErrInvalidSuggestion = errors.New("the model did not return a valid schedule")

type (
	Service interface {
		Suggest(ctx context.Context) (Suggestion, error)
	}

	service struct {
		attSvc attendance.Service
		dvcSvc device.Service
		model  Model
		loc    *time.Location
	}
)

var _ Service = (*service)(nil)

func NewService(attSvc attendance.Service, dvcSvc device.Service, model Model, conf *core.Config) Service {
	return &service{
		attSvc: attSvc,
		dvcSvc: dvcSvc,
		model:  model,
		loc:    conf.Location(),
	}
}

// Summarize groups logs by weekday, hour & department in loc.
// The department is the current one of the log's device; logs of deleted devices fall under "Unknown".
func Summarize(logs []attendance.Log, departments map[string]string, loc *time.Location) Summary {
	summary := make(Summary)
	for _, log := range logs {
		ts := log.Timestamp.In(loc)
		day, hour := ts.Weekday().String(), ts.Format("15")
		dept, ok := departments[log.DeviceID]
		if !ok || dept == "" {
			dept = unknownDepartment
		}

		if summary[day] == nil {
			summary[day] = make(map[string]map[string]int)
		}
		if summary[day][hour] == nil {
			summary[day][hour] = make(map[string]int)
		}
		summary[day][hour][dept]++
	}
	return summary
}

// ParseSuggestion extracts the suggestion from a model answer, tolerating markdown fences & surrounding text.
func ParseSuggestion(answer string) (Suggestion, error) {
	start, end := strings.Index(answer, "{"), strings.LastIndex(answer, "}")
	if start < 0 || end < start {
		return Suggestion{}, ErrInvalidSuggestion
	}
	var sugg Suggestion
	if err := json.Unmarshal([]byte(answer[start:end+1]), &sugg); err != nil {
		return Suggestion{}, errors.Wrap(ErrInvalidSuggestion, err.Error())
	}
	if sugg.Analysis == "" && len(sugg.Schedule) == 0 {
		return Suggestion{}, ErrInvalidSuggestion
	}
	if sugg.Schedule == nil {
		sugg.Schedule = []Slot{}
	}
	return sugg, nil
}

func (svc *service) Suggest(ctx context.Context) (Suggestion, error) {
	devices, err := svc.dvcSvc.Query(ctx, nil)
	if err != nil {
		return Suggestion{}, errors.Wrap(err, "querying devices")
	}
	departments := make(map[string]string, len(devices))
	for _, dvc := range devices {
		departments[dvc.ID] = dvc.Department
	}

	logs, err := svc.attSvc.Query(ctx, nil, nil)
	if err != nil {
		return Suggestion{}, errors.Wrap(err, "querying attendance logs")
	}
	if len(logs) == 0 {
		return Suggestion{Analysis: noDataAnalysis, Schedule: []Slot{}}, nil
	}

	prompt, err := Prompt(Summarize(logs, departments, svc.loc))
	if err != nil {
		return Suggestion{}, errors.Wrap(err, "rendering prompt")
	}
	answer, err := svc.model.Complete(ctx, prompt)
	if err != nil {
		return Suggestion{}, errors.Wrap(err, "asking model")
	}
	return ParseSuggestion(answer)
}
