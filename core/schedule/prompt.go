package schedule

import (
	"bytes"
	"encoding/json"
	"text/template"
)

var promptTmpl = template.Must(template.New("schedule").Parse(`You are an expert assistant specializing in academic scheduling for a university.
Your task is to analyze summarized student attendance data and propose an optimal weekly class schedule.

The goal is to maximize student attendance by scheduling classes for different departments at times when students
from those departments are historically most present.

Here is the summarized attendance data, showing attendance counts per department for each day of the week and each hour of the day:
{{.}}

Please perform the following steps:
1. Analyze the provided summarized data to identify peak attendance times for each department.
2. Note any patterns, such as which days have the highest attendance or if attendance drops off at certain times for specific departments.
3. Based on your analysis, create a 5-day (Monday to Friday) weekly schedule with hourly time slots from 9 AM to 5 PM.
4. Assign departments to time slots where they have the highest attendance. Avoid scheduling conflicts.
5. Provide a brief text summary of your analysis, explaining the reasoning for your schedule proposal.
6. Return only a JSON object of the form:
{"analysis": "...", "schedule": [{"time": "09:00 AM - 10:00 AM", "monday": "...", "tuesday": "...", "wednesday": "...", "thursday": "...", "friday": "..."}]}
`))

// Prompt renders the model prompt for the given summary.
func Prompt(summary Summary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err = promptTmpl.Execute(&buf, string(data)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
