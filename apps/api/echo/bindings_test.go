package echoapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/vericlock/vericlock/core"
)

func newQueryContext(query string) echo.Context {
	req := httptest.NewRequest(http.MethodGet, "/?"+query, nil)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestOrdering_Bind(t *testing.T) {
	tests := []struct {
		query string
		want  []core.DBOrdering
	}{
		{"", nil},
		{"ordering=name", []core.DBOrdering{{Field: "name", Ascending: true}}},
		{"ordering=-created_at,%20name,,-", []core.DBOrdering{
			{Field: "created_at"},
			{Field: "name", Ascending: true},
		}},
	}
	for _, tt := range tests {
		ord := new(Ordering)
		ord.Bind(newQueryContext(tt.query))
		if len(ord.Orderings) != len(tt.want) {
			t.Errorf("Bind(%q) = %v; want %v", tt.query, ord.Orderings, tt.want)
			continue
		}
		for i := range tt.want {
			if ord.Orderings[i] != tt.want[i] {
				t.Errorf("Bind(%q) = %v; want %v", tt.query, ord.Orderings, tt.want)
				break
			}
		}
	}
}

func TestBindTime(t *testing.T) {
	loc := time.FixedZone("CAT", 2*60*60)
	tests := []struct {
		name    string
		query   string
		want    time.Time
		wantErr bool
	}{
		{"absent", "", time.Time{}, false},
		{"day", "from=2024-03-11", time.Date(2024, 3, 11, 0, 0, 0, 0, loc), false},
		{"rfc3339", "from=2024-03-11T09:30:00Z", time.Date(2024, 3, 11, 9, 30, 0, 0, time.UTC), false},
		{"garbage", "from=yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got time.Time
			err := bindTime(newQueryContext(tt.query), "from", loc, &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("bindTime() error = %v; wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(tt.want) {
				t.Errorf("bindTime() = %v; want %v", got, tt.want)
			}
		})
	}

	t.Run("field error", func(t *testing.T) {
		var got time.Time
		err := bindTime(newQueryContext("to=nope"), "to", loc, &got)
		vErr, ok := err.(*core.ValidationError)
		if !ok || len(vErr.Fields) != 1 || vErr.Fields[0].Field != "to" {
			t.Errorf("bindTime() error = %#v; want a field error on \"to\"", err)
		}
	})
}

func TestBindMonth(t *testing.T) {
	var got time.Time
	if err := bindMonth(newQueryContext("month=2024-02"), "month", time.UTC, &got); err != nil {
		t.Fatalf("bindMonth() error = %v", err)
	}
	if want := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("bindMonth() = %v; want %v", got, want)
	}
	if err := bindMonth(newQueryContext("month=2024-02-01"), "month", time.UTC, &got); err == nil {
		t.Error("bindMonth() accepted a day")
	}
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin", nil, "", true},
		{"same host", nil, "http://example.com", true},
		{"other host", nil, "http://evil.test", false},
		{"allowed", []string{"http://app.test"}, "http://app.test", true},
		{"wildcard", []string{"*"}, "http://evil.test", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/live", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if got := originChecker(tt.allowed)(req); got != tt.want {
				t.Errorf("originChecker(%v)(%q) = %v; want %v", tt.allowed, tt.origin, got, tt.want)
			}
		})
	}
}
