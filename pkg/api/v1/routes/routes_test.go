package routes

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{name: "health", got: HealthCheckURL(), want: "/health"},
		{name: "list jobs", got: GetJobsURL(nil), want: "/api/v1/jobs"},
		{name: "list jobs with query", got: GetJobsURL(url.Values{"limit": {"5"}}), want: "/api/v1/jobs?limit=5"},
		{name: "get job", got: GetJobURL("abc"), want: "/api/v1/jobs/abc"},
		{name: "create job", got: CreateJobURL(), want: "/api/v1/jobs"},
		{name: "stats", got: GetStatsURL(), want: "/api/v1/stats"},
		{name: "stream", got: StreamJobsURL(), want: "/api/v1/ws"},
		{name: "root keeps its slash", got: BuildURL(Root, nil, nil), want: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestBuildURL_UnknownRoute(t *testing.T) {
	assert.Empty(t, BuildURL("Nope", nil, nil))
}
