package test

import (
	"net"
	"time"

	"github.com/celestiaorg/jobscheduler/internal/app"
	"github.com/celestiaorg/jobscheduler/pkg/api/v1/client"
	"github.com/celestiaorg/jobscheduler/pkg/api/v1/handlers"
)

// testClientTimeout is the timeout for test API client requests
const testClientTimeout = 5 * time.Second

// SetupServer starts the fiber application on a random local port and
// points the API client at it. A real listener is used so the websocket
// stream can be exercised.
func SetupServer(suite *Suite) {
	suite.App = app.NewApp(app.Options{
		JobHandler:    handlers.NewJobHandler(suite.JobService),
		StreamHandler: handlers.NewStreamHandler(suite.Broadcaster, suite.heartbeatInterval),
		Gatherer:      suite.Registry,
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	suite.Require().NoError(err, "Failed to open test listener")
	go func() {
		_ = suite.App.Listener(ln)
	}()
	suite.BaseURL = "http://" + ln.Addr().String()

	apiClient, err := client.NewClient(&client.Options{
		BaseURL: suite.BaseURL,
		Timeout: testClientTimeout,
	})
	suite.Require().NoError(err, "Failed to create API client")
	suite.APIClient = apiClient
}
