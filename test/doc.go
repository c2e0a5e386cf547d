// Package test provides infrastructure and utilities for integration testing
// of the job scheduler.
//
// A Suite runs the whole system in-process: a file-backed SQLite database,
// the in-memory work queue, the update broadcaster, a pool of workers and the
// fiber application listening on a random local port. Tests drive it through
// the real API client and the websocket stream.
//
// Example Usage:
//
//	func TestExample(t *testing.T) {
//	    suite := test.NewTestSuite(t)
//	    defer suite.Cleanup()
//
//	    job, err := suite.APIClient.CreateJob(suite.Context(), req)
//	    // ...
//	    suite.WaitForStatus(job.ID.String(), models.JobStatusCompleted)
//	}
//
// Workers, the executor and the heartbeat interval are configured with
// Option values; WithWorkers(0) keeps submitted jobs QUEUED.
package test
