package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/celestiaorg/jobscheduler/pkg/api/v1/client"
	"github.com/celestiaorg/jobscheduler/pkg/api/v1/routes"
)

// flag names
const (
	flagServerAddress = "server-address"
)

// environment variable names
const (
	envServerAddress = "JOBSCHED_SERVER_ADDRESS"
)

var (
	// apiClient is the shared API client instance
	apiClient client.Client
	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
)

// initClient initializes the API client
func initClient() error {
	// Tests install their own client
	if apiClient != nil {
		return nil
	}

	opts := client.DefaultOptions()
	opts.BaseURL = serverAddress

	var err error
	apiClient, err = client.NewClient(opts)
	return err
}

func init() {
	// PersistentPreRunE handles the env var override.
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "a", routes.DefaultBaseURL, "Address of the job scheduler API server (env: "+envServerAddress+")")

	RootCmd.AddCommand(GetJobsCmd())
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "jobsched",
	Short:         "jobsched - A command line interface for the job scheduler API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		// Flag > Env Var > Default
		if !cmd.Flags().Changed(flagServerAddress) {
			if envAddr := os.Getenv(envServerAddress); envAddr != "" {
				serverAddress = envAddr
			}
		}

		if serverAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}
		return initClient()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}
