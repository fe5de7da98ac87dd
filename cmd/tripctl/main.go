// Package main tripctl 命令行客户端
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trip-planner/internal/client"
)

const defaultServer = "http://localhost:8080"

var (
	serverURL string
	asJSON    bool
	poll      pollFlags
)

// pollFlags 轮询相关参数
type pollFlags struct {
	interval    time.Duration
	maxAttempts int
	timeout     time.Duration
}

func (p pollFlags) options() client.PollOptions {
	return client.PollOptions{
		Interval:    p.interval,
		MaxAttempts: p.maxAttempts,
		Deadline:    p.timeout,
	}
}

var rootCmd = &cobra.Command{
	Use:   "tripctl",
	Short: "Trip planner CLI",
	Long: `tripctl submits trip planning requests to a trip-planner server
and polls for the assembled plan.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(waitCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	server := os.Getenv("TRIP_SERVER")
	if server == "" {
		server = defaultServer
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", server, "trip-planner server URL (env TRIP_SERVER)")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print raw JSON")

	defaults := client.DefaultPollOptions()
	for _, cmd := range []*cobra.Command{planCmd, waitCmd} {
		cmd.Flags().DurationVar(&poll.interval, "interval", defaults.Interval, "polling interval")
		cmd.Flags().IntVar(&poll.maxAttempts, "max-attempts", defaults.MaxAttempts, "maximum status checks")
		cmd.Flags().DurationVar(&poll.timeout, "timeout", 0, "overall deadline (0 = none)")
	}
}

func newClient() *client.Client {
	return client.New(serverURL)
}
