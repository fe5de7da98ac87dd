package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/spf13/cobra"

	"trip-planner/internal/client"
	"trip-planner/internal/shared/model"
)

var planFlags struct {
	destination   string
	origin        string
	start         string
	end           string
	budget        float64
	travelers     int
	activities    []string
	accommodation string
	transport     string
	dining        string
	pace          string
}

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Submit a trip request and wait for the plan",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		payload := buildPayload(cmd)
		opts := poll.options()
		if !asJSON {
			opts.OnPoll = progressPrinter(cmd)
		}

		plan, err := newClient().PlanTrip(ctx, payload, opts)
		if err != nil {
			return err
		}
		return printPlan(cmd, plan)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show the status of a planning task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newClient().Status(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, st)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Task:     %s\n", st.TaskID)
		fmt.Fprintf(out, "Status:   %s\n", st.Status)
		if st.Stage != "" {
			fmt.Fprintf(out, "Stage:    %s\n", st.Stage)
		}
		fmt.Fprintf(out, "Progress: %d/%d\n", st.Progress, model.Stage1Size)
		if st.Error != "" {
			fmt.Fprintf(out, "Error:    %s\n", st.Error)
		}
		return nil
	},
}

var waitCmd = &cobra.Command{
	Use:   "wait <task-id>",
	Short: "Poll a planning task until it finishes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		opts := poll.options()
		if !asJSON {
			opts.OnPoll = progressPrinter(cmd)
		}
		plan, err := newClient().WaitForPlan(ctx, args[0], opts)
		if err != nil {
			return err
		}
		return printPlan(cmd, plan)
	},
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planFlags.destination, "destination", "", "destination city (required)")
	f.StringVar(&planFlags.origin, "origin", "", "origin city or IATA code")
	f.StringVar(&planFlags.start, "start", "", "start date YYYY-MM-DD (required)")
	f.StringVar(&planFlags.end, "end", "", "end date YYYY-MM-DD (required)")
	f.Float64Var(&planFlags.budget, "budget", 0, "total budget in USD (required)")
	f.IntVar(&planFlags.travelers, "travelers", 0, "number of travelers (default 1)")
	f.StringArrayVar(&planFlags.activities, "activity", nil, "activity preference, repeatable")
	f.StringVar(&planFlags.accommodation, "accommodation", "", "budget | moderate | luxury")
	f.StringVar(&planFlags.transport, "transport", "", "public | private | mixed")
	f.StringVar(&planFlags.dining, "dining", "", "fine_dining | casual | street_food | mixed")
	f.StringVar(&planFlags.pace, "pace", "", "relaxed | moderate | fast")
	planCmd.MarkFlagRequired("destination")
	planCmd.MarkFlagRequired("start")
	planCmd.MarkFlagRequired("end")
	planCmd.MarkFlagRequired("budget")
}

func buildPayload(cmd *cobra.Command) model.TripRequestPayload {
	payload := model.TripRequestPayload{
		Destination: planFlags.destination,
		Origin:      planFlags.origin,
		StartDate:   planFlags.start,
		EndDate:     planFlags.end,
		Budget:      model.Amount(strconv.FormatFloat(planFlags.budget, 'f', -1, 64)),
		Preferences: model.PreferencesPayload{
			Activities:               planFlags.activities,
			AccommodationStyle:       planFlags.accommodation,
			TransportationPreference: planFlags.transport,
			DiningPreference:         planFlags.dining,
			Pace:                     planFlags.pace,
		},
	}
	if cmd.Flags().Changed("travelers") {
		n := planFlags.travelers
		payload.Travelers = &n
	}
	return payload
}

func progressPrinter(cmd *cobra.Command) func(int, *client.StatusResponse) {
	return func(attempt int, st *client.StatusResponse) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%d] %s %s %d/%d\n", attempt, st.Status, st.Stage, st.Progress, model.Stage1Size)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printPlan 输出方案摘要
func printPlan(cmd *cobra.Command, plan *model.TripPlan) error {
	if asJSON {
		return printJSON(cmd, plan)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trip %s: %s -> %s, %s to %s, %d traveler(s)\n",
		plan.TaskID, plan.Origin, plan.Destination, plan.StartDate, plan.EndDate, plan.Travelers)
	if plan.Degraded.Degraded {
		fmt.Fprintf(out, "Note: fallback data used for %v\n", plan.Degraded.Sections)
	}

	if f := plan.Flights.Cheapest(); f != nil {
		fmt.Fprintf(out, "\nFlight:  %s %s  $%s\n", f.Airline, f.Outbound.FlightNumber, f.TotalPrice)
	}
	if h := plan.Hotels.First(); h != nil {
		fmt.Fprintf(out, "Hotel:   %s (%.1f)  $%s/night\n", h.Name, h.Rating, h.NightlyPrice)
	}

	fmt.Fprintln(out)
	for _, day := range plan.Itinerary.Days {
		fmt.Fprintf(out, "Day %d (%s)  $%s\n", day.Day, day.Date, day.Total)
		for _, a := range day.Activities {
			fmt.Fprintf(out, "  %s  %-40s %6s  $%s\n", a.Time, a.Description, a.Duration, a.EstimatedCost)
		}
	}

	b := plan.BudgetAnalysis
	fmt.Fprintf(out, "\nBudget:  $%s of $%s (%.1f%%) %s\n",
		b.Summary.TotalCost, b.Summary.TotalBudget, b.Summary.PercentUsed, b.Summary.Status)
	for _, r := range b.Recommendations {
		fmt.Fprintf(out, "  - [%s] %s (save $%s)\n", r.Category, r.Message, r.EstimatedSavings)
	}
	return nil
}
