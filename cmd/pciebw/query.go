package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"pcie-bw/internal/server"
)

var (
	// Query command flags
	queryServer    string
	querySize      int
	queryAllowance int
	querySweep     bool
	querySample    int
	queryTimeout   time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query a running pciebw server",
	Long: `Ask a pciebw server for the row of one transfer size, or for its sampled
sweep, and print the result as JSON.

Examples:
  pciebw query --size 256
  pciebw query --server host:50051 --size 1500 --allowance 0
  pciebw query --sweep --sample 128`,
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVarP(&queryServer, "server", "s", "localhost:50051", "Server address")
	queryCmd.Flags().IntVar(&querySize, "size", 0, "Transfer size to evaluate")
	queryCmd.Flags().IntVar(&queryAllowance, "allowance", -1, "Header allowance (default from server profile)")
	queryCmd.Flags().BoolVar(&querySweep, "sweep", false, "Request the sampled sweep instead of one size")
	queryCmd.Flags().IntVar(&querySample, "sample", -1, "Sweep row stride (default from server profile)")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 10*time.Second, "Request timeout")
}

func runQuery(cmd *cobra.Command, args []string) error {
	if !querySweep && querySize <= 0 {
		return fmt.Errorf("--size must be positive, or use --sweep")
	}

	conn, err := grpc.NewClient(queryServer, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", queryServer, err)
	}
	defer conn.Close()
	client := server.NewClient(conn)

	ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
	defer cancel()

	var result interface{}
	if querySweep {
		result, err = client.Sweep(ctx, querySample)
	} else {
		result, err = client.Evaluate(ctx, querySize, queryAllowance)
	}
	if err != nil {
		return describeRPCError(err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

// describeRPCError flattens BadRequest details into the error message
func describeRPCError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		if br, ok := d.(*errdetails.BadRequest); ok && len(br.GetFieldViolations()) > 0 {
			return fmt.Errorf("%s: %s (%s)", st.Code(), st.Message(), br.GetFieldViolations()[0].GetField())
		}
	}
	return fmt.Errorf("%s: %s", st.Code(), st.Message())
}
