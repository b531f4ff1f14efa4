package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	runContext string
	runActor   string
	runPayload string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runContext, "context", "", "Operation context as a JSON object")
	runCmd.Flags().StringVar(&runActor, "actor", "", "Actor recorded in the audit trail")
	runCmd.Flags().StringVar(&runPayload, "payload", "", "Operation payload as JSON (opaque to the gate)")
}

var runCmd = &cobra.Command{
	Use:   "run <operation>",
	Short: "Gate an operation and execute it if approved",
	Long:  "Submits the operation to oversight. Approved operations run through the\nexecutor and the outcome is recorded; blocked operations never run.\nExits 1 if the operation was blocked or failed.",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	opCtx, err := parseContext(runContext)
	if err != nil {
		return err
	}

	var payload any
	if runPayload != "" {
		if err := json.Unmarshal([]byte(runPayload), &payload); err != nil {
			return fmt.Errorf("parse payload: %w", err)
		}
	}

	a, err := newApp(cmd.Context(), ackExecutor)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.orch.ExecuteWithOversight(cmd.Context(), args[0], payload, opCtx, runActor)
	if err != nil {
		return err
	}

	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		a.Close()
		os.Exit(1)
	}
	return nil
}
