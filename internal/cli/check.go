package cli

import (
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opgate/opgate/internal/model"
)

var checkContext string

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringVar(&checkContext, "context", "", "Operation context as a JSON object")
}

var checkCmd = &cobra.Command{
	Use:   "check <operation>",
	Short: "Evaluate an operation without executing it",
	Long:  "Runs the operation through principle checks and impact scoring and prints\nthe decision. The decision is recorded in the audit ledger. Exits 1 if blocked.",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	opCtx, err := parseContext(checkContext)
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), ackExecutor)
	if err != nil {
		return err
	}
	defer a.Close()

	decision, err := a.engine.Oversee(cmd.Context(), model.Operation{
		ID:      uuid.NewString(),
		Name:    args[0],
		Context: opCtx,
	})
	if err != nil {
		return err
	}

	if err := printJSON(decision); err != nil {
		return err
	}
	if !decision.Approved {
		a.Close()
		os.Exit(1)
	}
	return nil
}
