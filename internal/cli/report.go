package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.AddCommand(reportHealthCmd)
	reportCmd.AddCommand(reportComplianceCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "System health and compliance reporting",
}

var reportHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Print the aggregate system health view",
	Long:  "Prints component health statuses, ledger size, and the oversight and\nlearning summaries as JSON.",
	RunE:  runReportHealth,
}

var reportComplianceCmd = &cobra.Command{
	Use:   "compliance",
	Short: "Print the compliance report",
	Long:  "Prints decision counts, approval rate, entries per event type, the covered\nperiod, and the audit chain verification result as JSON.",
	RunE:  runReportCompliance,
}

func runReportHealth(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), ackExecutor)
	if err != nil {
		return err
	}
	defer a.Close()

	return printJSON(a.orch.SystemHealth())
}

func runReportCompliance(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), ackExecutor)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.orch.ComplianceReport(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(report)
}
