package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/RegistryAccord/discovery-go/internal/model"
)

var (
	historyOperation string
	historyLimit     int
	historyCursor    string
	historySince     time.Duration
	historyJSON      bool
)

func init() {
	Root.AddCommand(historyCommand)
	flags := historyCommand.Flags()
	flags.StringVar(&historyOperation, "operation", "", "Only list exchanges of this operation")
	flags.IntVar(&historyLimit, "limit", 25, "Maximum number of exchanges to list (at most 100)")
	flags.StringVar(&historyCursor, "cursor", "", "Continue from the cursor printed by a previous page")
	flags.DurationVar(&historySince, "since", 0, "Only list exchanges completed within this duration")
	flags.BoolVar(&historyJSON, "json", false, "Print the page as JSON")
}

var historyCommand = &cobra.Command{
	Use:   "history",
	Short: "List recorded exchanges, newest first",
	Long: `Lists the exchanges recorded in the journal. The journal is in memory
unless DISCOVERY_DB_DSN points at PostgreSQL, so history is only useful
across invocations with a database configured.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		journal, err := current.openJournal(cmd.Context())
		if err != nil {
			return err
		}
		query := model.ListExchangesQuery{
			Operation: historyOperation,
			Limit:     historyLimit,
			Cursor:    historyCursor,
		}
		if historySince > 0 {
			query.Since = time.Now().Add(-historySince)
		}
		page, err := journal.List(cmd.Context(), query)
		if err != nil {
			return err
		}
		if historyJSON {
			return printJSON(cmd.OutOrStdout(), page)
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCOMPLETED\tOPERATION\tMETHOD\tSTATUS\tDURATION\tERROR")
		for _, e := range page.Exchanges {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				e.ID, e.CompletedAt.Format(time.RFC3339), e.Operation, e.Method, e.StatusCode, e.Duration, e.Error)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if page.NextCursor != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "\nnext page: --cursor %s\n", page.NextCursor)
		}
		return nil
	},
}
