package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"datachat/agent"
	"datachat/config"
	"datachat/dataset"
	"datachat/history"
	"datachat/logger"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "datachat",
		Short: "Ask natural-language questions about tabular data",
		Long: `DataChat answers natural-language questions about CSV, Excel, and
SQL-backed datasets. Questions are planned, turned into analysis code or
SQL, executed locally, and summarized as a short answer.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (YAML)")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable detailed logging")

	cmd.AddCommand(newAskCommand(&configPath, &debug))
	cmd.AddCommand(newHistoryCommand(&configPath))

	return cmd
}

func newAskCommand(configPath *string, debug *bool) *cobra.Command {
	var (
		filePath string
		dbDriver string
		dbDSN    string
		dbTable  string
		showCode bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question about a dataset",
		Example: `  # Analyze a CSV file
  datachat ask --file sales.csv "Top 5 suppliers by total revenue?"

  # Chart from an Excel workbook
  datachat ask --file report.xlsx "Bar chart of revenue by category"

  # Query a database table
  datachat ask --db-driver mysql --db-dsn "user:pass@tcp(host:3306)/db" --db-table orders "How many delayed orders?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(args[0])
			if question == "" {
				return fmt.Errorf("question must not be empty")
			}

			handle, err := openHandle(filePath, dbDriver, dbDSN, dbTable)
			if err != nil {
				return err
			}
			return runAsk(cmd, question, *configPath, handle, *debug, showCode)
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Dataset file (.csv or .xlsx)")
	cmd.Flags().StringVar(&dbDriver, "db-driver", "", "Database driver (mysql or snowflake)")
	cmd.Flags().StringVar(&dbDSN, "db-dsn", "", "Database connection string")
	cmd.Flags().StringVar(&dbTable, "db-table", "", "Database table to analyze")
	cmd.Flags().BoolVar(&showCode, "show-code", false, "Print the generated analysis code")

	return cmd
}

// openHandle builds the dataset handle from the file or database flags.
// Both absent is allowed; the pipeline then answers with a "no dataset"
// explanation.
func openHandle(filePath, dbDriver, dbDSN, dbTable string) (dataset.Handle, error) {
	if filePath != "" && dbDriver != "" {
		return nil, fmt.Errorf("--file and --db-driver are mutually exclusive")
	}
	if filePath != "" {
		h, err := dataset.Open(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset: %w", err)
		}
		return h, nil
	}
	if dbDriver != "" {
		if dbDSN == "" || dbTable == "" {
			return nil, fmt.Errorf("--db-driver requires --db-dsn and --db-table")
		}
		return dataset.NewSQLHandle(dbDriver, dbDSN, dbTable)
	}
	return nil, nil
}

func runAsk(cmd *cobra.Command, question, configPath string, handle dataset.Handle, debug, showCode bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.DetailedLog = true
	}

	log, err := logger.New(cfg.DetailedLog)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	a := agent.New(cfg, logger.Sink(log))
	st, err := a.Ask(cmd.Context(), question, handle)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, st.Answer)

	if st.AnalysisResult != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, st.AnalysisResult.Render(cfg.MaxPreviewRows))
	}
	if st.SQLResult != nil {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Query:", st.SQLQuery)
		fmt.Fprintln(out, st.SQLResult.Render(cfg.MaxPreviewRows))
	}
	if st.Chart != nil {
		chartJSON, err := st.Chart.JSON()
		if err == nil {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Chart:", chartJSON)
		}
	}
	if showCode && st.AnalysisCode != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Generated code:")
		fmt.Fprintln(out, st.AnalysisCode)
	}

	source := ""
	if handle != nil {
		source = handle.Source()
	}
	if err := recordExchange(cfg, source, st, log); err != nil {
		log.Warn("failed to record history", zap.Error(err))
	}
	return nil
}

// recordExchange writes the exchange to the history database. History is
// best-effort: failures are logged, never surfaced to the user.
func recordExchange(cfg config.Config, datasetPath string, st *agent.PipelineState, log *zap.Logger) error {
	if cfg.HistoryDBPath == "" {
		return nil
	}
	store, err := history.Open(cfg.HistoryDBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	sess, err := store.CreateSession(datasetPath)
	if err != nil {
		return err
	}

	ex := &history.Exchange{
		SessionID: sess.ID,
		Question:  st.Question,
		Answer:    st.Answer,
		SQLQuery:  st.SQLQuery,
		Error:     strings.Join(st.Errors, "; "),
	}
	if st.Chart != nil {
		if chartJSON, err := st.Chart.JSON(); err == nil {
			ex.ChartJSON = chartJSON
		}
	}
	return store.AppendExchange(ex)
}

func newHistoryCommand(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent question sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.HistoryDBPath == "" {
				return fmt.Errorf("history is disabled (history_db_path is empty)")
			}

			store, err := history.Open(cfg.HistoryDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.RecentSessions(limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, sess := range sessions {
				fmt.Fprintf(out, "%s  %s  %s\n", sess.CreatedAt.Format("2006-01-02 15:04"), sess.ID, sess.Dataset)
				exchanges, err := store.Exchanges(sess.ID)
				if err != nil {
					return err
				}
				for _, ex := range exchanges {
					fmt.Fprintf(out, "    Q: %s\n", ex.Question)
					fmt.Fprintf(out, "    A: %s\n", firstLine(ex.Answer))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of sessions to show")
	return cmd
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
