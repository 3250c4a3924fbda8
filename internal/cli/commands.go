package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dyike/twpbr/config"
	"github.com/dyike/twpbr/internal/calendar"
	"github.com/dyike/twpbr/internal/collector"
	"github.com/dyike/twpbr/internal/display"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	// Initialize configuration early
	cfg := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "twpbr",
		Short: "twpbr - TWSE PBR-below-1 tracker",
		Long: `twpbr keeps a cache of how many TWSE listed stocks trade below a price-to-book
ratio of 1, syncs it to a git repository and turns it into Bollinger %b indicators.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return prepare(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default behavior: start interactive mode
			return runInteractiveMode(cmd, cfg)
		},
	}

	// Add subcommands
	rootCmd.AddCommand(newUpdateCmd(cfg))
	rootCmd.AddCommand(newShowCmd(cfg))
	rootCmd.AddCommand(newPlotCmd(cfg))
	rootCmd.AddCommand(newValuationCmd(cfg))
	rootCmd.AddCommand(newRepoCmd(cfg))
	rootCmd.AddCommand(newHistoryCmd(cfg))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(cfg))

	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	rootCmd.PersistentFlags().String("config", "", "Configuration file path")
	rootCmd.PersistentFlags().Bool("no-sync", false, "Skip every git step and use the local cache")

	return rootCmd
}

// prepare applies the global flags to cfg before any command runs.
func prepare(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Root().PersistentFlags()

	if path, _ := flags.GetString("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return err
		}
	}
	if debug, _ := flags.GetBool("debug"); debug {
		cfg.Debug = true
	}
	if noSync, _ := flags.GetBool("no-sync"); noSync {
		cfg.SyncEnabled = false
	}
	setupLogging(cmd.ErrOrStderr(), cfg.Debug)

	// Ensure directories exist
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	return nil
}

// newCollector validates cfg and wires a collector writing to w. The git
// credentials are only checked for workflows that sync.
func newCollector(cfg *config.Config, w io.Writer, syncs bool) (*collector.Collector, error) {
	check := cfg.ValidateValues
	if syncs {
		check = cfg.Validate
	}
	if err := check(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return collector.New(cfg, collector.WithOutput(w))
}

func newUpdateCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download the last 31 days of PBR counts into the cache",
		Long: `Refresh the cache over the weekdays of the month before the reference date,
download the dates the cache is missing, save it and push it to the remote.
Example: twpbr update --date=20251017`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date, _ := cmd.Flags().GetString("date")
			quiet, _ := cmd.Flags().GetBool("quiet")
			return runUpdate(cmd, cfg, date, !quiet)
		},
	}

	cmd.Flags().StringP("date", "d", "", "Reference date in YYYYMMDD (default today)")
	cmd.Flags().BoolP("quiet", "q", false, "Do not print the refreshed window")

	return cmd
}

func runUpdate(cmd *cobra.Command, cfg *config.Config, date string, show bool) error {
	if date != "" {
		if _, err := calendar.ParseDate(date); err != nil {
			return err
		}
	}

	c, err := newCollector(cfg, cmd.OutOrStdout(), true)
	if err != nil {
		return err
	}
	defer c.Close()

	results, err := c.Update(cmd.Context(), collector.UpdateOptions{Date: date, Show: show})
	if err != nil {
		return err
	}
	display.DisplaySuccess(cmd.OutOrStdout(), fmt.Sprintf("updated %d trading days", len(results)))
	return nil
}

func newShowCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the whole cache with its running numbers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, cfg)
		},
	}
}

func runShow(cmd *cobra.Command, cfg *config.Config) error {
	c, err := newCollector(cfg, cmd.OutOrStdout(), true)
	if err != nil {
		return err
	}
	defer c.Close()

	c.Show(cmd.Context())
	return nil
}

func newPlotCmd(cfg *config.Config) *cobra.Command {
	plotCmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot the PB-C indicator of a stock against the cached counts",
	}

	for _, mode := range []string{collector.ModeDay, collector.ModeWeek} {
		cmd := &cobra.Command{
			Use:   mode + " [STOCK]",
			Short: fmt.Sprintf("PB-C on the %s series", strings.ToLower(collector.ModeText(mode))),
			Long: fmt.Sprintf(`Compute and plot the PB-C indicator on the %s series.
The stock is prompted for when omitted.
Example: twpbr plot %s ^TWII --last 120`, strings.ToLower(collector.ModeText(mode)), mode),
			Args: cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				last, _ := cmd.Flags().GetInt("last")
				update, _ := cmd.Flags().GetBool("update")
				return runPlot(cmd, cfg, mode, args, last, update)
			},
		}
		cmd.Flags().IntP("last", "n", 0, "Keep only the most recent N entries (0 keeps all)")
		cmd.Flags().Bool("update", false, "Refresh the cache before plotting")
		plotCmd.AddCommand(cmd)
	}

	return plotCmd
}

func runPlot(cmd *cobra.Command, cfg *config.Config, mode string, args []string, last int, update bool) error {
	if last < 0 {
		return fmt.Errorf("--last must not be negative, got %d", last)
	}
	stock, err := stockArg(args)
	if err != nil {
		return err
	}

	c, err := newCollector(cfg, cmd.OutOrStdout(), true)
	if err != nil {
		return err
	}
	defer c.Close()

	if update {
		if _, err := c.Update(cmd.Context(), collector.UpdateOptions{}); err != nil {
			return err
		}
	}

	res, err := c.Plot(cmd.Context(), mode, stock, last)
	if err != nil {
		return err
	}
	reportResult(cmd.OutOrStdout(), res.Result)
	return nil
}

func newValuationCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "valuation [STOCK]",
		Short: "Plot the %b_DIF valuation indicator of a stock",
		Long: `Download the daily P/E and dividend yield of a stock month by month, compute
%b_DIF and plot it next to the closing price.
Example: twpbr valuation 2330 --start=202401`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")

			stock, err := stockArg(args)
			if err != nil {
				return err
			}
			c, err := newCollector(cfg, cmd.OutOrStdout(), false)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.Valuation(cmd.Context(), stock, start, end)
			if err != nil {
				return err
			}
			reportResult(cmd.OutOrStdout(), res.Result)
			return nil
		},
	}

	cmd.Flags().StringP("start", "s", "", "First month in YYYYMM")
	cmd.Flags().StringP("end", "e", "", "Last month in YYYYMM (default current month)")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func newRepoCmd(cfg *config.Config) *cobra.Command {
	repoCmd := &cobra.Command{
		Use:   "repo",
		Short: "Manage files in the cache repository",
	}

	deleteCmd := &cobra.Command{
		Use:   "delete FILE",
		Short: "Remove a file from the cache repository and push the removal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			message, _ := cmd.Flags().GetString("message")

			c, err := newCollector(cfg, cmd.OutOrStdout(), true)
			if err != nil {
				return err
			}
			defer c.Close()

			if err := c.DeleteFile(cmd.Context(), args[0], message); err != nil {
				return err
			}
			display.DisplaySuccess(cmd.OutOrStdout(), "deleted "+args[0])
			return nil
		},
	}
	deleteCmd.Flags().StringP("message", "m", "刪除檔案", "Commit message")
	repoCmd.AddCommand(deleteCmd)

	return repoCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "twpbr %s\n", Version)
			fmt.Fprintln(cmd.OutOrStdout(), "TWSE PBR-below-1 tracker")
		},
	}
}

// newConfigCmd creates the config command
func newConfigCmd(cfg *config.Config) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "Inspect the twpbr configuration",
	}

	// config show subcommand
	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Run: func(cmd *cobra.Command, args []string) {
			showConfig(cmd.OutOrStdout(), cfg)
		},
	})

	// config validate subcommand
	configCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateConfig(cmd.OutOrStdout(), cfg)
		},
	})

	return configCmd
}

// showConfig displays the current configuration
func showConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, sectionStyle.Render("Current twpbr configuration"))
	fmt.Fprintf(w, "Project Directory:    %s\n", cfg.ProjectDir)
	fmt.Fprintf(w, "Results Directory:    %s\n", cfg.ResultsDir)
	fmt.Fprintf(w, "Data Directory:       %s\n", cfg.DataDir)
	fmt.Fprintf(w, "History DB:           %s\n", cfg.HistoryDB)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Cache File:           %s\n", cfg.CacheFile)
	fmt.Fprintf(w, "Repo Directory:       %s\n", cfg.RepoDir)
	fmt.Fprintf(w, "Git Sync:             %t\n", cfg.SyncEnabled)
	fmt.Fprintf(w, "Git Remote:           %s\n", cfg.RedactedRemoteURL())
	fmt.Fprintf(w, "Git Branch:           %s\n", cfg.GitBranch)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "TWSE Base URL:        %s\n", cfg.TWSEBaseURL)
	fmt.Fprintf(w, "TWSE Format:          %s\n", cfg.TWSEFormat)
	fmt.Fprintf(w, "Price Source:         %s\n", cfg.PriceSource)
	fmt.Fprintf(w, "HTTP Timeout:         %s\n", cfg.HTTPTimeout)
	fmt.Fprintf(w, "Batch Interval:       %s\n", cfg.BatchInterval)
	fmt.Fprintf(w, "Monthly Interval:     %s\n", cfg.MonthlyInterval)
	fmt.Fprintf(w, "Probe Days:           %d\n", cfg.ProbeDays)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Bollinger Length:     %d\n", cfg.BollingerLength)
	fmt.Fprintf(w, "Band Width:           %g\n", cfg.BandWidth)
	fmt.Fprintf(w, "Anchor:               %s -> %d\n", cfg.AnchorDate, cfg.AnchorIndex)
	fmt.Fprintf(w, "Debug Mode:           %t\n", cfg.Debug)
}

// validateConfig validates the configuration
func validateConfig(w io.Writer, cfg *config.Config) error {
	fmt.Fprint(w, "Checking directories... ")
	if err := cfg.EnsureDirectories(); err != nil {
		fmt.Fprintln(w, errorStyle.Render("failed"))
		return fmt.Errorf("directory validation failed: %w", err)
	}
	fmt.Fprintln(w, okStyle.Render("ok"))

	fmt.Fprint(w, "Checking configuration values... ")
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(w, errorStyle.Render("failed"))
		return err
	}
	fmt.Fprintln(w, okStyle.Render("ok"))

	if !cfg.SyncEnabled {
		display.DisplayWarning(w, "git sync is disabled, the cache stays local")
	}
	return nil
}

func reportResult(w io.Writer, res collector.Result) {
	if res.ImagePath != "" {
		display.DisplaySuccess(w, "chart written to "+res.ImagePath)
	} else {
		display.DisplayWarning(w, "chart was not written, see the log")
	}
	if res.JSONPath != "" {
		display.DisplayInfo(w, "data written to "+res.JSONPath)
	}
	if res.RunID != "" {
		display.DisplayInfo(w, "run recorded as "+res.RunID)
	}
}

// stockArg returns the stock argument, prompting for it when absent.
func stockArg(args []string) (string, error) {
	if len(args) > 0 {
		stock := normalizeStock(args[0])
		if err := ValidateStockCode(stock); err != nil {
			return "", err
		}
		return stock, nil
	}
	return PromptForStock()
}

// runInteractiveMode lets the operator pick workflows until they exit
func runInteractiveMode(cmd *cobra.Command, cfg *config.Config) error {
	DisplayWelcomeBanner(cmd.OutOrStdout())

	for {
		action, err := PromptForAction()
		if err != nil {
			return err
		}

		switch action {
		case actionExit:
			fmt.Fprintln(cmd.OutOrStdout(), "bye")
			return nil
		case actionUpdate:
			err = runUpdate(cmd, cfg, "", true)
		case actionShow:
			err = runShow(cmd, cfg)
		case actionPlotDay:
			err = runPlot(cmd, cfg, collector.ModeDay, nil, 0, false)
		case actionPlotWeek:
			err = runPlot(cmd, cfg, collector.ModeWeek, nil, 0, false)
		case actionValuation:
			err = runInteractiveValuation(cmd, cfg)
		}
		if err != nil {
			display.DisplayError(cmd.ErrOrStderr(), err, action)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "\n"+strings.Repeat("-", 60))
	}
}

func runInteractiveValuation(cmd *cobra.Command, cfg *config.Config) error {
	stock, err := PromptForStock()
	if err != nil {
		return err
	}
	start, err := PromptForMonth()
	if err != nil {
		return err
	}

	c, err := newCollector(cfg, cmd.OutOrStdout(), false)
	if err != nil {
		return err
	}
	defer c.Close()

	res, err := c.Valuation(cmd.Context(), stock, start, "")
	if err != nil {
		return err
	}
	reportResult(cmd.OutOrStdout(), res.Result)
	return nil
}
