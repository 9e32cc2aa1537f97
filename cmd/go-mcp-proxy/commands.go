package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bitte-ai/go-mcp-proxy/src/aggregator"
	"github.com/bitte-ai/go-mcp-proxy/src/app"
	"github.com/bitte-ai/go-mcp-proxy/src/config"
	"github.com/bitte-ai/go-mcp-proxy/src/json"
	"github.com/bitte-ai/go-mcp-proxy/src/logging"
	"github.com/bitte-ai/go-mcp-proxy/src/repository"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "go-mcp-proxy",
		Short:         "MCP proxy over the Bitte registry and on-chain capability sources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to a .env file (ignored when missing)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config and LOG_LEVEL)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newServeCmd(opts),
		newSearchToolsCmd(opts),
		newSearchAgentsCmd(opts),
		newSourcesCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load reads configuration, applies mutate (for command flags) and builds the
// application.
func (o *rootOptions) load(mutate func(*config.Config)) (*app.App, *logrus.Logger, error) {
	cfg, err := config.Load(o.configPath, o.envFile)
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	a, err := app.Build(cfg, version, logger)
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		transport string
		port      int
		host      string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := opts.load(func(c *config.Config) {
				if transport != "" {
					c.Server.Transport = transport
				}
				if port != 0 {
					c.Server.Port = port
				}
				if host != "" {
					c.Server.Host = host
				}
			})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger.WithField("sources", strings.Join(a.Sources.Names(), ",")).Info("sources registered")
			return a.Server.Serve(ctx, a.Config.Server)
		},
	}
	cmd.Flags().StringVarP(&transport, "transport", "t", "", "transport: sse, stdio or streamable")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port for network transports")
	cmd.Flags().StringVar(&host, "host", "", "listen host for network transports")
	return cmd
}

func newSearchToolsCmd(opts *rootOptions) *cobra.Command {
	var (
		limit     int
		threshold float64
		services  []string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "search-tools <query>",
		Short: "Fuzzy-search tools across the registry and all sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.load(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			p := aggregator.ToolSearchParams{Query: args[0]}
			if cmd.Flags().Changed("limit") {
				p.Limit = &limit
			}
			if cmd.Flags().Changed("threshold") {
				p.Threshold = &threshold
			}
			if cmd.Flags().Changed("service") {
				p.IncludeServices = services
			}
			res, err := a.Aggregator.SearchTools(cmd.Context(), p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, res)
			}
			table := newTable(out, "Source", "Tool", "Score", "Description")
			for _, r := range res.Combined {
				table.Append([]string{r.Item.Source, r.Item.Name, formatScore(r.Score), truncate(r.Item.Description, 60)})
			}
			table.Render()
			printSourceErrors(out, res.SourceErrors)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", aggregator.DefaultToolLimit, "max results per source")
	cmd.Flags().Float64Var(&threshold, "threshold", aggregator.DefaultToolThreshold, "match threshold in [0,1]")
	cmd.Flags().StringSliceVarP(&services, "service", "s", nil, "extra services to include (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	return cmd
}

func newSearchAgentsCmd(opts *rootOptions) *cobra.Command {
	var (
		limit     int
		threshold float64
		all       bool
		category  string
		chainIDs  string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "search-agents <query>",
		Short: "Fuzzy-search registry agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.load(nil)
			if err != nil {
				return err
			}
			defer a.Close()

			verified := !all
			p := aggregator.AgentSearchParams{
				Query:        args[0],
				VerifiedOnly: &verified,
				Category:     category,
				ChainIDs:     chainIDs,
			}
			if cmd.Flags().Changed("limit") {
				p.Limit = &limit
			}
			if cmd.Flags().Changed("threshold") {
				p.Threshold = &threshold
			}
			res, err := a.Aggregator.SearchAgents(cmd.Context(), p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, res)
			}
			table := newTable(out, "ID", "Name", "Score", "Source", "Description")
			for _, r := range res.Combined {
				source := r.Item.Source
				if source == "" {
					source = "bitte-registry"
				}
				table.Append([]string{r.Item.ID, r.Item.Name, formatScore(r.Score), source, truncate(r.Item.Description, 50)})
			}
			table.Render()
			printSourceErrors(out, res.SourceErrors)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", aggregator.DefaultAgentLimit, "max results")
	cmd.Flags().Float64Var(&threshold, "threshold", aggregator.DefaultAgentThreshold, "match threshold in [0,1]")
	cmd.Flags().BoolVar(&all, "all", false, "include unverified agents")
	cmd.Flags().StringVar(&category, "category", "", "category filter")
	cmd.Flags().StringVar(&chainIDs, "chain-ids", "", "comma-separated chain id filter")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw result as JSON")
	return cmd
}

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered capability sources and their tool counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := opts.load(nil)
			if err != nil {
				return err
			}
			defer a.Close()
			return printSources(cmd.Context(), cmd.OutOrStdout(), a.Sources)
		},
	}
}

func printSources(ctx context.Context, out io.Writer, sources *repository.Registry) error {
	table := newTable(out, "Source", "Tools", "Status")
	for _, src := range sources.All() {
		list, err := src.ListTools(ctx)
		if err != nil {
			table.Append([]string{src.Name(), "-", color.RedString("unavailable: %v", err)})
			continue
		}
		table.Append([]string{src.Name(), strconv.Itoa(len(list)), color.GreenString("ok")})
	}
	table.Render()
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "Version:  %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Commit:   %s\n", commit)
		},
	}
}

func newTable(out io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	return table
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func printSourceErrors(out io.Writer, errs map[string]string) {
	for name, msg := range errs {
		color.New(color.FgYellow).Fprintf(out, "warning: %s: %s\n", name, msg)
	}
}

func formatScore(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
