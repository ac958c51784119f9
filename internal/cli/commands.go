package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aristath/screener/internal/catalog"
	"github.com/aristath/screener/internal/compiler"
	"github.com/aristath/screener/internal/di"
	"github.com/aristath/screener/internal/domain"
	"github.com/aristath/screener/internal/parser"
	"github.com/aristath/screener/internal/screener"
	"github.com/aristath/screener/internal/store"
)

// parseOutput is the JSON shape of the parse command
type parseOutput struct {
	FilterSet      domain.FilterSet `json:"filterSet"`
	DroppedClauses []string         `json:"droppedClauses,omitempty"`
}

// frontEnd wires the parts that never touch a backend
func (a *app) frontEnd(cmd *cobra.Command) (*di.Container, zerolog.Logger, error) {
	cfg, log, err := a.setup(cmd)
	if err != nil {
		return nil, log, err
	}
	container := &di.Container{}
	if err := di.InitializeCatalog(container, cfg, log); err != nil {
		return nil, log, err
	}
	di.InitializeParser(container, cfg, log)
	if err := di.InitializeCompiler(container, cfg); err != nil {
		return nil, log, err
	}
	return container, log, nil
}

func newParseCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse QUERY...",
		Short: "Turn a query into a filter set without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := a.frontEnd(cmd)
			if err != nil {
				return err
			}
			parsed, err := container.Parser.ParseDetailed(cmd.Context(), queryArg(args))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.format == FormatJSON {
				return a.writeJSON(out, parseOutput{FilterSet: parsed.FilterSet, DroppedClauses: parsed.Dropped})
			}
			writeFilterSet(out, parsed)
			return nil
		},
	}
}

func newCompileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compile QUERY...",
		Short: "Show the query the configured backend would execute",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			container, log, err := a.frontEnd(cmd)
			if err != nil {
				return err
			}
			parsed, err := container.Parser.ParseDetailed(cmd.Context(), queryArg(args))
			if err != nil {
				return err
			}
			q, err := container.Compiler.Compile(parsed.FilterSet)
			if err != nil {
				log.Error().Err(err).Msg("Compilation failed")
				return fmt.Errorf("%s", screener.UserMessage(err))
			}

			out := cmd.OutOrStdout()
			if a.format == FormatJSON {
				return a.writeJSON(out, q)
			}
			return writeCompiled(out, q)
		},
	}
}

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run QUERY...",
		Short: "Parse, compile and execute a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.setup(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			container, err := di.Wire(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer container.Close()

			result, err := container.Service.Run(ctx, queryArg(args))
			if err != nil {
				if domain.IsParseError(err) {
					return err
				}
				log.Error().Err(err).Msg("Query failed")
				return fmt.Errorf("%s", screener.UserMessage(err))
			}

			out := cmd.OutOrStdout()
			if a.format == FormatJSON {
				return a.writeJSON(out, result)
			}
			return writeRows(out, container.Catalog, result)
		},
	}
}

func newFieldsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the fields queries may filter on",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			container, _, err := a.frontEnd(cmd)
			if err != nil {
				return err
			}
			cat := container.Catalog

			out := cmd.OutOrStdout()
			if a.format == FormatJSON {
				return a.writeJSON(out, cat.Fields())
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "FIELD\tTYPE\tALIASES\tLIVE")
			for _, f := range cat.Fields() {
				live := "no"
				if f.ProviderKey != "" {
					live = "yes"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, f.Type, strings.Join(f.ShortNames, ","), live)
			}
			return tw.Flush()
		},
	}
}

func writeFilterSet(w io.Writer, parsed *parser.Parsed) {
	fs := parsed.FilterSet
	if fs.HasSector() {
		fmt.Fprintf(w, "sector:   %s\n", fs.Sector())
	}
	for _, f := range fs.Filters() {
		fmt.Fprintf(w, "filter:   %s\n", f)
	}
	if qr := fs.QuarterRange(); qr != nil {
		fmt.Fprintf(w, "quarters: %d\n", qr.Quarters())
	}
	fmt.Fprintf(w, "limit:    %d\n", fs.Limit())
	for _, d := range parsed.Dropped {
		fmt.Fprintf(w, "dropped:  %s\n", d)
	}
}

func writeCompiled(w io.Writer, q *compiler.CompiledQuery) error {
	params, err := json.Marshal(q.Params)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, q.Text)
	fmt.Fprintf(w, "-- dialect: %s\n", q.Dialect)
	fmt.Fprintf(w, "-- params: %s\n", params)
	return nil
}

// writeRows prints symbol, name and sector followed by every filtered field
func writeRows(w io.Writer, cat *catalog.Catalog, result *screener.Result) error {
	columns := []string{"symbol", "name", cat.SectorColumn()}
	for _, f := range result.FilterSet.Filters() {
		if col, ok := cat.ColumnFor(f.Field()); ok && !slices.Contains(columns, col) {
			columns = append(columns, col)
		}
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.ToUpper(strings.Join(columns, "\t")))
	for _, row := range result.Rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatCell(row, col)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "%d rows in %dms\n", len(result.Rows), result.DurationMs)
	return nil
}

func formatCell(row store.Row, col string) string {
	switch v := row[col].(type) {
	case nil:
		return "-"
	case float64:
		return fmt.Sprintf("%.2f", v)
	default:
		return fmt.Sprint(v)
	}
}
