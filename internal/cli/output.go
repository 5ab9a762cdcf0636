package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/partloader/internal/domain/resolver"
)

const (
	OutputTable = "table"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
)

var outputFormats = []string{OutputTable, OutputJSON, OutputYAML}

type bundleRow struct {
	Descriptor string   `json:"descriptor" yaml:"descriptor"`
	Name       string   `json:"name" yaml:"name"`
	Download   string   `json:"download" yaml:"download"`
	State      string   `json:"state" yaml:"state"`
	Attempts   int      `json:"attempts" yaml:"attempts"`
	Locations  []string `json:"locations,omitempty" yaml:"locations,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
}

func addOutputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP(FlagOutput, "o", OutputTable,
		fmt.Sprintf("output format {%s}", strings.Join(outputFormats, "|")))
}

func outputFormat(cmd *cobra.Command) (string, error) {
	format, err := cmd.Flags().GetString(FlagOutput)
	if err != nil {
		return "", fmt.Errorf("getting output flag failed: %w", err)
	}
	for _, f := range outputFormats {
		if f == format {
			return format, nil
		}
	}
	return "", fmt.Errorf("unknown output format %q, must be one of %s", format, strings.Join(outputFormats, ", "))
}

func rowsOf(statuses []resolver.Status) []bundleRow {
	rows := make([]bundleRow, 0, len(statuses))
	for _, st := range statuses {
		row := bundleRow{
			Descriptor: string(st.Ref.Descriptor),
			Name:       st.Ref.Name,
			Download:   "lazy",
			State:      st.State.String(),
			Attempts:   st.Attempts,
		}
		if st.Eager {
			row.Download = "eager"
		}
		for _, loc := range st.Locations {
			row.Locations = append(row.Locations, string(loc))
		}
		if st.Err != nil {
			row.Error = st.Err.Error()
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Descriptor != rows[j].Descriptor {
			return rows[i].Descriptor < rows[j].Descriptor
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

func writeBundles(w io.Writer, format string, statuses []resolver.Status) error {
	rows := rowsOf(statuses)
	switch format {
	case OutputJSON:
		data, err := sonic.MarshalIndent(rows, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err
	case OutputYAML:
		data, err := yaml.Marshal(rows)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "DESCRIPTOR\tBUNDLE\tDOWNLOAD\tSTATE\tATTEMPTS\tERROR")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", r.Descriptor, r.Name, r.Download, r.State, r.Attempts, r.Error)
		}
		return tw.Flush()
	}
}
