package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/devloop/internal/logging"
	"github.com/hupe1980/devloop/pkg/devloop"
)

type componentsOptions struct {
	format string
}

// componentsResult is the structured output of the components command.
type componentsResult struct {
	Project    string                  `json:"project" yaml:"project"`
	ProjectDir string                  `json:"projectDir" yaml:"projectDir"`
	SrcDir     string                  `json:"srcDir" yaml:"srcDir"`
	Components []devloop.ComponentInfo `json:"components" yaml:"components"`
}

func newComponentsCommand() *cobra.Command {
	opts := &componentsOptions{}

	cmd := &cobra.Command{
		Use:   "components [path]",
		Short: "List the components loaded for a project",
		Long: `List every known component type for the project containing path, with
its base route, handler reference and the capabilities it was initialized
with. Components without capabilities are not present in the project or
could not be loaded.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			return runComponents(cmd.Context(), cmd, path, opts)
		},
	}

	registerOutputFlag(cmd, &opts.format)

	return cmd
}

func runComponents(ctx context.Context, cmd *cobra.Command, path string, opts *componentsOptions) error {
	switch opts.format {
	case "table", "json", "yaml":
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("unknown format %q: expected table, json, yaml", opts.format)}
	}

	dl, err := devloop.New(path, devloop.WithLogger(logging.FromContext(ctx)))
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	result := componentsResult{
		Project:    dl.Project.Name,
		ProjectDir: dl.ProjectDir,
		SrcDir:     dl.Project.SrcDir,
		Components: dl.Components(),
	}

	w := cmd.OutOrStdout()

	switch opts.format {
	case "json":
		return renderComponentsJSON(w, result)
	case "yaml":
		return renderComponentsYAML(w, result)
	default:
		return renderComponentsTable(w, result)
	}
}

func renderComponentsJSON(w io.Writer, result componentsResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(result)
}

func renderComponentsYAML(w io.Writer, result componentsResult) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(result); err != nil {
		return err
	}

	return enc.Close()
}

func renderComponentsTable(w io.Writer, result componentsResult) error {
	fmt.Fprintf(w, "Project: %s (%s)\n\n", result.Project, result.ProjectDir)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tROUTE\tHANDLER\tCAPABILITIES")

	for _, c := range result.Components {
		caps := "-"
		if c.Initialized() {
			caps = strings.Join(c.Capabilities, ",")
		}

		fmt.Fprintf(tw, "%s\t/%s\t%s\t%s\n", c.Type, c.BaseRoute, c.HandlerRef, caps)
	}

	return tw.Flush()
}
