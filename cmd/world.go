package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/signalnine/worldbench/internal/logging"
	"github.com/signalnine/worldbench/internal/toolbox"
	"github.com/signalnine/worldbench/internal/world"
	"github.com/signalnine/worldbench/internal/world/apps"
)

type worldFlags struct {
	spec string
	name string
	apps []string
	seed string
	url  string
}

func (f *worldFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.spec, "spec", "", "world spec file")
	cmd.Flags().StringVar(&f.name, "name", "world", "world name")
	cmd.Flags().StringSliceVar(&f.apps, "apps", nil, fmt.Sprintf("apps to mount %v", apps.Names()))
	cmd.Flags().StringVar(&f.seed, "seed", "", "seed data file (default: built-in seed)")
}

// resolve builds a spec from --spec or from the inline flags.
func (f *worldFlags) resolve() (*world.Spec, error) {
	if f.spec != "" {
		return world.LoadSpec(f.spec)
	}
	spec := &world.Spec{Name: f.name, Apps: f.apps, Seed: f.seed}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

func newWorldCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "world",
		Short: "Serve or inspect a world of simulated apps",
	}
	cmd.AddCommand(newWorldServeCmd())
	cmd.AddCommand(newWorldToolsCmd())
	cmd.AddCommand(newWorldCallCmd())
	return cmd
}

func newWorldServeCmd() *cobra.Command {
	var (
		wf       worldFlags
		port     int
		stdio    bool
		instance string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Host a world's tools over MCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := wf.resolve()
			if err != nil {
				return err
			}
			logger := logging.Component(newLogger(nil), "world").With().Str("world", spec.Name).Logger()
			rt, err := apps.Compose(spec, nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if stdio {
				return world.NewServer(spec.Name, rt, nil, logger).ServeStdio(ctx)
			}
			if port == 0 {
				port = spec.Port
			}
			srv := world.NewServer(spec.Name, rt, world.NewMetrics(), logger)
			srv.SetInstance(instance)
			return srv.Serve(ctx, "127.0.0.1:"+strconv.Itoa(port))
		},
	}
	wf.register(cmd)
	cmd.Flags().IntVar(&port, "port", 0, "port to listen on (default: the spec's port)")
	cmd.Flags().BoolVar(&stdio, "stdio", false, "serve over stdin/stdout instead of HTTP")
	cmd.Flags().StringVar(&instance, "instance", "", "instance id reported by /healthz")
	return cmd
}

// openSession connects to a running world at url, or composes one in process.
func openSession(ctx context.Context, wf *worldFlags) (*toolbox.Session, error) {
	if wf.url != "" {
		return toolbox.Connect(ctx, &world.Transport{Kind: world.TransportHTTP, URL: wf.url})
	}
	spec, err := wf.resolve()
	if err != nil {
		return nil, err
	}
	rt, err := apps.Compose(spec, nil)
	if err != nil {
		return nil, err
	}
	ct, st := mcp.NewInMemoryTransports()
	srv := world.NewServer(spec.Name, rt, nil, logging.Component(newLogger(nil), "world"))
	if _, err := srv.MCP().Connect(ctx, st, nil); err != nil {
		return nil, fmt.Errorf("starting in-process world: %w", err)
	}
	return toolbox.ConnectTransport(ctx, ct)
}

func newWorldToolsCmd() *cobra.Command {
	var (
		wf      worldFlags
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tools a world exposes to agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, &wf)
			if err != nil {
				return err
			}
			defer s.Close()
			return printTools(ctx, s, verbose, cmd.OutOrStdout())
		},
	}
	wf.register(cmd)
	cmd.Flags().StringVar(&wf.url, "url", "", "MCP endpoint of a running world")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "include input schemas")
	return cmd
}

func printTools(ctx context.Context, s *toolbox.Session, verbose bool, w io.Writer) error {
	tools, err := s.Tools(ctx)
	if err != nil {
		return err
	}
	if verbose {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tools)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tDESCRIPTION")
	for _, t := range tools {
		fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
	}
	return tw.Flush()
}

func newWorldCallCmd() *cobra.Command {
	var wf worldFlags
	cmd := &cobra.Command{
		Use:   "call <tool> [json-arguments]",
		Short: "Invoke one tool, as an agent would",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, &wf)
			if err != nil {
				return err
			}
			defer s.Close()
			var raw json.RawMessage
			if len(args) == 2 {
				raw = json.RawMessage(strings.TrimSpace(args[1]))
				if !json.Valid(raw) {
					return fmt.Errorf("arguments are not valid JSON")
				}
			}
			text, isErr, err := s.Call(ctx, args[0], raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			if isErr {
				return fmt.Errorf("tool %s reported an error", args[0])
			}
			return nil
		},
	}
	wf.register(cmd)
	cmd.Flags().StringVar(&wf.url, "url", "", "MCP endpoint of a running world")
	return cmd
}
