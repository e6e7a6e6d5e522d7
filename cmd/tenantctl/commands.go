package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leeforge/tenantkit/appcontext"
	"github.com/leeforge/tenantkit/errors"
	"github.com/leeforge/tenantkit/host"
	"github.com/leeforge/tenantkit/utils"
)

// TenantSummary is the outcome of loading one tenant.
type TenantSummary struct {
	Tenant      string   `json:"tenant"`
	OK          bool     `json:"ok"`
	Document    string   `json:"document,omitempty"`
	AppVersion  string   `json:"appVersion,omitempty"`
	Debug       bool     `json:"debug"`
	AppRoot     string   `json:"appRoot,omitempty"`
	Database    string   `json:"database,omitempty"`
	Session     string   `json:"session,omitempty"`
	Template    string   `json:"template,omitempty"`
	Controllers []string `json:"controllers,omitempty"`
	ErrorType   string   `json:"errorType,omitempty"`
	ErrorCode   string   `json:"errorCode,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func summarize(h *host.Host, name string) TenantSummary {
	s := TenantSummary{Tenant: name}
	t, err := h.Tenant(name)
	if err != nil {
		s.ErrorType = string(errors.TypeOf(err))
		s.ErrorCode = errors.CodeOf(err)
		s.Error = err.Error()
		return s
	}

	m := t.Model()
	s.OK = true
	s.Document = t.Context().Document()
	s.AppVersion = m.AppVersion
	s.Debug = m.Debug
	s.AppRoot = m.AppRoot
	s.Database = m.Database.Ext + " " + m.Database.DSN().String()
	s.Session = m.Session.Handler + "/" + m.Session.Security
	if m.Template != nil {
		s.Template = m.Template.Kind
	}
	for _, c := range m.ControllerList() {
		s.Controllers = append(s.Controllers, c.URLPath+" -> "+c.Name)
	}
	return s
}

func writeSummary(w io.Writer, s TenantSummary) {
	if !s.OK {
		fmt.Fprintf(w, "%s: FAILED [%s] %s\n", s.Tenant, s.ErrorCode, s.Error)
		return
	}
	fmt.Fprintf(w, "%s: ok\n", s.Tenant)
	fmt.Fprintf(w, "  document:    %s\n", s.Document)
	fmt.Fprintf(w, "  debug:       %t\n", s.Debug)
	fmt.Fprintf(w, "  app root:    %s\n", s.AppRoot)
	fmt.Fprintf(w, "  database:    %s\n", s.Database)
	fmt.Fprintf(w, "  session:     %s\n", s.Session)
	if s.Template != "" {
		fmt.Fprintf(w, "  template:    %s\n", s.Template)
	}
	if len(s.Controllers) > 0 {
		fmt.Fprintf(w, "  controllers: %s\n", strings.Join(s.Controllers, ", "))
	}
}

// NewCheckCommand loads tenants and reports their configuration.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check [tenant...]",
		Short: "Load tenants and summarize their configuration",
		Long: `Load each named tenant, or every tenant listed in the host
configuration, and print a summary. Fails if any tenant fails to load.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer h.Close()

			names := args
			if len(names) == 0 {
				names = h.Config().Tenants
			}
			if len(names) == 0 {
				return fmt.Errorf("no tenants named and none configured")
			}

			summaries := make([]TenantSummary, 0, len(names))
			failed := 0
			for _, name := range names {
				s := summarize(h, name)
				if !s.OK {
					failed++
				}
				summaries = append(summaries, s)
			}

			out := cmd.OutOrStdout()
			if rootOpts.Format == "json" {
				if err := utils.PrintJson(out, summaries); err != nil {
					return err
				}
			} else {
				for _, s := range summaries {
					writeSummary(out, s)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d tenants failed to load", failed, len(names))
			}
			return nil
		},
	}
}

// NewLocateCommand prints the context document of a tenant.
func NewLocateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <tenant>",
		Short: "Print the path of a tenant's context document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer h.Close()

			path, err := appcontext.Locate(h.Environment(), args[0])
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return utils.PrintJson(cmd.OutOrStdout(), map[string]string{"tenant": args[0], "document": path})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

// NewResolveCommand resolves a symbol, optionally after loading a tenant.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "resolve <symbol>",
		Short: "Resolve a symbol to the source that defines it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer h.Close()

			if tenant != "" {
				if _, err := h.Tenant(tenant); err != nil {
					return err
				}
			}
			symbol := args[0]
			if !h.Resolver().Resolve(symbol) {
				return errors.NewResolution(symbol)
			}
			source, _ := h.Resolver().Source(symbol)
			if rootOpts.Format == "json" {
				return utils.PrintJson(cmd.OutOrStdout(), map[string]string{"symbol": symbol, "source": source})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", symbol, source)
			return err
		},
	}
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "load this tenant before resolving")
	return cmd
}

// NewRoutesCommand prints the controller routes of a tenant.
func NewRoutesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "routes <tenant>",
		Short: "Print the routes a tenant's controllers are mounted at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openHost(cmd.Context(), rootOpts)
			if err != nil {
				return err
			}
			defer h.Close()

			r, err := h.Router(args[0])
			if err != nil {
				return err
			}
			return utils.PrintRoutes(cmd.OutOrStdout(), r)
		},
	}
}

// NewSchemaCommand installs the bundled context schema.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <root>",
		Short: "Write the context schema to <root>/" + appcontext.SchemaFile,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := appcontext.WriteSchema(args[0])
			if err != nil {
				return err
			}
			if rootOpts.Format == "json" {
				return utils.PrintJson(cmd.OutOrStdout(), map[string]string{"schema": path})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}
