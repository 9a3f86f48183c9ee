package cmd

import (
	"encoding/json"
	"net/http"

	"github.com/spf13/cobra"

	multitenant "github.com/carlosmarte/fastify-multi-tenant-sub001"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/identification"
	"github.com/carlosmarte/fastify-multi-tenant-sub001/security"
)

type identifyOptions struct {
	method  string
	host    string
	path    string
	headers map[string]string
	query   map[string]string
}

// identifyResult is printed by the identify command.
type identifyResult struct {
	Primary *identification.EntityInfo  `json:"primary"`
	Matches []identification.EntityInfo `json:"matches"`
}

// NewIdentifyCommand creates the identify command
func NewIdentifyCommand(flags *globalFlags) *cobra.Command {
	opts := &identifyOptions{}
	cmd := &cobra.Command{
		Use:   "identify",
		Short: "Resolve a request to entities",
		Long: `Run every enabled identification strategy against a request described
by flags and print the matched entities, ordered by priority.`,
		Example: `  mtctl identify --host acme.example.com
  mtctl identify --path /tenants/acme/users --header X-Org-ID=research`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIdentify(cmd, flags, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.method, "method", "X", http.MethodGet, "Request method")
	cmd.Flags().StringVar(&opts.host, "host", "", "Request host, with or without port")
	cmd.Flags().StringVarP(&opts.path, "path", "p", "/", "Request path")
	cmd.Flags().StringToStringVarP(&opts.headers, "header", "H", nil, "Request headers as name=value")
	cmd.Flags().StringToStringVarP(&opts.query, "query", "q", nil, "Query parameters as name=value")

	return cmd
}

func runIdentify(cmd *cobra.Command, flags *globalFlags, opts *identifyOptions) error {
	cfg, err := flags.loadConfig()
	if err != nil {
		return err
	}
	defs, err := loadDefinitions(cfg)
	if err != nil {
		return err
	}
	validator, err := security.NewValidator(cfg.Security)
	if err != nil {
		return err
	}
	ids := identification.NewManager(validator, flags.newLogger(cmd.ErrOrStderr()))

	req := multitenant.StaticRequest{
		RequestMethod: opts.method,
		Path:          opts.path,
		Host:          opts.host,
		Headers:       opts.headers,
		QueryParams:   opts.query,
	}
	result := identifyResult{Matches: ids.ExtractEntityInfo(req, defs.Definitions())}
	if len(result.Matches) > 0 {
		result.Primary = &result.Matches[0]
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
