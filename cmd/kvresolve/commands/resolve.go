package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/config"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/document"
	kverrors "github.com/microsoftarchive/keyvault-configuration-resolver/internal/errors"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/keychain"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/metrics"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/stores"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/resolver"
)

// resolverFactory builds the resolver for a loaded configuration. The
// returned func releases it.
type resolverFactory func(cfg *config.Config) (*resolver.Resolver, func(), error)

func newConfiguredResolver(cfg *config.Config) (*resolver.Resolver, func(), error) {
	registry := stores.NewRegistry(cfg.Logger, keychain.New())

	opts, err := registry.ResolverOptions(cfg.Definition)
	if err != nil {
		return nil, nil, err
	}

	res, err := resolver.New(opts...)
	if err != nil {
		_ = registry.Close()
		return nil, nil, err
	}

	return res, func() {
		_ = res.Close()
		_ = registry.Close()
	}, nil
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(cfg *config.Config) *cobra.Command {
	return newResolveCommand(cfg, newConfiguredResolver)
}

func newResolveCommand(cfg *config.Config, newResolver resolverFactory) *cobra.Command {
	var (
		outputPath      string
		format          string
		metricsTextfile string
	)

	cmd := &cobra.Command{
		Use:   "resolve <file>",
		Short: "Resolve secret references in a configuration file",
		Long: `Resolve reads a JSON or YAML document, replaces every keyvault:// reference
with the secret it names and prints the result.

The input format is detected from the file extension; "-" reads standard
input as YAML (which also accepts JSON). The output uses the input format
unless --format is given or --output has a .json, .yaml or .yml extension.

If any reference cannot be fetched nothing is written.

Examples:
  kvresolve resolve appsettings.json
  kvresolve resolve config.yaml --output config.resolved.yaml
  cat config.yaml | kvresolve resolve - --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outFormat, err := document.ParseFormat(format)
			if err != nil {
				return kverrors.UserError{
					Message:    err.Error(),
					Suggestion: "Use --format json or --format yaml",
				}
			}

			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			doc, err := document.ReadFile(args[0], "")
			if err != nil {
				return kverrors.SimplifyError(fmt.Errorf("failed to read %s: %w", args[0], err))
			}

			switch {
			case outFormat != "":
				doc.Format = outFormat
			case outputPath != "" && outputPath != "-":
				doc.Format = document.FormatForPath(outputPath)
			}

			refs, err := resolver.Scan(doc.Tree)
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", args[0], err)
			}
			if err := checkStores(refs, cfg.Definition); err != nil {
				return err
			}

			if metricsTextfile != "" {
				metrics.InitMetrics()
				defer func() {
					if err := metrics.WriteTextfile(metricsTextfile); err != nil {
						cfg.Logger.Warn("Failed to write metrics to %s: %v", metricsTextfile, err)
					}
				}()
			}

			res, release, err := newResolver(cfg)
			if err != nil {
				return err
			}
			defer release()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Definition.Resolve.GetTimeout())
			defer cancel()

			if err := res.ResolveReferences(ctx, doc.Tree, refs); err != nil {
				return resolveError(err)
			}

			if outputPath == "" || outputPath == "-" {
				return doc.Encode(cmd.OutOrStdout())
			}
			if err := doc.WriteFile(outputPath); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputPath, err)
			}
			cfg.Logger.Info("Wrote %s", outputPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write the resolved document to this file (mode 0600) instead of stdout")
	cmd.Flags().StringVar(&format, "format", "", "Output format: json or yaml")
	cmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics for this run to a node_exporter textfile")

	return cmd
}

// checkStores fails when a reference points at a store that is not enabled;
// such hosts would otherwise fall through to Key Vault.
func checkStores(refs resolver.References, def *config.Definition) error {
	for _, key := range refs.Paths() {
		store, enabled := storeForHost(refs[key].Ref.Host, def)
		if !enabled {
			return kverrors.UserError{
				Message:    fmt.Sprintf("Reference at %s needs the %s store, which is not enabled", key, store),
				Suggestion: "Enable it in kvresolve.yaml",
			}
		}
	}
	return nil
}

// resolveError adds a store-specific suggestion to a failed pass.
func resolveError(err error) error {
	var fetchErr *resolver.FetchError
	if !errors.As(err, &fetchErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return kverrors.UserError{
				Message:    "Resolution timed out",
				Suggestion: "Raise resolve.timeout_ms in kvresolve.yaml",
				Err:        err,
			}
		}
		return err
	}

	store := ""
	if u, perr := url.Parse(fetchErr.URI); perr == nil {
		store, _ = storeForHost(u.Hostname(), nil)
	}

	return kverrors.UserError{
		Message:    fmt.Sprintf("Failed to resolve %s", fetchErr.Path),
		Details:    fetchErr.Err.Error(),
		Suggestion: kverrors.SuggestionFor(store, fetchErr.Err),
		Err:        err,
	}
}
