package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/config"
	"github.com/microsoftarchive/keyvault-configuration-resolver/internal/document"
	kverrors "github.com/microsoftarchive/keyvault-configuration-resolver/internal/errors"
	"github.com/microsoftarchive/keyvault-configuration-resolver/pkg/resolver"
)

// PlanEntry describes one reference found by plan.
type PlanEntry struct {
	Path    string `json:"path"`
	Store   string `json:"store"`
	Enabled bool   `json:"enabled"`
	URI     string `json:"uri"`
	Secret  string `json:"secret,omitempty"`
	Version string `json:"version,omitempty"`
	Tag     string `json:"tag,omitempty"`
}

// PlanResult is the --json output of plan.
type PlanResult struct {
	File       string      `json:"file"`
	References []PlanEntry `json:"references"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(cfg *config.Config) *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "plan <file>",
		Short: "List the secret references in a file (nothing is fetched)",
		Long: `Plan scans a JSON or YAML document and lists each keyvault:// reference with
the store that would serve it, without contacting any store. This is useful for
checking a configuration before running resolve.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			doc, err := document.ReadFile(args[0], "")
			if err != nil {
				return kverrors.SimplifyError(fmt.Errorf("failed to read %s: %w", args[0], err))
			}

			refs, err := resolver.Scan(doc.Tree)
			if err != nil {
				return fmt.Errorf("failed to scan %s: %w", args[0], err)
			}

			result := buildPlan(args[0], refs, cfg.Definition)
			if outputJSON {
				return outputPlanJSON(cmd.OutOrStdout(), result)
			}
			return outputPlanTable(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")

	return cmd
}

func buildPlan(file string, refs resolver.References, def *config.Definition) PlanResult {
	result := PlanResult{File: file, References: []PlanEntry{}}
	for _, key := range refs.Paths() {
		ref := refs[key].Ref
		store, enabled := storeForHost(ref.Host, def)
		result.References = append(result.References, PlanEntry{
			Path:    key,
			Store:   store,
			Enabled: enabled,
			URI:     ref.URI(),
			Secret:  ref.SecretName(),
			Version: ref.Version(),
			Tag:     ref.Tag,
		})
	}
	return result
}

func outputPlanJSON(w io.Writer, result PlanResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func outputPlanTable(w io.Writer, result PlanResult) error {
	if len(result.References) == 0 {
		_, err := fmt.Fprintf(w, "No secret references in %s\n", result.File)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tSTORE\tSECRET\tVERSION\tTAG\tSTATUS")

	disabled := 0
	for _, e := range result.References {
		secret := e.Secret
		if secret == "" {
			secret = e.URI
		}
		version := e.Version
		if version == "" {
			version = "latest"
		}
		tag := e.Tag
		if tag == "" {
			tag = "-"
		}
		status := "✓ OK"
		if !e.Enabled {
			status = "✗ store not enabled"
			disabled++
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", e.Path, e.Store, secret, version, tag, status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nTotal references: %d\n", len(result.References))
	if disabled > 0 {
		fmt.Fprintf(w, "References to disabled stores: %d\n", disabled)
	}
	return nil
}
