package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/cv-publisher/internal/observability"
	"github.com/jonathan/cv-publisher/internal/types"
)

var validateTokenCmd = &cobra.Command{
	Use:   "validate-token",
	Short: "Check a Vercel token and show its account",
	Args:  cobra.NoArgs,
	RunE:  runValidateToken,
}

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List the CVs published with this tool",
	Args:  cobra.NoArgs,
	RunE:  runProjects,
}

var fetchCVCmd = &cobra.Command{
	Use:   "fetch-cv <project>",
	Short: "Download the CV document of a published project",
	Long: "Downloads cv-data.json from the project's live domain so it can be edited and " +
		"published again. Output ending in .yaml or .yml is written as YAML.",
	Args: cobra.ExactArgs(1),
	RunE: runFetchCV,
}

var (
	accountToken string
	fetchOutput  string
)

func init() {
	for _, c := range []*cobra.Command{validateTokenCmd, projectsCmd, fetchCVCmd} {
		c.Flags().StringVar(&accountToken, "token", "", "Vercel token (default: $VERCEL_TOKEN)")
		rootCmd.AddCommand(c)
	}
	fetchCVCmd.Flags().StringVarP(&fetchOutput, "out", "o", "", "Output file (default: JSON on stdout)")
}

func runValidateToken(cmd *cobra.Command, _ []string) error {
	token, err := resolveToken(accountToken)
	if err != nil {
		return err
	}
	res := newVercel().ValidateCredentials(cmd.Context(), token)
	observability.NewPrinter(cmd.OutOrStdout()).PrintAccount(res)
	if !res.Valid {
		return fmt.Errorf("token rejected: %s", res.Reason)
	}
	return nil
}

func runProjects(cmd *cobra.Command, _ []string) error {
	token, err := resolveToken(accountToken)
	if err != nil {
		return err
	}
	projects, err := newVercel().ListProjects(cmd.Context(), token)
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintProjects(projects)
	return nil
}

func runFetchCV(cmd *cobra.Command, args []string) error {
	token, err := resolveToken(accountToken)
	if err != nil {
		return err
	}
	doc, err := newVercel().FetchPublishedDocument(cmd.Context(), token, args[0])
	if err != nil {
		return err
	}
	data, err := encodeDocument(doc, fetchOutput)
	if err != nil {
		return err
	}
	return writeOutput(cmd, fetchOutput, data)
}

// encodeDocument writes YAML for .yaml/.yml targets and indented JSON
// otherwise. YAML keys follow the JSON field names.
func encodeDocument(doc *types.Document, target string) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	switch strings.ToLower(filepath.Ext(target)) {
	case ".yaml", ".yml":
		var tree any
		if err := json.Unmarshal(data, &tree); err != nil {
			return nil, fmt.Errorf("failed to encode document: %w", err)
		}
		return yaml.Marshal(tree)
	default:
		return append(data, '\n'), nil
	}
}
