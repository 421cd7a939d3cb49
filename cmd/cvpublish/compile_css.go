package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-publisher/internal/rendering"
	"github.com/jonathan/cv-publisher/internal/styles"
)

var compileCSSCmd = &cobra.Command{
	Use:   "compile-css [token...]",
	Short: "Compile utility class tokens into a stylesheet",
	Long: "Compiles the given class tokens, or every class found in --from-html, into the " +
		"stylesheet the page needs. Tokens without a utility rule are reported on stderr.",
	RunE: runCompileCSS,
}

var (
	compileFromHTML  string
	compileDarkMedia bool
	compileNoMinify  bool
	compileOutput    string
)

func init() {
	compileCSSCmd.Flags().StringVar(&compileFromHTML, "from-html", "", "Read class tokens from an HTML file")
	compileCSSCmd.Flags().BoolVar(&compileDarkMedia, "dark-media", false, "Make dark: follow prefers-color-scheme instead of [data-theme=dark]")
	compileCSSCmd.Flags().BoolVar(&compileNoMinify, "no-minify", false, "Write readable CSS")
	compileCSSCmd.Flags().StringVarP(&compileOutput, "out", "o", "", "Output CSS file (default: stdout)")

	rootCmd.AddCommand(compileCSSCmd)
}

func runCompileCSS(cmd *cobra.Command, args []string) error {
	var tokens []string
	for _, arg := range args {
		tokens = append(tokens, strings.Fields(arg)...)
	}
	if compileFromHTML != "" {
		data, err := os.ReadFile(compileFromHTML)
		if err != nil {
			return fmt.Errorf("failed to read HTML: %w", err)
		}
		found, err := rendering.ExtractClassTokens(string(data))
		if err != nil {
			return err
		}
		tokens = append(tokens, found...)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no class tokens given: pass tokens or --from-html")
	}

	res := styles.NewCompiler(slog.Default()).Compile(tokens, styles.Options{
		Minify:   !compileNoMinify,
		DarkMode: compileDarkMedia || cfg.DarkMode,
	})
	for _, u := range res.Unknown {
		fmt.Fprintf(cmd.ErrOrStderr(), "unknown class: %s\n", u)
	}

	css := res.CSS
	if !strings.HasSuffix(css, "\n") {
		css += "\n"
	}
	return writeOutput(cmd, compileOutput, []byte(css))
}
