package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hcext/internal/tmpl"
)

var (
	templateDataFile string
	templateVariable string
)

var templateCmd = &cobra.Command{
	Use:   "template <file>",
	Short: "Compile a micro-template and render it",
	Long: `Compiles the micro-template in <file> and renders it with the JSON object
read from --data. With --show-source the generated code is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		opts := []tmpl.Option{tmpl.Name(args[0])}
		if templateVariable != "" {
			opts = append(opts, tmpl.Variable(templateVariable))
		}
		t, err := tmpl.Compile(string(text), opts...)
		if err != nil {
			return err
		}
		if showSource, _ := cmd.Flags().GetBool("show-source"); showSource {
			fmt.Fprintln(cmd.OutOrStdout(), t.Source())
			return nil
		}

		data := map[string]any{}
		if templateDataFile != "" {
			b, err := os.ReadFile(templateDataFile)
			if err != nil {
				return err
			}
			if err := json.Unmarshal(b, &data); err != nil {
				return fmt.Errorf("reading data %s: %w", templateDataFile, err)
			}
		}
		out, err := t.ExecuteContext(cmd.Context(), data)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	templateCmd.Flags().StringVar(&templateDataFile, "data", "", "JSON file with template data")
	templateCmd.Flags().StringVar(&templateVariable, "variable", "", "bind the data to this variable name")
	templateCmd.Flags().Bool("show-source", false, "print the generated code")
	rootCmd.AddCommand(templateCmd)
}
