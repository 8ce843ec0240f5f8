package main

import "github.com/spf13/cobra"

var (
	templateFile   string
	parametersFile string
	schemaDir      string
	outputFormat   string
)

var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Compile and render parameterized configuration templates",
	Long:  "stencil compiles logic-less templates into view schemas and renders validated parameter sets into declarative configuration documents",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&schemaDir, "schema-dir", "s", "", "Directory of external type schemas referenced by templates")

	registerRenderCommand(rootCmd)
	registerSchemaCommand(rootCmd)
	registerValidateCommand(rootCmd)
}
