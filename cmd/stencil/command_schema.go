package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the view schema synthesized from a template",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printSchema()
	},
}

func registerSchemaCommand(root *cobra.Command) {
	root.AddCommand(schemaCmd)

	schemaCmd.Flags().StringVarP(&templateFile, "template", "t", "", "Template file path")
	schemaCmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "Output format (json/yaml)")
	schemaCmd.MarkFlagRequired("template")
}

func printSchema() error {
	tmpl, err := loadTemplate()
	if err != nil {
		return err
	}

	viewSchema := tmpl.GetViewSchema()

	switch outputFormat {
	case "yaml":
		data, err := yaml.Marshal(viewSchema)
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Print(string(data))
	default:
		data, err := json.MarshalIndent(viewSchema, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Println(string(data))
	}
	return nil
}
