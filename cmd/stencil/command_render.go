package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sourceplane/stencil/internal/template"
	"gopkg.in/yaml.v3"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a template with a parameter file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderTemplate()
	},
}

func registerRenderCommand(root *cobra.Command) {
	root.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&templateFile, "template", "t", "", "Template file path")
	renderCmd.Flags().StringVarP(&parametersFile, "parameters", "p", "", "Parameter file path (YAML/JSON)")
	renderCmd.MarkFlagRequired("template")
}

func renderTemplate() error {
	tmpl, err := loadTemplate()
	if err != nil {
		return err
	}

	view, err := loadParameters()
	if err != nil {
		return err
	}

	output, err := tmpl.Render(view)
	if err != nil {
		return err
	}

	fmt.Println(output)
	return nil
}

// loadTemplate reads the template file and compiles it, using the
// schema directory for external type references when provided
func loadTemplate() (*template.Template, error) {
	data, err := os.ReadFile(templateFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file: %w", err)
	}

	var provider template.SchemaProvider
	if schemaDir != "" {
		provider = template.NewFSSchemaProvider(schemaDir)
	}
	return template.LoadFromSource(string(data), provider)
}

// loadParameters reads the optional parameter file
func loadParameters() (map[string]interface{}, error) {
	if parametersFile == "" {
		return map[string]interface{}{}, nil
	}

	data, err := os.ReadFile(parametersFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read parameter file: %w", err)
	}

	var view map[string]interface{}
	if err := yaml.Unmarshal(data, &view); err != nil {
		return nil, fmt.Errorf("failed to parse parameter file: %w", err)
	}
	return view, nil
}
