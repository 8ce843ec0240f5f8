package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/sourceplane/stencil/internal/template"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a parameter file against a template's view schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateParameters()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&templateFile, "template", "t", "", "Template file path")
	validateCmd.Flags().StringVarP(&parametersFile, "parameters", "p", "", "Parameter file path (YAML/JSON)")
	validateCmd.MarkFlagRequired("template")
}

func validateParameters() error {
	tmpl, err := loadTemplate()
	if err != nil {
		return err
	}

	view, err := loadParameters()
	if err != nil {
		return err
	}

	if err := tmpl.ValidateView(view); err != nil {
		var ve *template.ViewValidationError
		if errors.As(err, &ve) {
			fmt.Println("✗ Parameters are invalid:")
			for _, issue := range ve.Issues {
				fmt.Printf("  - %s: %s\n", issue.Location, issue.Message)
			}
			return fmt.Errorf("validation failed")
		}
		return err
	}

	fmt.Println("✓ Parameters are valid")
	return nil
}
