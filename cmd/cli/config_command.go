package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const (
	configCommandUseConstant              = "config"
	configCommandShortDescriptionConstant = "Print the effective configuration with secrets masked"
	configurationEncodeErrorTemplate      = "unable to encode configuration: %w"
	configurationIndentConstant           = 2
)

func (application *Application) newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   configCommandUseConstant,
		Short: configCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.printConfiguration(command)
		},
	}
}

func (application *Application) printConfiguration(command *cobra.Command) error {
	effectiveConfiguration := application.configuration
	effectiveConfiguration.Deploy = effectiveConfiguration.Deploy.Sanitize().Redacted()

	encoder := yaml.NewEncoder(command.OutOrStdout())
	encoder.SetIndent(configurationIndentConstant)
	if encodeError := encoder.Encode(effectiveConfiguration); encodeError != nil {
		return fmt.Errorf(configurationEncodeErrorTemplate, encodeError)
	}
	if closeError := encoder.Close(); closeError != nil {
		return fmt.Errorf(configurationEncodeErrorTemplate, closeError)
	}
	return nil
}
