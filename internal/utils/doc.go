// Package utils exposes the ambient plumbing shared by dedeploy commands.
//
// ConfigurationLoader layers embedded defaults, an optional YAML file, dotenv
// files and environment variables (including legacy alias names) through Viper.
// LoggerFactory builds zap loggers in structured or console form.
package utils
