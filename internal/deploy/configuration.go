package deploy

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hashicorp/go-multierror"

	pathutils "github.com/temirov/dedeploy/internal/utils/path"
)

const (
	defaultPlatformURLConstant            = "https://dash.example.com"
	defaultPlatformExecutableConstant     = "dds-client"
	defaultAppsRootConstant               = "apps"
	defaultIgnoreFileNameConstant         = "apps_to_ignore.txt"
	defaultRestrictedPatternConstant      = "^dashr-"
	defaultBranchConstant                 = "master"
	defaultRemoteNameConstant             = "origin"
	defaultCommitMessageTemplateConstant  = "Deployed commit: %s"
	defaultDescriptorFileConstant         = "app.json"
	defaultPredeployFileConstant          = "predeploy.py"
	defaultRuntimeFileConstant            = "runtime.txt"
	commitIdentifierPlaceholderConstant   = "%s"
	remoteRepositoryPathSegmentConstant   = "GIT"
	redactedSecretValueConstant           = "xxxxx"
	requiredValueMissingMessageConstant   = "value is required"
	invalidPatternMessageTemplateConstant = "invalid regular expression: %v"
	invalidTemplateMessageConstant        = "template must contain exactly one %s placeholder"
	invalidPlatformURLMessageTemplate     = "invalid platform URL: %v"
	platformURLSchemeMissingMessage       = "platform URL must include a scheme and host"

	platformURLFieldNameConstant           = "platform.url"
	platformUsernameFieldNameConstant      = "platform.username"
	platformAPIKeyFieldNameConstant        = "platform.api_key"
	commitIdentifierFieldNameConstant      = "deploy.commit_id"
	restrictedPatternFieldNameConstant     = "deploy.restricted_pattern"
	commitMessageTemplateFieldNameConstant = "deploy.commit_message_template"
)

// PlatformConfiguration describes how to reach the platform.
type PlatformConfiguration struct {
	URL        string `mapstructure:"url" yaml:"url"`
	Username   string `mapstructure:"username" yaml:"username"`
	APIKey     string `mapstructure:"api_key" yaml:"api_key"`
	Executable string `mapstructure:"cli" yaml:"cli"`
}

// Settings captures deploy behavior toggles and locations.
type Settings struct {
	CommitIdentifier      string `mapstructure:"commit_id" yaml:"commit_id"`
	AppsRoot              string `mapstructure:"apps_root" yaml:"apps_root"`
	BootstrapDirectory    string `mapstructure:"bootstrap_directory" yaml:"bootstrap_directory"`
	IgnoreFile            string `mapstructure:"ignore_file" yaml:"ignore_file"`
	CreateApp             bool   `mapstructure:"create_app" yaml:"create_app"`
	AllowRestricted       bool   `mapstructure:"allow_restricted" yaml:"allow_restricted"`
	AutoProvision         bool   `mapstructure:"auto_provision" yaml:"auto_provision"`
	RestrictedPattern     string `mapstructure:"restricted_pattern" yaml:"restricted_pattern"`
	Branch                string `mapstructure:"branch" yaml:"branch"`
	CommitMessageTemplate string `mapstructure:"commit_message_template" yaml:"commit_message_template"`
}

// BootstrapConfiguration names the shared files injected into non-dashr apps.
type BootstrapConfiguration struct {
	DescriptorFile string `mapstructure:"descriptor_file" yaml:"descriptor_file"`
	PredeployFile  string `mapstructure:"predeploy_file" yaml:"predeploy_file"`
	RuntimeFile    string `mapstructure:"runtime_file" yaml:"runtime_file"`
	DefaultRuntime string `mapstructure:"default_runtime" yaml:"default_runtime"`
}

// ProvisioningConfiguration lists requirement prefixes that trigger backing services.
type ProvisioningConfiguration struct {
	DatabasePrefixes []string `mapstructure:"database_prefixes" yaml:"database_prefixes"`
	CachePrefixes    []string `mapstructure:"cache_prefixes" yaml:"cache_prefixes"`
}

// RequirementsConfiguration holds advisory minimum versions for pinned packages.
type RequirementsConfiguration struct {
	MinimumVersions map[string]string `mapstructure:"minimum_versions" yaml:"minimum_versions"`
}

// GitConfiguration sets the identity recorded on deploy commits.
type GitConfiguration struct {
	AuthorName  string `mapstructure:"author_name" yaml:"author_name"`
	AuthorEmail string `mapstructure:"author_email" yaml:"author_email"`
}

// Configuration is the complete deploy configuration.
type Configuration struct {
	Platform     PlatformConfiguration     `mapstructure:"platform" yaml:"platform"`
	Deploy       Settings                  `mapstructure:"deploy" yaml:"deploy"`
	Bootstrap    BootstrapConfiguration    `mapstructure:"bootstrap" yaml:"bootstrap"`
	Provisioning ProvisioningConfiguration `mapstructure:"provisioning" yaml:"provisioning"`
	Requirements RequirementsConfiguration `mapstructure:"requirements" yaml:"requirements"`
	Git          GitConfiguration          `mapstructure:"git" yaml:"git"`
}

// DefaultConfiguration returns baseline configuration values.
func DefaultConfiguration() Configuration {
	return Configuration{
		Platform: PlatformConfiguration{
			URL:        defaultPlatformURLConstant,
			Executable: defaultPlatformExecutableConstant,
		},
		Deploy: Settings{
			AppsRoot:              defaultAppsRootConstant,
			RestrictedPattern:     defaultRestrictedPatternConstant,
			Branch:                defaultBranchConstant,
			CommitMessageTemplate: defaultCommitMessageTemplateConstant,
		},
		Bootstrap: BootstrapConfiguration{
			DescriptorFile: defaultDescriptorFileConstant,
			PredeployFile:  defaultPredeployFileConstant,
			RuntimeFile:    defaultRuntimeFileConstant,
		},
		Provisioning: ProvisioningConfiguration{
			DatabasePrefixes: []string{"psycopg2", "sqlalchemy"},
			CachePrefixes:    []string{"redis", "celery"},
		},
		Requirements: RequirementsConfiguration{MinimumVersions: map[string]string{}},
	}
}

// EnvironmentAliases maps configuration keys to the unprefixed environment variables CI pipelines already export.
func EnvironmentAliases() map[string][]string {
	return map[string][]string{
		"platform.url":            {"DASH_ENTERPRISE_URL"},
		"platform.username":       {"DASH_ENTERPRISE_USERNAME"},
		"platform.api_key":        {"DASH_ENTERPRISE_API_KEY"},
		"deploy.commit_id":        {"COMMIT_SHA", "CIRCLE_SHA1"},
		"deploy.create_app":       {"CREATE_APP"},
		"deploy.allow_restricted": {"ALLOW_DASHR"},
		"deploy.auto_provision":   {"AUTO_PROVISION"},
	}
}

// Sanitize trims values and fills blanks with defaults.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()
	sanitized := configuration

	sanitized.Platform.URL = strings.TrimRight(strings.TrimSpace(configuration.Platform.URL), "/")
	sanitized.Platform.Username = strings.TrimSpace(configuration.Platform.Username)
	sanitized.Platform.APIKey = strings.TrimSpace(configuration.Platform.APIKey)
	sanitized.Platform.Executable = valueOrDefault(configuration.Platform.Executable, defaults.Platform.Executable)

	sanitized.Deploy.CommitIdentifier = strings.TrimSpace(configuration.Deploy.CommitIdentifier)
	sanitized.Deploy.AppsRoot = valueOrDefault(configuration.Deploy.AppsRoot, defaults.Deploy.AppsRoot)
	sanitized.Deploy.BootstrapDirectory = strings.TrimSpace(configuration.Deploy.BootstrapDirectory)
	sanitized.Deploy.IgnoreFile = strings.TrimSpace(configuration.Deploy.IgnoreFile)
	sanitized.Deploy.RestrictedPattern = valueOrDefault(configuration.Deploy.RestrictedPattern, defaults.Deploy.RestrictedPattern)
	sanitized.Deploy.Branch = valueOrDefault(configuration.Deploy.Branch, defaults.Deploy.Branch)
	if len(strings.TrimSpace(configuration.Deploy.CommitMessageTemplate)) == 0 {
		sanitized.Deploy.CommitMessageTemplate = defaults.Deploy.CommitMessageTemplate
	}

	sanitized.Bootstrap.DescriptorFile = valueOrDefault(configuration.Bootstrap.DescriptorFile, defaults.Bootstrap.DescriptorFile)
	sanitized.Bootstrap.PredeployFile = valueOrDefault(configuration.Bootstrap.PredeployFile, defaults.Bootstrap.PredeployFile)
	sanitized.Bootstrap.RuntimeFile = valueOrDefault(configuration.Bootstrap.RuntimeFile, defaults.Bootstrap.RuntimeFile)
	sanitized.Bootstrap.DefaultRuntime = strings.TrimSpace(configuration.Bootstrap.DefaultRuntime)

	sanitized.Provisioning.DatabasePrefixes = sanitizeList(configuration.Provisioning.DatabasePrefixes)
	sanitized.Provisioning.CachePrefixes = sanitizeList(configuration.Provisioning.CachePrefixes)

	sanitized.Requirements.MinimumVersions = make(map[string]string, len(configuration.Requirements.MinimumVersions))
	for packageName, minimumVersion := range configuration.Requirements.MinimumVersions {
		trimmedName := strings.TrimSpace(packageName)
		trimmedVersion := strings.TrimSpace(minimumVersion)
		if len(trimmedName) == 0 || len(trimmedVersion) == 0 {
			continue
		}
		sanitized.Requirements.MinimumVersions[trimmedName] = trimmedVersion
	}

	sanitized.Git.AuthorName = strings.TrimSpace(configuration.Git.AuthorName)
	sanitized.Git.AuthorEmail = strings.TrimSpace(configuration.Git.AuthorEmail)

	return sanitized
}

// ResolvePaths anchors relative directories at workingDirectory and defaults the ignore file into the bootstrap directory.
func (configuration Configuration) ResolvePaths(resolver *pathutils.Resolver, workingDirectory string) Configuration {
	if resolver == nil {
		resolver = pathutils.NewResolver()
	}
	resolved := configuration
	resolved.Deploy.AppsRoot = resolver.Resolve(workingDirectory, configuration.Deploy.AppsRoot)
	resolved.Deploy.BootstrapDirectory = resolver.Resolve(workingDirectory, configuration.Deploy.BootstrapDirectory)
	if len(resolved.Deploy.BootstrapDirectory) == 0 {
		resolved.Deploy.BootstrapDirectory = resolver.Resolve(workingDirectory, ".")
	}
	if len(configuration.Deploy.IgnoreFile) == 0 {
		resolved.Deploy.IgnoreFile = filepath.Join(resolved.Deploy.BootstrapDirectory, defaultIgnoreFileNameConstant)
	} else {
		resolved.Deploy.IgnoreFile = resolver.Resolve(workingDirectory, configuration.Deploy.IgnoreFile)
	}
	return resolved
}

// Validate reports every missing or malformed required value.
func (configuration Configuration) Validate() error {
	var validationErrors *multierror.Error

	requiredValues := []struct {
		fieldName string
		value     string
	}{
		{fieldName: platformAPIKeyFieldNameConstant, value: configuration.Platform.APIKey},
		{fieldName: platformUsernameFieldNameConstant, value: configuration.Platform.Username},
		{fieldName: platformURLFieldNameConstant, value: configuration.Platform.URL},
		{fieldName: commitIdentifierFieldNameConstant, value: configuration.Deploy.CommitIdentifier},
	}
	for _, required := range requiredValues {
		if len(strings.TrimSpace(required.value)) == 0 {
			validationErrors = multierror.Append(validationErrors, InvalidInputError{FieldName: required.fieldName, Message: requiredValueMissingMessageConstant})
		}
	}

	if len(configuration.Platform.URL) > 0 {
		if _, urlError := configuration.platformBaseURL(); urlError != nil {
			validationErrors = multierror.Append(validationErrors, urlError)
		}
	}

	if _, compileError := regexp.Compile(configuration.Deploy.RestrictedPattern); compileError != nil {
		validationErrors = multierror.Append(validationErrors, InvalidInputError{
			FieldName: restrictedPatternFieldNameConstant,
			Message:   fmt.Sprintf(invalidPatternMessageTemplateConstant, compileError),
		})
	}

	if strings.Count(configuration.Deploy.CommitMessageTemplate, commitIdentifierPlaceholderConstant) != 1 ||
		strings.Count(configuration.Deploy.CommitMessageTemplate, "%") != 1 {
		validationErrors = multierror.Append(validationErrors, InvalidInputError{
			FieldName: commitMessageTemplateFieldNameConstant,
			Message:   invalidTemplateMessageConstant,
		})
	}

	return validationErrors.ErrorOrNil()
}

// Redacted returns a copy safe to print.
func (configuration Configuration) Redacted() Configuration {
	redacted := configuration
	if len(configuration.Platform.APIKey) > 0 {
		redacted.Platform.APIKey = redactedSecretValueConstant
	}
	return redacted
}

// SensitiveValues lists the secret in every form it can take on a command line.
func (configuration Configuration) SensitiveValues() []string {
	if len(configuration.Platform.APIKey) == 0 {
		return nil
	}
	sensitiveValues := []string{configuration.Platform.APIKey}
	escapedKey := strings.TrimPrefix(url.UserPassword("", configuration.Platform.APIKey).String(), ":")
	if escapedKey != configuration.Platform.APIKey {
		sensitiveValues = append(sensitiveValues, escapedKey)
	}
	return sensitiveValues
}

// CommitMessage renders the deploy commit message for the configured commit identifier.
func (configuration Configuration) CommitMessage() string {
	return fmt.Sprintf(configuration.Deploy.CommitMessageTemplate, configuration.Deploy.CommitIdentifier)
}

// RemoteURL builds the authenticated repository URL of an app: <platform-url>/GIT/<app-name>.
func (configuration Configuration) RemoteURL(appName string) (*url.URL, error) {
	baseURL, urlError := configuration.platformBaseURL()
	if urlError != nil {
		return nil, urlError
	}
	remoteURL := *baseURL
	remoteURL.Path = path.Join("/", baseURL.Path, remoteRepositoryPathSegmentConstant, appName)
	remoteURL.RawPath = ""
	remoteURL.User = url.UserPassword(configuration.Platform.Username, configuration.Platform.APIKey)
	return &remoteURL, nil
}

func (configuration Configuration) platformBaseURL() (*url.URL, error) {
	parsedURL, parseError := url.Parse(configuration.Platform.URL)
	if parseError != nil {
		return nil, InvalidInputError{FieldName: platformURLFieldNameConstant, Message: fmt.Sprintf(invalidPlatformURLMessageTemplate, parseError)}
	}
	if len(parsedURL.Scheme) == 0 || len(parsedURL.Host) == 0 {
		return nil, InvalidInputError{FieldName: platformURLFieldNameConstant, Message: platformURLSchemeMissingMessage}
	}
	return parsedURL, nil
}

func valueOrDefault(value string, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if len(trimmed) == 0 {
		return defaultValue
	}
	return trimmed
}

func sanitizeList(values []string) []string {
	sanitized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if len(trimmed) > 0 {
			sanitized = append(sanitized, trimmed)
		}
	}
	return sanitized
}
