package deploy

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const (
	appNameFieldNameConstant            = "app_name"
	appNameMissingMessageConstant       = "application name is required"
	appNameSeparatorMessageConstant     = "application name must not contain path separators"
	sourceDirectoryMissingTemplate      = "application directory %s does not exist"
	sourceDirectoryNotDirectoryTemplate = "application path %s is not a directory"
	ignoreListCommentPrefixConstant     = "#"
	assetsDirectoryNameConstant         = "assets"
	gateLogIgnoreListMissingConstant    = "Ignore list not found"
	gateLogAppIgnoredConstant           = "Application is listed in the ignore file"
	gateLogAppRestrictedConstant        = "Application matches the restricted pattern"
	gateLogRestrictedOverrideConstant   = "Restricted application deploy allowed by override"
	gateLogAssetsMissingConstant        = "Application has no assets directory"
	logFieldAppNameConstant             = "app"
	logFieldIgnoreFileConstant          = "ignore_file"
	logFieldRestrictedPatternConstant   = "restricted_pattern"
	logFieldSourceDirectoryConstant     = "source_directory"
	sourceDirectoryFieldNameConstant    = "source_directory"
	restrictedPatternCompileTemplate    = "restricted pattern: %w"
	ignoreListReadErrorTemplateConstant = "unable to read ignore list %s: %w"
	sourceDirectoryStatTemplateConstant = "unable to inspect %s: %w"
	currentDirectoryNameConstant        = "."
)

// Application describes a deploy candidate that passed the gate.
type Application struct {
	Name            string
	SourceDirectory string
	IsDashr         bool
	HasAssets       bool
}

// Gate evaluates deploy preconditions in a fixed order: name, ignore list, restricted pattern, configuration, source directory.
type Gate struct {
	logger            *zap.Logger
	configuration     Configuration
	restrictedPattern *regexp.Regexp
}

// NewGate compiles the restricted pattern of the configuration.
func NewGate(logger *zap.Logger, configuration Configuration) (*Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	restrictedPattern, compileError := regexp.Compile(configuration.Deploy.RestrictedPattern)
	if compileError != nil {
		return nil, fmt.Errorf(restrictedPatternCompileTemplate, compileError)
	}
	return &Gate{logger: logger, configuration: configuration, restrictedPattern: restrictedPattern}, nil
}

// Evaluate returns the application to deploy, a SkipError, or a fatal error.
func (gate *Gate) Evaluate(appName string) (Application, error) {
	trimmedName := strings.TrimSpace(appName)
	if len(trimmedName) == 0 {
		return Application{}, InvalidInputError{FieldName: appNameFieldNameConstant, Message: appNameMissingMessageConstant}
	}
	if strings.ContainsAny(trimmedName, `/\`) || trimmedName == currentDirectoryNameConstant || trimmedName == ".." {
		return Application{}, InvalidInputError{FieldName: appNameFieldNameConstant, Message: appNameSeparatorMessageConstant}
	}

	ignored, ignoreError := gate.isIgnored(trimmedName)
	if ignoreError != nil {
		return Application{}, ignoreError
	}
	if ignored {
		gate.logger.Warn(gateLogAppIgnoredConstant,
			zap.String(logFieldAppNameConstant, trimmedName),
			zap.String(logFieldIgnoreFileConstant, gate.configuration.Deploy.IgnoreFile),
		)
		return Application{}, SkipError{AppName: trimmedName, Reason: SkipReasonIgnored}
	}

	isDashr := gate.restrictedPattern.MatchString(trimmedName)
	if isDashr {
		if !gate.configuration.Deploy.AllowRestricted {
			gate.logger.Warn(gateLogAppRestrictedConstant,
				zap.String(logFieldAppNameConstant, trimmedName),
				zap.String(logFieldRestrictedPatternConstant, gate.restrictedPattern.String()),
			)
			return Application{}, SkipError{AppName: trimmedName, Reason: SkipReasonRestricted}
		}
		gate.logger.Info(gateLogRestrictedOverrideConstant, zap.String(logFieldAppNameConstant, trimmedName))
	}

	if validationError := gate.configuration.Validate(); validationError != nil {
		return Application{}, validationError
	}

	sourceDirectory := filepath.Join(gate.configuration.Deploy.AppsRoot, trimmedName)
	sourceInfo, statError := os.Stat(sourceDirectory)
	switch {
	case errors.Is(statError, fs.ErrNotExist):
		return Application{}, InvalidInputError{FieldName: sourceDirectoryFieldNameConstant, Message: fmt.Sprintf(sourceDirectoryMissingTemplate, sourceDirectory)}
	case statError != nil:
		return Application{}, wrapOperation(operationInspectSourceTree, fmt.Errorf(sourceDirectoryStatTemplateConstant, sourceDirectory, statError))
	case !sourceInfo.IsDir():
		return Application{}, InvalidInputError{FieldName: sourceDirectoryFieldNameConstant, Message: fmt.Sprintf(sourceDirectoryNotDirectoryTemplate, sourceDirectory)}
	}

	hasAssets := directoryExists(filepath.Join(sourceDirectory, assetsDirectoryNameConstant))
	if !hasAssets {
		gate.logger.Warn(gateLogAssetsMissingConstant,
			zap.String(logFieldAppNameConstant, trimmedName),
			zap.String(logFieldSourceDirectoryConstant, sourceDirectory),
		)
	}

	return Application{
		Name:            trimmedName,
		SourceDirectory: sourceDirectory,
		IsDashr:         isDashr,
		HasAssets:       hasAssets,
	}, nil
}

func (gate *Gate) isIgnored(appName string) (bool, error) {
	ignoreFilePath := gate.configuration.Deploy.IgnoreFile
	if len(ignoreFilePath) == 0 {
		return false, nil
	}

	ignoreFile, openError := os.Open(ignoreFilePath)
	if errors.Is(openError, fs.ErrNotExist) {
		gate.logger.Debug(gateLogIgnoreListMissingConstant, zap.String(logFieldIgnoreFileConstant, ignoreFilePath))
		return false, nil
	}
	if openError != nil {
		return false, wrapOperation(operationReadIgnoreList, fmt.Errorf(ignoreListReadErrorTemplateConstant, ignoreFilePath, openError))
	}
	defer ignoreFile.Close()

	scanner := bufio.NewScanner(ignoreFile)
	for scanner.Scan() {
		entry := strings.TrimSpace(scanner.Text())
		if len(entry) == 0 || strings.HasPrefix(entry, ignoreListCommentPrefixConstant) {
			continue
		}
		if entry == appName {
			return true, nil
		}
	}
	if scanError := scanner.Err(); scanError != nil {
		return false, wrapOperation(operationReadIgnoreList, fmt.Errorf(ignoreListReadErrorTemplateConstant, ignoreFilePath, scanError))
	}
	return false, nil
}

func directoryExists(directoryPath string) bool {
	info, statError := os.Stat(directoryPath)
	return statError == nil && info.IsDir()
}
