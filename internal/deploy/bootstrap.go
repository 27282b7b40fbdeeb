package deploy

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

const (
	bootstrapFileMissingTemplate      = "shared bootstrap file %s not found"
	runtimeWriteErrorTemplate         = "unable to write %s: %w"
	runtimeFilePermissionsConstant    = 0o644
	bootstrapLogDescriptorKeptMessage = "Application descriptor present, keeping it"
	bootstrapLogDescriptorInjected    = "Injected shared application descriptor"
	bootstrapLogPredeployWritten      = "Wrote shared pre-deploy script"
	bootstrapLogRuntimeResolved       = "Resolved runtime file"
	logFieldFileConstant              = "file"
	logFieldRuntimeSourceConstant     = "runtime_source"
)

// RuntimeSource reports where the staged runtime file came from.
type RuntimeSource string

const (
	// RuntimeSourceApplication means the application ships its own runtime file.
	RuntimeSourceApplication RuntimeSource = "application"
	// RuntimeSourceShared means the shared bootstrap runtime file was copied.
	RuntimeSourceShared RuntimeSource = "shared"
	// RuntimeSourceDefault means the configured default runtime was written.
	RuntimeSourceDefault RuntimeSource = "default"
	// RuntimeSourceNone means no runtime file is staged.
	RuntimeSourceNone RuntimeSource = "none"
)

// BootstrapReport summarizes what the injector changed in staging.
type BootstrapReport struct {
	DescriptorInjected bool
	PredeployWritten   bool
	Runtime            RuntimeSource
}

// BootstrapInjector places the shared platform files into a staging tree.
type BootstrapInjector struct {
	logger        *zap.Logger
	directory     string
	configuration BootstrapConfiguration
}

// NewBootstrapInjector reads shared files from directory.
func NewBootstrapInjector(logger *zap.Logger, directory string, configuration BootstrapConfiguration) *BootstrapInjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BootstrapInjector{logger: logger, directory: directory, configuration: configuration}
}

// Inject keeps an application descriptor when present, always overwrites the pre-deploy script,
// and stages a runtime file only when the application does not ship one.
func (injector *BootstrapInjector) Inject(stagingDirectory string) (BootstrapReport, error) {
	report := BootstrapReport{}

	stagedDescriptor := filepath.Join(stagingDirectory, injector.configuration.DescriptorFile)
	if regularFileExists(stagedDescriptor) {
		injector.logger.Debug(bootstrapLogDescriptorKeptMessage, zap.String(logFieldFileConstant, injector.configuration.DescriptorFile))
	} else {
		if copyError := injector.copyShared(injector.configuration.DescriptorFile, stagedDescriptor); copyError != nil {
			return BootstrapReport{}, copyError
		}
		report.DescriptorInjected = true
		injector.logger.Info(bootstrapLogDescriptorInjected, zap.String(logFieldFileConstant, injector.configuration.DescriptorFile))
	}

	stagedPredeploy := filepath.Join(stagingDirectory, injector.configuration.PredeployFile)
	if copyError := injector.copyShared(injector.configuration.PredeployFile, stagedPredeploy); copyError != nil {
		return BootstrapReport{}, copyError
	}
	report.PredeployWritten = true
	injector.logger.Debug(bootstrapLogPredeployWritten, zap.String(logFieldFileConstant, injector.configuration.PredeployFile))

	runtimeSource, runtimeError := injector.stageRuntime(stagingDirectory)
	if runtimeError != nil {
		return BootstrapReport{}, runtimeError
	}
	report.Runtime = runtimeSource
	injector.logger.Debug(bootstrapLogRuntimeResolved,
		zap.String(logFieldFileConstant, injector.configuration.RuntimeFile),
		zap.String(logFieldRuntimeSourceConstant, string(runtimeSource)),
	)

	return report, nil
}

func (injector *BootstrapInjector) stageRuntime(stagingDirectory string) (RuntimeSource, error) {
	stagedRuntime := filepath.Join(stagingDirectory, injector.configuration.RuntimeFile)
	if regularFileExists(stagedRuntime) {
		return RuntimeSourceApplication, nil
	}

	sharedRuntime := filepath.Join(injector.directory, injector.configuration.RuntimeFile)
	if regularFileExists(sharedRuntime) {
		if copyError := copyFile(sharedRuntime, stagedRuntime); copyError != nil {
			return RuntimeSourceNone, copyError
		}
		return RuntimeSourceShared, nil
	}

	if len(injector.configuration.DefaultRuntime) == 0 {
		return RuntimeSourceNone, nil
	}
	if writeError := os.WriteFile(stagedRuntime, []byte(injector.configuration.DefaultRuntime+"\n"), runtimeFilePermissionsConstant); writeError != nil {
		return RuntimeSourceNone, fmt.Errorf(runtimeWriteErrorTemplate, stagedRuntime, writeError)
	}
	return RuntimeSourceDefault, nil
}

func (injector *BootstrapInjector) copyShared(fileName string, destinationPath string) error {
	sharedPath := filepath.Join(injector.directory, fileName)
	if !regularFileExists(sharedPath) {
		return InvalidInputError{FieldName: "bootstrap", Message: fmt.Sprintf(bootstrapFileMissingTemplate, sharedPath)}
	}
	return copyFile(sharedPath, destinationPath)
}
