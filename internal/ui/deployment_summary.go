package ui

import (
	"fmt"
	"io"
	"strings"
)

const (
	outcomeSkippedConstant            = "skipped"
	outcomeUpToDateConstant           = "up to date"
	outcomePushedConstant             = "pushed"
	outcomeForcePushedConstant        = "force pushed, history replaced"
	outcomeFailedConstant             = "failed"
	summaryHeadlineTemplateConstant   = "%s: %s\n"
	summarySkipHeadlineTemplate       = "%s: %s (%s)\n"
	summaryDetailTemplateConstant     = "  %s: %s\n"
	summaryRepositoryLabelConstant    = "repository"
	summaryCommitLabelConstant        = "commit"
	summaryServicesLabelConstant      = "services"
	summaryAppLabelConstant           = "app"
	summaryAppCreatedValueConstant    = "created"
	summaryServiceCreatedTemplate     = "%s (created)"
	summaryServiceSeparatorConstant   = ", "
	summaryDashrLabelConstant         = "dashr"
	summaryDashrValueConstant         = "bootstrap files and provisioning skipped"
	summaryWriteErrorTemplateConstant = "unable to write deployment summary: %w"
)

// SyncResult mirrors the terminal synchronization states shown to users.
type SyncResult string

// Known synchronization results.
const (
	SyncResultNoop        SyncResult = "NOOP"
	SyncResultPushed      SyncResult = "PUSHED"
	SyncResultForcePushed SyncResult = "FORCE_PUSHED"
	SyncResultPushFailed  SyncResult = "PUSH_FAILED"
)

// ServiceSummary names a backing service touched by the deploy.
type ServiceSummary struct {
	Name    string
	Created bool
}

// DeploymentSummary is the printable view of one deploy.
type DeploymentSummary struct {
	AppName         string
	SkipReason      string
	RepositoryState string
	SyncResult      SyncResult
	CommitMessage   string
	AppCreated      bool
	IsDashr         bool
	Services        []ServiceSummary
}

// SummaryPrinter writes deployment summaries as short plain-text blocks.
type SummaryPrinter struct {
	writer io.Writer
}

// NewSummaryPrinter constructs a printer writing to writer. A nil writer discards output.
func NewSummaryPrinter(writer io.Writer) *SummaryPrinter {
	if writer == nil {
		writer = io.Discard
	}
	return &SummaryPrinter{writer: writer}
}

// Print renders summary.
func (printer *SummaryPrinter) Print(summary DeploymentSummary) error {
	var builder strings.Builder

	if len(summary.SkipReason) > 0 {
		fmt.Fprintf(&builder, summarySkipHeadlineTemplate, summary.AppName, outcomeSkippedConstant, summary.SkipReason)
		return printer.write(builder.String())
	}

	fmt.Fprintf(&builder, summaryHeadlineTemplateConstant, summary.AppName, describeSyncResult(summary.SyncResult))
	if summary.AppCreated {
		fmt.Fprintf(&builder, summaryDetailTemplateConstant, summaryAppLabelConstant, summaryAppCreatedValueConstant)
	}
	if len(summary.RepositoryState) > 0 {
		fmt.Fprintf(&builder, summaryDetailTemplateConstant, summaryRepositoryLabelConstant, strings.ToLower(summary.RepositoryState))
	}
	if len(summary.CommitMessage) > 0 {
		fmt.Fprintf(&builder, summaryDetailTemplateConstant, summaryCommitLabelConstant, summary.CommitMessage)
	}
	if len(summary.Services) > 0 {
		serviceLabels := make([]string, 0, len(summary.Services))
		for _, service := range summary.Services {
			if service.Created {
				serviceLabels = append(serviceLabels, fmt.Sprintf(summaryServiceCreatedTemplate, service.Name))
				continue
			}
			serviceLabels = append(serviceLabels, service.Name)
		}
		fmt.Fprintf(&builder, summaryDetailTemplateConstant, summaryServicesLabelConstant, strings.Join(serviceLabels, summaryServiceSeparatorConstant))
	}
	if summary.IsDashr {
		fmt.Fprintf(&builder, summaryDetailTemplateConstant, summaryDashrLabelConstant, summaryDashrValueConstant)
	}

	return printer.write(builder.String())
}

func (printer *SummaryPrinter) write(text string) error {
	if _, writeError := io.WriteString(printer.writer, text); writeError != nil {
		return fmt.Errorf(summaryWriteErrorTemplateConstant, writeError)
	}
	return nil
}

func describeSyncResult(result SyncResult) string {
	switch result {
	case SyncResultNoop:
		return outcomeUpToDateConstant
	case SyncResultPushed:
		return outcomePushedConstant
	case SyncResultForcePushed:
		return outcomeForcePushedConstant
	default:
		return outcomeFailedConstant
	}
}
