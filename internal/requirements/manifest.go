package requirements

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

const (
	commentPrefixConstant               = "#"
	inlineCommentSeparatorConstant      = " #"
	optionPrefixConstant                = "-"
	environmentMarkerSeparatorConstant  = ";"
	specifierSeparatorConstant          = ","
	extrasOpeningConstant               = "["
	operatorCharactersConstant          = "=<>!~"
	nameSeparatorUnderscoreConstant     = "_"
	nameSeparatorDotConstant            = "."
	nameSeparatorHyphenConstant         = "-"
	readErrorTemplateConstant           = "failed to read requirements: %w"
	openErrorTemplateConstant           = "failed to open requirements file %s: %w"
	invalidVersionErrorTemplateConstant = "invalid minimum version %q for %s: %s"
)

// Requirement is one dependency line such as "psycopg2-binary==2.9.9".
type Requirement struct {
	Name     string
	Operator string
	Version  string
	Line     int
}

// Manifest is the parsed content of a requirements file.
type Manifest struct {
	Requirements []Requirement
}

// OutdatedPin reports a requirement whose lower bound is older than the configured minimum.
type OutdatedPin struct {
	Name    string
	Pinned  string
	Minimum string
}

// InvalidVersionError reports a configured minimum that is not a semantic version.
type InvalidVersionError struct {
	Name    string
	Version string
	Cause   error
}

// Error describes the invalid version.
func (versionError InvalidVersionError) Error() string {
	return fmt.Sprintf(invalidVersionErrorTemplateConstant, versionError.Version, versionError.Name, versionError.Cause)
}

// Unwrap exposes the parse failure.
func (versionError InvalidVersionError) Unwrap() error {
	return versionError.Cause
}

// operatorsByPrecedence lists longer operators first so "==" is never read as "=".
var operatorsByPrecedence = []string{"===", "==", "~=", ">=", "<=", "!=", ">", "<", "="}

// lowerBoundOperators name the operators whose version is the oldest acceptable release.
var lowerBoundOperators = map[string]struct{}{"===": {}, "==": {}, "~=": {}, ">=": {}, "=": {}}

// Parse reads requirement lines, ignoring comments, blank lines and pip options.
func Parse(reader io.Reader) (Manifest, error) {
	manifest := Manifest{}
	scanner := bufio.NewScanner(reader)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		requirement, recognized := parseLine(scanner.Text())
		if !recognized {
			continue
		}
		requirement.Line = lineNumber
		manifest.Requirements = append(manifest.Requirements, requirement)
	}
	if scanError := scanner.Err(); scanError != nil {
		return Manifest{}, fmt.Errorf(readErrorTemplateConstant, scanError)
	}
	return manifest, nil
}

// ParseFile parses the requirements file at filePath. A missing file yields an empty manifest and found=false.
func ParseFile(filePath string) (manifest Manifest, found bool, parseError error) {
	file, openError := os.Open(filePath)
	if openError != nil {
		if errors.Is(openError, os.ErrNotExist) {
			return Manifest{}, false, nil
		}
		return Manifest{}, false, fmt.Errorf(openErrorTemplateConstant, filePath, openError)
	}
	defer file.Close()

	manifest, parseError = Parse(file)
	if parseError != nil {
		return Manifest{}, true, parseError
	}
	return manifest, true, nil
}

// MatchesAnyPrefix reports whether any requirement name starts with one of prefixes, ignoring case.
func (manifest Manifest) MatchesAnyPrefix(prefixes []string) bool {
	for _, requirement := range manifest.Requirements {
		lowerName := strings.ToLower(requirement.Name)
		for _, prefix := range prefixes {
			trimmedPrefix := strings.ToLower(strings.TrimSpace(prefix))
			if len(trimmedPrefix) > 0 && strings.HasPrefix(lowerName, trimmedPrefix) {
				return true
			}
		}
	}
	return false
}

// CheckMinimums compares lower-bound pins against minimums keyed by package name.
// Pins that are not semantic versions are ignored; an invalid minimum is an error.
func (manifest Manifest) CheckMinimums(minimums map[string]string) ([]OutdatedPin, error) {
	minimumVersions := make(map[string]*semver.Version, len(minimums))
	minimumLabels := make(map[string]string, len(minimums))
	for name, rawVersion := range minimums {
		minimumVersion, versionError := semver.NewVersion(strings.TrimSpace(rawVersion))
		if versionError != nil {
			return nil, InvalidVersionError{Name: name, Version: rawVersion, Cause: versionError}
		}
		canonicalName := canonicalPackageName(name)
		minimumVersions[canonicalName] = minimumVersion
		minimumLabels[canonicalName] = strings.TrimSpace(rawVersion)
	}

	var outdated []OutdatedPin
	for _, requirement := range manifest.Requirements {
		canonicalName := canonicalPackageName(requirement.Name)
		minimumVersion, tracked := minimumVersions[canonicalName]
		if !tracked {
			continue
		}
		if _, lowerBound := lowerBoundOperators[requirement.Operator]; !lowerBound {
			continue
		}
		pinnedVersion, versionError := semver.NewVersion(requirement.Version)
		if versionError != nil {
			continue
		}
		if pinnedVersion.LessThan(minimumVersion) {
			outdated = append(outdated, OutdatedPin{Name: requirement.Name, Pinned: requirement.Version, Minimum: minimumLabels[canonicalName]})
		}
	}

	sort.Slice(outdated, func(leftIndex int, rightIndex int) bool {
		return outdated[leftIndex].Name < outdated[rightIndex].Name
	})
	return outdated, nil
}

func parseLine(rawLine string) (Requirement, bool) {
	line := strings.TrimSpace(rawLine)
	if index := strings.Index(line, inlineCommentSeparatorConstant); index >= 0 {
		line = strings.TrimSpace(line[:index])
	}
	if len(line) == 0 || strings.HasPrefix(line, commentPrefixConstant) || strings.HasPrefix(line, optionPrefixConstant) {
		return Requirement{}, false
	}
	if index := strings.Index(line, environmentMarkerSeparatorConstant); index >= 0 {
		line = strings.TrimSpace(line[:index])
	}
	if index := strings.Index(line, specifierSeparatorConstant); index >= 0 {
		line = strings.TrimSpace(line[:index])
	}

	operatorIndex := strings.IndexAny(line, operatorCharactersConstant)
	if operatorIndex < 0 {
		return Requirement{Name: stripExtras(line)}, len(stripExtras(line)) > 0
	}

	name := stripExtras(strings.TrimSpace(line[:operatorIndex]))
	if len(name) == 0 {
		return Requirement{}, false
	}
	remainder := line[operatorIndex:]
	for _, operator := range operatorsByPrecedence {
		if strings.HasPrefix(remainder, operator) {
			return Requirement{Name: name, Operator: operator, Version: strings.TrimSpace(strings.TrimPrefix(remainder, operator))}, true
		}
	}
	return Requirement{Name: name}, true
}

func stripExtras(name string) string {
	if index := strings.Index(name, extrasOpeningConstant); index >= 0 {
		name = name[:index]
	}
	return strings.TrimSpace(name)
}

func canonicalPackageName(name string) string {
	replacer := strings.NewReplacer(nameSeparatorUnderscoreConstant, nameSeparatorHyphenConstant, nameSeparatorDotConstant, nameSeparatorHyphenConstant)
	return strings.ToLower(replacer.Replace(strings.TrimSpace(name)))
}
