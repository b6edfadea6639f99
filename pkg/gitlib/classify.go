package gitlib

import (
	"errors"
	"strings"

	"github.com/Sumatoshi-tech/locbench/pkg/process"
)

// ErrUnknownRevision marks a checkout of a commit the clone does not contain.
var ErrUnknownRevision = errors.New("unknown revision")

// unknownRevisionMarkers appear in git's stderr when a commit cannot be resolved.
var unknownRevisionMarkers = []string{
	"reference is not a tree",
	"invalid reference",
	"did not match any file(s) known to git",
	"unknown revision",
	"bad object",
	"not a valid object name",
	"unable to read tree",
	"couldn't find remote ref",
	"no such remote ref",
}

// structuralMarkers appear in git's stderr for failures that will not heal.
var structuralMarkers = []string{
	"repository not found",
	"does not appear to be a git repository",
	"not a git repository",
	"could not read username",
	"authentication failed",
	"already exists and is not an empty directory",
	"invalid refspec",
	"unknown option",
}

// Classify is the process.Classifier for git commands.
func Classify(_ process.Command, _ process.Output, err error) process.Class {
	return classifyErr(err)
}

func classifyErr(err error) process.Class {
	if err == nil {
		return process.Transient
	}

	if process.DefaultClassify(process.Command{}, process.Output{}, err) == process.Structural {
		return process.Structural
	}

	stderr := exitStderr(err)
	if stderr == "" {
		return process.Transient
	}

	if containsAny(stderr, structuralMarkers) || containsAny(stderr, unknownRevisionMarkers) {
		return process.Structural
	}

	return process.Transient
}

// IsUnknownRevision reports whether err is git failing to resolve a commit.
func IsUnknownRevision(err error) bool {
	if errors.Is(err, ErrUnknownRevision) {
		return true
	}

	return containsAny(exitStderr(err), unknownRevisionMarkers)
}

func exitStderr(err error) string {
	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) {
		return ""
	}

	return strings.ToLower(exitErr.Stderr)
}

func containsAny(s string, markers []string) bool {
	if s == "" {
		return false
	}

	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}

	return false
}
