package domain

import "errors"

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrNoCredentials    = errors.New("no storage credentials found")
)
