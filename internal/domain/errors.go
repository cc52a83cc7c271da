package domain

import "errors"

// Common domain errors.
var (
	ErrPodcastNotFound  = errors.New("podcast not found")
	ErrEpisodeNotFound  = errors.New("episode not found")
	ErrAlreadyExists    = errors.New("record already exists")
	ErrSessionNotFound  = errors.New("playback session not found")
	ErrNoSource         = errors.New("episode has no source for requested kind")
	ErrInvalidKind      = errors.New("invalid media kind")
	ErrControllerClosed = errors.New("playback controller closed")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrInvalidInput     = errors.New("invalid input")
)
