package config

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid is returned (wrapped) when a configuration fails validation.
var ErrInvalid = errors.New("invalid config")

var validate = validator.New()

// Validate checks field ranges and cross-field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	s := c.Sources
	if !s.Screenshot.Enabled && !s.Notes.Enabled && !s.Email.Enabled && !s.Meeting.Enabled {
		return fmt.Errorf("%w: at least one source must be enabled", ErrInvalid)
	}
	if c.Scoring.Weights.Sum() <= 0 {
		return fmt.Errorf("%w: scoring weights must not all be zero", ErrInvalid)
	}
	for source, w := range c.Scoring.SourceWeights {
		if _, ok := DefaultSourceWeights[source]; !ok {
			return fmt.Errorf("%w: unknown source %q in scoring.source_weights", ErrInvalid, source)
		}
		if w < 0 {
			return fmt.Errorf("%w: source weight for %s must be non-negative", ErrInvalid, source)
		}
	}
	if s.Meeting.Enabled && s.Meeting.APIKey == "" {
		return fmt.Errorf("%w: sources.meeting.api_key (or %s) is required", ErrInvalid, EnvFirefliesAPIKey)
	}
	if s.Email.Enabled && s.Email.Password == "" {
		return fmt.Errorf("%w: sources.email.password (or %s) is required", ErrInvalid, EnvIMAPPassword)
	}
	return nil
}
