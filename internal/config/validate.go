// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidFile is returned when the YAML file cannot be decoded.
	ErrInvalidFile = errors.New("invalid config file")
	// ErrInvalidOptions wraps every validation failure.
	ErrInvalidOptions = errors.New("invalid options")
)

// SupportedSchemes lists the URL schemes a transport exists for.
var SupportedSchemes = []string{"http", "https", "ws", "wss"}

// Validate checks option ranges. An empty URL is valid: Play may supply one.
func Validate(o Options) error {
	var errs []error
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %d", o.Timeout))
	}
	if o.VideoBuffer < 0 {
		errs = append(errs, fmt.Errorf("videoBuffer must not be negative, got %d", o.VideoBuffer))
	}
	if o.URL != "" {
		if err := ValidateURL(o.URL); err != nil {
			errs = append(errs, err)
		}
	}
	if o.LogLevel != "" {
		if _, err := zerolog.ParseLevel(o.LogLevel); err != nil {
			errs = append(errs, fmt.Errorf("logLevel %q: %v", o.LogLevel, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidOptions, errors.Join(errs...))
}

// ValidateURL checks that raw is absolute and uses a supported scheme.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	for _, s := range SupportedSchemes {
		if scheme == s {
			if u.Host == "" {
				return fmt.Errorf("url %q has no host", raw)
			}
			return nil
		}
	}
	return fmt.Errorf("url scheme %q not supported (want one of %s)", u.Scheme, strings.Join(SupportedSchemes, ", "))
}
