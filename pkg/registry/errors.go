package registry

import (
	"fmt"
	"unicode/utf8"
)

// ErrorClass represents a classification of registry failures.
type ErrorClass string

const (
	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassDecode represents a 2xx response whose body is not valid registry JSON.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassRegistry represents a well-formed response with a non-OK result.
	ErrorClassRegistry ErrorClass = "registry"
)

// maxPayloadInMessage bounds how much of a registry payload ends up in Error().
const maxPayloadInMessage = 512

// TransportError is returned when the registry could not be reached or
// answered with something other than a usable 2xx response.
type TransportError struct {
	Identifier string
	Page       int
	StatusCode int // 0 when no response was received
	ErrorClass ErrorClass
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		if e.Err != nil {
			return fmt.Sprintf("registry %s error for %s (page %d, status %d): %v",
				e.ErrorClass, e.Identifier, e.Page, e.StatusCode, e.Err)
		}
		return fmt.Sprintf("registry %s error for %s (page %d, status %d)",
			e.ErrorClass, e.Identifier, e.Page, e.StatusCode)
	}
	return fmt.Sprintf("registry %s error for %s (page %d): %v",
		e.ErrorClass, e.Identifier, e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// RegistryError is returned when the registry answered but reported a
// result other than "OK". Payload holds the raw response body.
type RegistryError struct {
	Identifier string
	Page       int
	Result     string
	Payload    []byte
}

// Error implements the error interface.
func (e *RegistryError) Error() string {
	payload := e.Payload
	if len(payload) > maxPayloadInMessage {
		cut := maxPayloadInMessage
		for cut > 0 && !utf8.RuneStart(payload[cut]) {
			cut--
		}
		payload = payload[:cut]
	}
	return fmt.Sprintf("registry returned result %q for %s (page %d): %s",
		e.Result, e.Identifier, e.Page, payload)
}
