package kaggle

import (
	"errors"
	"fmt"
)

// Errors returned by the Kaggle client.
//
//	if errors.Is(err, kaggle.ErrNoCredentials) {
//	    // point the user at ~/.kaggle/kaggle.json
//	}
var (
	// ErrNoCredentials is returned when neither the environment nor
	// kaggle.json provides a username and key.
	ErrNoCredentials = errors.New("kaggle credentials not found")

	// ErrInvalidSlug is returned for dataset slugs not shaped owner/name.
	ErrInvalidSlug = errors.New("invalid dataset slug")

	// ErrUnauthorized is returned when the API rejects the credentials.
	ErrUnauthorized = errors.New("kaggle rejected credentials")

	// ErrNotFound is returned when the dataset does not exist.
	ErrNotFound = errors.New("dataset not found")
)

// APIError carries a non-2xx response from the Kaggle API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("kaggle api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("kaggle api returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps well-known status codes onto sentinel errors.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 401, 403:
		return ErrUnauthorized
	case 404:
		return ErrNotFound
	}
	return nil
}
