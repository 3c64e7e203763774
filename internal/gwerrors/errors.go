// Package gwerrors contains all common errors used by the gateway.
package gwerrors

import "fmt"

var ErrSessionParse = fmt.Errorf("cannot parse session from context")
var ErrSessionNotFound = fmt.Errorf("cannot find the session")
var ErrSessionExpired = fmt.Errorf("the session is expired")
var ErrCredentialsNotFound = fmt.Errorf("the credentials cannot be found")
var ErrPartialCredentials = fmt.Errorf("the stored credentials are incomplete")
var ErrMissingDBResource = fmt.Errorf("the requested resource cannot be found in the DB")
