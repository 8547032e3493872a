/**
 * @description
 * Domain error taxonomy shared by the service layer.
 * Handlers map these sentinels to HTTP status codes; background workers log
 * them and continue. Services wrap underlying causes with fmt.Errorf("%w").
 */

package services

import "errors"

var (
	// ErrInvalidInput marks malformed, user-fixable input (400)
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnauthorized marks a bad/expired/missing signature or nonce (401)
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound marks an unknown entity (404)
	ErrNotFound = errors.New("not found")
	// ErrConflict marks duplicate registration or a lost optimistic-concurrency race (409)
	ErrConflict = errors.New("conflict")
	// ErrInvalidTransition marks an illegal order status transition (409 or logged-and-ignored)
	ErrInvalidTransition = errors.New("invalid status transition")
)
