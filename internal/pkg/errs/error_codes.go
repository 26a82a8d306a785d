/*
Package errs provides custom error types and application-level error code constants.

These error codes identify business and system errors both inside the server and in the
JSON and WebSocket envelopes exchanged with viewers.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006
)

// 2xxx: Display Name Errors
const (
	// ErrEmptyDisplayName indicates a blank display name candidate.
	ErrEmptyDisplayName = 2101

	// ErrNameTaken indicates the display name is claimed by another identity.
	ErrNameTaken = 2102

	// ErrLookupFailed indicates the registry could not be consulted. Validation fails closed on it.
	ErrLookupFailed = 2103

	// ErrNameNotFound indicates no record is registered for the identity.
	ErrNameNotFound = 2104

	// ErrDisplayNameTooLong indicates the candidate exceeds the display name length limit.
	ErrDisplayNameTooLong = 2105
)

// 3xxx: Chat Message Errors
const (
	// ErrMessageEmpty indicates the message text is blank after trimming.
	ErrMessageEmpty = 3001

	// ErrMessageContentTooLong indicates that the message content exceeded the maximum length limit.
	ErrMessageContentTooLong = 3002

	// ErrMessageBlocked indicates the message contains a hard-blocked phrase.
	ErrMessageBlocked = 3003

	// ErrStorageFailed indicates the message log rejected an append or fetch.
	ErrStorageFailed = 3004

	// ErrStaleView indicates an async result arrived after its view was closed.
	ErrStaleView = 3005
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
