package core

// error_messages.go maps technical errors to user-facing messages with codes
// that can be quoted to support.
//
// # Import Run Errors (IMP001-IMP099)
//
//	IMP001 - Run active: Another import is already running
//	         Patterns: "import run already active"
//	IMP002 - No run: There is no import in progress
//	         Patterns: "no active import run"
//	IMP003 - Chunk busy: A batch of rows is being processed right now
//	         Patterns: "import chunk already in progress"
//	IMP004 - Queue full: The import queue is full
//	         Patterns: "scheduler queue full"
//
// # State Errors (STATE001-STATE099)
//
//	STATE001 - Conflict: The import changed while this request ran
//	           Patterns: "import state changed concurrently"
//	STATE002 - Corruption: The import state or its file is missing
//	           Patterns: "import state corrupted"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL003 - Required field: Required field is empty
//	         Patterns: "required field"
//	VAL004 - Missing column: Required column is missing from CSV
//	         Patterns: "missing required column"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large     Patterns: "file too large"
//	FILE002 - Invalid CSV        Patterns: "invalid csv", "csv has no header row"
//	FILE004 - No file            Patterns: "no file provided"
//	FILE005 - Empty file         Patterns: "empty file"
//	FILE006 - Bad delimiter      Patterns: "unsupported delimiter"
//
// # Asset Errors (FETCH001-FETCH099)
//
//	FETCH001 - invalid_url, FETCH002 - network, FETCH003 - unreachable,
//	FETCH004 - empty_body, FETCH005 - too_large, FETCH006 - store
//
// # Database Errors (DB004-DB007), Request Errors (UPL004-UPL005), RATE001
//
// ERR000 is the fallback when no pattern matches. Patterns are matched
// case-insensitively with strings.Contains and the first match wins.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is ordered: specific patterns come before general ones.
var errorPatterns = []errorPattern{
	// Import run
	{
		pattern: "import run already active",
		msg: UserMessage{
			Message: "Another import is already running",
			Action:  "Wait for it to finish or cancel it first",
			Code:    "IMP001",
		},
	},
	{
		pattern: "no active import run",
		msg: UserMessage{
			Message: "There is no import in progress",
			Action:  "Start a new import",
			Code:    "IMP002",
		},
	},
	{
		pattern: "import chunk already in progress",
		msg: UserMessage{
			Message: "A batch of rows is being processed right now",
			Action:  "Check the status again in a few seconds",
			Code:    "IMP003",
		},
	},
	{
		pattern: "scheduler queue full",
		msg: UserMessage{
			Message: "The import queue is full",
			Action:  "The import will resume automatically shortly",
			Code:    "IMP004",
		},
	},

	// State
	{
		pattern: "import state changed concurrently",
		msg: UserMessage{
			Message: "The import changed while this request ran",
			Action:  "Refresh the status and try again",
			Code:    "STATE001",
		},
	},
	{
		pattern: "import state corrupted",
		msg: UserMessage{
			Message: "The import could not be resumed and was stopped",
			Action:  "Upload the file again to restart the import",
			Code:    "STATE002",
		},
	},

	// Validation
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure every row has a Title and Content",
			Code:    "VAL003",
		},
	},
	{
		pattern: "missing required column",
		msg: UserMessage{
			Message: "Required column is missing from CSV",
			Action:  "The header must contain Title and Content columns",
			Code:    "VAL004",
		},
	},

	// File
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum size limit",
			Action:  "Split the file into smaller files",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Check the delimiter and quoting of the file",
			Code:    "FILE002",
		},
	},
	{
		pattern: "csv has no header row",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "The first row must be a header",
			Code:    "FILE002",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported delimiter",
		msg: UserMessage{
			Message: "The delimiter is not supported",
			Action:  "Use a comma or a semicolon",
			Code:    "FILE006",
		},
	},

	// Assets
	{
		pattern: "asset fetch invalid_url",
		msg: UserMessage{
			Message: "Image URL is not valid",
			Action:  "Use an absolute http or https URL",
			Code:    "FETCH001",
		},
	},
	{
		pattern: "asset fetch network",
		msg: UserMessage{
			Message: "Image could not be downloaded",
			Action:  "Check that the image host is reachable",
			Code:    "FETCH002",
		},
	},
	{
		pattern: "asset fetch unreachable",
		msg: UserMessage{
			Message: "Image host returned an error",
			Action:  "Check that the image URL still exists",
			Code:    "FETCH003",
		},
	},
	{
		pattern: "asset fetch empty_body",
		msg: UserMessage{
			Message: "Image download was empty",
			Action:  "Check the image URL",
			Code:    "FETCH004",
		},
	},
	{
		pattern: "asset fetch too_large",
		msg: UserMessage{
			Message: "Image is too large",
			Action:  "Use a smaller image",
			Code:    "FETCH005",
		},
	},
	{
		pattern: "asset fetch store",
		msg: UserMessage{
			Message: "Image could not be saved",
			Action:  "Check free disk space and permissions",
			Code:    "FETCH006",
		},
	},

	// Database connectivity
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},

	// Request
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try again or check your connection",
			Code:    "UPL005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},

	// Rate limiting
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It returns the first pattern match, or a generic ERR000 message.
//
// Example:
//
//	msg := MapError(core.ErrRunActive)
//	// msg.Code == "IMP001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
