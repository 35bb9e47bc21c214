package catalog

// error_messages.go maps technical errors to user-facing messages with codes
// for support reference.
//
//	FILE001 - File not found             FMT001 - Unsupported format
//	FILE002 - File too large             FMT002 - Malformed file
//	FILE003 - Empty file                 ROW001 - Name missing
//	FILE004 - Unreadable file            ROW002 - Invalid price
//	CONV001 - Conversion cancelled       ROW003 - Invalid quantity
//	UPL001  - No file provided           ROW004 - Unexpected row failure
//	UPL002  - Too many conversions       HIST001 - History disabled
//	ERR000  - Unknown error              HIST002 - Conversion not found
//
// Typed errors are matched first; anything else falls through to an ordered,
// case-insensitive substring table where the first match wins.

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var (
	msgFileNotFound = UserMessage{
		Message: "The file could not be found",
		Action:  "Check the path and try again",
		Code:    "FILE001",
	}
	msgFileTooLarge = UserMessage{
		Message: "File exceeds the maximum size limit",
		Action:  "Split the catalog into smaller files",
		Code:    "FILE002",
	}
	msgNoData = UserMessage{
		Message: "The file has no product rows",
		Action:  "Make sure the file has a header row followed by data rows",
		Code:    "FILE003",
	}
	msgUnreadable = UserMessage{
		Message: "The file could not be read",
		Action:  "Check file permissions and try again",
		Code:    "FILE004",
	}
	msgUnsupported = UserMessage{
		Message: "This file type is not supported",
		Action:  "Upload a CSV, XLSX, XLS, JSON or XML file",
		Code:    "FMT001",
	}
	msgMalformed = UserMessage{
		Message: "The file is damaged or not in the format its extension claims",
		Action:  "Re-export the catalog from its source system",
		Code:    "FMT002",
	}
	msgNameMissing = UserMessage{
		Message: "Product name is empty",
		Action:  "Fill in the product name column",
		Code:    "ROW001",
	}
	msgInvalidPrice = UserMessage{
		Message: "Price is missing, zero or not a number",
		Action:  "Use a positive price such as 18,90 or 18.90",
		Code:    "ROW002",
	}
	msgInvalidQuantity = UserMessage{
		Message: "Stock quantity must be a whole number of zero or more",
		Action:  "Remove fractions and negative values from the quantity column",
		Code:    "ROW003",
	}
	msgRowUnexpected = UserMessage{
		Message: "The row could not be converted",
		Action:  "Review the row for unusual content",
		Code:    "ROW004",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is matched with strings.Contains against the lower-cased error.
// More specific patterns come first.
var errorPatterns = []errorPattern{
	{pattern: "file not found", msg: msgFileNotFound},
	{pattern: "no such file", msg: msgFileNotFound},
	{pattern: "file too large", msg: msgFileTooLarge},
	{pattern: "request body too large", msg: msgFileTooLarge},
	{pattern: "file has no data", msg: msgNoData},
	{pattern: "permission denied", msg: msgUnreadable},
	{pattern: "unsupported file format", msg: msgUnsupported},
	{pattern: "malformed file", msg: msgMalformed},
	{
		pattern: "conversion cancelled",
		msg: UserMessage{
			Message: "The conversion was cancelled",
			Action:  "Start the conversion again when ready",
			Code:    "CONV001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "The conversion took too long",
			Action:  "Try a smaller file or try again later",
			Code:    "CONV001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a catalog file to convert",
			Code:    "UPL001",
		},
	},
	{
		pattern: "history is not configured",
		msg: UserMessage{
			Message: "Conversion history is not available",
			Action:  "Set DATABASE_URL to keep a history of conversions",
			Code:    "HIST001",
		},
	},
	{
		pattern: "conversion run not found",
		msg: UserMessage{
			Message: "That conversion could not be found",
			Action:  "Check the conversion ID and try again",
			Code:    "HIST002",
		},
	},
	{
		pattern: "too many concurrent conversions",
		msg: UserMessage{
			Message: "The converter is busy",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var rowErr *RowError
	if errors.As(err, &rowErr) {
		switch rowErr.Reason {
		case ReasonNameMissing:
			return msgNameMissing
		case ReasonInvalidPrice:
			return msgInvalidPrice
		case ReasonInvalidQuantity:
			return msgInvalidQuantity
		default:
			return msgRowUnexpected
		}
	}

	switch {
	case errors.Is(err, ErrFileNotFound), errors.Is(err, fs.ErrNotExist):
		return msgFileNotFound
	case errors.Is(err, fs.ErrPermission):
		return msgUnreadable
	case errors.Is(err, ErrFileTooLarge):
		return msgFileTooLarge
	case errors.Is(err, ErrNoData):
		return msgNoData
	case errors.Is(err, ErrUnsupportedFormat):
		return msgUnsupported
	case errors.Is(err, ErrMalformed):
		return msgMalformed
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
