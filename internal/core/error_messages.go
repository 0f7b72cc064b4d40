package core

// error_messages.go maps errors to short user-facing messages with a code
// that operators can search for in the logs.
//
// Classified errors (*Error or a bare Kind) map by kind:
//
//	QRY001 - No valid filters provided             (EMPTY_CRITERIA)
//	QRY002 - A filter or page value is invalid     (INVALID_CRITERIA)
//	QRY003 - Nothing matched                       (NO_DATA)
//	QRY004 - Unknown report                        (UNKNOWN_REPORT)
//	ING001 - A record was rejected                 (RECORD_REJECTED)
//	ING002 - A field could not be normalized       (NORMALIZATION_FAILURE)
//	ING003 - The input could not be read           (STREAM_FAILURE)
//	DB001  - A record could not be saved           (PERSISTENCE_ERROR)
//	DB004  - The database is unreachable           (STORE_UNAVAILABLE)
//
// Anything else is matched case-insensitively against errorPatterns, first
// match wins. ERR000 is the fallback; look up the original error in the logs.

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage is an error rendered for end users.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

var kindMessages = map[Kind]UserMessage{
	ErrEmptyCriteria: {
		Message: "No valid filters provided",
		Action:  "Supply at least one recognized filter, or list all postings instead",
		Code:    "QRY001",
	},
	ErrInvalidCriteria: {
		Message: "A filter or page value is invalid",
		Action:  "Use positive integers for page and limit and YYYY-MM-DD for dates",
		Code:    "QRY002",
	},
	ErrNoData: {
		Message: "No job postings found for the given criteria",
		Action:  "Broaden the filters or ingest more data",
		Code:    "QRY003",
	},
	ErrUnknownReport: {
		Message: "Unknown report",
		Action:  "List the available reports and pick one of those names",
		Code:    "QRY004",
	},
	ErrRecordRejected: {
		Message: "A record was rejected",
		Action:  "Check the record's Job ID and JobOpeningDate",
		Code:    "ING001",
	},
	ErrNormalization: {
		Message: "A field could not be normalized and was defaulted",
		Action:  "Review the raw value in the ingestion report",
		Code:    "ING002",
	},
	ErrStream: {
		Message: "The input file could not be read",
		Action:  "Ensure the file is a comma-separated file with a header row",
		Code:    "ING003",
	},
	ErrPersistence: {
		Message: "A record could not be saved",
		Action:  "Retry the ingestion; records are upserted so reruns are safe",
		Code:    "DB001",
	},
	ErrStoreUnavailable: {
		Message: "Unable to connect to the database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	},
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches unclassified errors from drivers and the runtime.
// More specific patterns must come first.
var errorPatterns = []errorPattern{
	{"duplicate key", UserMessage{
		Message: "A record with this key already exists",
		Action:  "Retry; concurrent writers raced on the same key",
		Code:    "DB002",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to the database",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB005",
	}},
	{"server selection error", UserMessage{
		Message: "Unable to reach the document store",
		Action:  "Please try again in a few moments",
		Code:    "DB004",
	}},
	{"too many ingestion runs", UserMessage{
		Message: "System is busy processing other ingestion runs",
		Action:  "Please wait a moment and try again",
		Code:    "ING004",
	}},
	{"file too large", UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller chunks",
		Code:    "FILE001",
	}},
	{"no file provided", UserMessage{
		Message: "No file was provided",
		Action:  "Attach a CSV file as the 'file' form field or the request body",
		Code:    "FILE004",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or a narrower filter",
		Code:    "REQ002",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB006",
	}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts err to a UserMessage. A nil error maps to the zero value.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if msg, ok := kindMessages[KindOf(err)]; ok {
		var e *Error
		if errors.As(err, &e) && e.Message != "" && e.Kind != ErrStoreUnavailable && e.Kind != ErrPersistence {
			msg.Message = e.Message
		}
		return msg
	}

	text := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(text, ep.pattern) {
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

// IsUserFacing reports whether err maps to something other than ERR000.
func IsUserFacing(err error) bool {
	return err != nil && MapError(err).Code != defaultMessage.Code
}
