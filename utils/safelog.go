// Package utils provides logging helpers that mask borrower PII in
// production. Quote payloads carry names, credit scores and property
// locations; none of that belongs in production log streams.
package utils

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
)

var (
	// IsProduction controls whether sensitive values are masked.
	IsProduction = os.Getenv("GIN_MODE") == "release" ||
		os.Getenv("ENVIRONMENT") == "production" ||
		os.Getenv("ENV") == "production"

	LogLevel = getLogLevel()
)

const (
	LogLevelDebug = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

func getLogLevel() int {
	switch strings.ToUpper(os.Getenv("LOG_LEVEL")) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

var (
	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// Dollar amounts, with or without the sign: $2,000.00, -1900.5
	amountRegex = regexp.MustCompile(`-?\$?\d{1,3}(,\d{3})*(\.\d{1,2})?\b`)

	// 5-digit US zip codes (optionally zip+4)
	zipRegex = regexp.MustCompile(`\b\d{5}(-\d{4})?\b`)

	uuidRegex = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
)

// MaskString masks emails, dollar amounts and zip codes in production.
func MaskString(input string) string {
	if !IsProduction {
		return input
	}

	result := emailRegex.ReplaceAllString(input, "***@***.***")
	result = zipRegex.ReplaceAllString(result, "*****")
	result = amountRegex.ReplaceAllString(result, "$***")
	result = uuidRegex.ReplaceAllStringFunc(result, func(id string) string {
		return id[:8] + "..."
	})
	return result
}

// MaskName masks a borrower name, keeping the first letter.
func MaskName(name string) string {
	if !IsProduction || name == "" {
		return name
	}
	return name[:1] + "***"
}

// MaskAmount masks a financial figure in production.
func MaskAmount(amount float64) string {
	if IsProduction {
		return "***"
	}
	return fmt.Sprintf("%.2f", amount)
}

func SafeDebug(format string, args ...interface{}) {
	if LogLevel > LogLevelDebug {
		return
	}
	log.Printf("[DEBUG] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeInfo(format string, args ...interface{}) {
	if LogLevel > LogLevelInfo {
		return
	}
	log.Printf("[INFO] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeWarn(format string, args ...interface{}) {
	if LogLevel > LogLevelWarn {
		return
	}
	log.Printf("[WARN] %s", MaskString(fmt.Sprintf(format, args...)))
}

func SafeError(format string, args ...interface{}) {
	log.Printf("[ERROR] %s", MaskString(fmt.Sprintf(format, args...)))
}

// LogQuoteAction records a pricing action without exposing borrower details.
func LogQuoteAction(action string, borrowerName string, loanAmount float64) {
	log.Printf("[Quote] %s - Borrower: %s Loan: %s",
		action,
		MaskName(borrowerName),
		MaskAmount(loanAmount))
}
