// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns network failures reaching a backend (database, language
// model API, metrics server) into user-friendly troubleshooting messages.
package httperrors

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"seedfast/querygate/internal/logging"

	"github.com/pterm/pterm"
)

// Cause is the detected category of a network failure.
type Cause string

const (
	CauseTimeout Cause = "timeout"
	CauseDNS     Cause = "dns"
	CauseRefused Cause = "connection-refused"
	CauseTLS     Cause = "tls"
	CauseAuth    Cause = "authentication"
	CauseServer  Cause = "server-error"
	CauseOther   Cause = "other"
)

// Classify detects the cause of err. Checks run from most to least specific.
func Classify(err error) Cause {
	switch {
	case err == nil:
		return ""
	case isTimeoutError(err):
		return CauseTimeout
	case isDNSError(err):
		return CauseDNS
	case isConnectionRefusedError(err):
		return CauseRefused
	case isSSLError(err):
		return CauseTLS
	case isAuthError(err.Error()):
		return CauseAuth
	case isServerError(err.Error()):
		return CauseServer
	}
	return CauseOther
}

// FormatNetworkError displays a troubleshooting message for err and returns it
// wrapped. target names the backend ("the database"), action what was being done
// ("verifying the connection").
func FormatNetworkError(err error, target, action string) error {
	if err == nil {
		return nil
	}
	cause := Classify(err)
	pterm.Println(Describe(cause, target, action))
	for _, h := range Hints(cause) {
		pterm.Println("  • " + h)
	}
	pterm.Println()
	pterm.Debug.Printf("Technical details: %s\n", shorten(logging.Mask(err.Error()), 160))
	return fmt.Errorf("%s failed: %w", action, err)
}

// Describe returns the one-line headline for cause.
func Describe(cause Cause, target, action string) string {
	switch cause {
	case CauseTimeout:
		return fmt.Sprintf("⏱️  %s took too long to respond while %s", capitalize(target), action)
	case CauseDNS:
		return fmt.Sprintf("🌐 Cannot resolve the address of %s while %s", target, action)
	case CauseRefused:
		return fmt.Sprintf("🚫 %s refused the connection while %s", capitalize(target), action)
	case CauseTLS:
		return fmt.Sprintf("🔒 Secure connection to %s failed while %s", target, action)
	case CauseAuth:
		return fmt.Sprintf("🔑 %s rejected the credentials while %s", capitalize(target), action)
	case CauseServer:
		return fmt.Sprintf("⚠️  %s reported an internal error while %s", capitalize(target), action)
	}
	return fmt.Sprintf("❌ Cannot reach %s while %s", target, action)
}

// Hints returns troubleshooting steps for cause.
func Hints(cause Cause) []string {
	switch cause {
	case CauseTimeout:
		return []string{"Slow network or an overloaded server", "A firewall silently dropping the connection", "Raise the matching value under 'timeouts' in the config file"}
	case CauseDNS:
		return []string{"Check the host name for typos", "Check your DNS settings and VPN"}
	case CauseRefused:
		return []string{"The service may be down", "Check the host and port", "A firewall may be blocking the port"}
	case CauseTLS:
		return []string{"Check the server certificate and sslmode", "Check your system date and time", "Check proxy settings"}
	case CauseAuth:
		return []string{"Check the user name and password or API key", "Run 'querygate login' or 'querygate connect' again"}
	case CauseServer:
		return []string{"The problem is on the server side", "Try again in a few minutes"}
	}
	return []string{"Check your network connection", "Check the configured address"}
}

func isTimeoutError(err error) bool {
	errStr := strings.ToLower(err.Error())
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "tls") ||
		strings.Contains(errStr, "ssl") ||
		strings.Contains(errStr, "certificate") ||
		strings.Contains(errStr, "handshake")
}

func isAuthError(errStr string) bool {
	lower := strings.ToLower(errStr)
	return strings.Contains(lower, "password authentication failed") ||
		strings.Contains(lower, "401") ||
		strings.Contains(lower, "unauthorized") ||
		strings.Contains(lower, "invalid x-api-key") ||
		strings.Contains(lower, "api key not valid")
}

func isServerError(errStr string) bool {
	lower := strings.ToLower(errStr)
	return strings.Contains(lower, "500") ||
		strings.Contains(lower, "502") ||
		strings.Contains(lower, "503") ||
		strings.Contains(lower, "504") ||
		strings.Contains(lower, "internal server error") ||
		strings.Contains(lower, "bad gateway") ||
		strings.Contains(lower, "service unavailable") ||
		strings.Contains(lower, "overloaded")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func shorten(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
