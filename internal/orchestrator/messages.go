package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jmylchreest/xtreamer/pkg/xtream"
)

// Form and gate messages shown by the login flow.
const (
	MsgFillAllFields = "Please fill all fields"
	MsgLoginSuccess  = "Login successful! Connecting..."
)

// UserMessage converts an operation error into the string published in
// view state.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		cfgErr  *xtream.ConfigurationError
		authErr *xtream.AuthenticationError
		reqErr  *xtream.RequestError
	)
	switch {
	case errors.As(err, &cfgErr):
		return MsgFillAllFields
	case isTimeout(err):
		return "The server took too long to respond. Please try again."
	case errors.As(err, &authErr) && authErr.Err == nil:
		return "Your credentials were rejected by the server."
	case errors.As(err, &reqErr) && reqErr.StatusCode != 0:
		return fmt.Sprintf("The server returned an error (%d %s). Please try again.",
			reqErr.StatusCode, http.StatusText(reqErr.StatusCode))
	case errors.As(err, &reqErr) && reqErr.Err != nil && strings.Contains(reqErr.Err.Error(), "decoding response"):
		return "The server sent a response that could not be read."
	case errors.Is(err, xtream.ErrTransport):
		return "Could not reach the server. Check your connection and try again."
	default:
		return "Something went wrong: " + err.Error()
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionFailure(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	return errors.As(err, &opErr) || errors.As(err, &dnsErr)
}

// LoginFailureMessage is the detailed text published after a failed login:
// the target, the error, a tip for the common causes and the root cause.
func LoginFailureMessage(creds xtream.Credentials, err error, gate time.Duration) string {
	var b strings.Builder
	b.WriteString("Login Failed\n\n")
	fmt.Fprintf(&b, "Host: %s:%s\n", strings.TrimSpace(creds.Host), strings.TrimSpace(creds.Port))
	fmt.Fprintf(&b, "Username: %s\n", strings.TrimSpace(creds.Username))
	fmt.Fprintf(&b, "Error: %s\n\n", err)

	var authErr *xtream.AuthenticationError
	switch {
	case isTimeout(err):
		b.WriteString("Tip: Check your internet connection and server address\n")
	case errors.As(err, &authErr) && authErr.Err == nil:
		b.WriteString("Tip: Verify your username and password\n")
	case isConnectionFailure(err):
		b.WriteString("Tip: Check if the server is online and port is correct\n")
	}

	if errors.Unwrap(err) != nil {
		fmt.Fprintf(&b, "\nRoot cause: %s\n", rootCause(err))
	}
	if gate > 0 {
		fmt.Fprintf(&b, "\nNote: Wait at least %d seconds between attempts", int(math.Ceil(gate.Seconds())))
	}
	return b.String()
}

func rootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}
