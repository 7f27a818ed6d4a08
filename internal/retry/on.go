package retry

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// On decides which upstream failures are worth another attempt. The condition
// names follow Envoy's retry_on vocabulary.
type On struct {
	serverError     bool
	gatewayError    bool
	connectFailure  bool
	retriable4xx    bool
	tooManyRequests bool
	statusCodes     []int
}

// NewDefaultRetryOn retries what an image host typically recovers from.
func NewDefaultRetryOn() *On {
	return &On{
		gatewayError:    true,
		connectFailure:  true,
		tooManyRequests: true,
	}
}

// ParseOn builds an On from a comma separated list such as
// "gateway-error,connect-failure,429". An empty string retries nothing.
func ParseOn(s string) (*On, error) {
	o := &On{}
	for _, condition := range strings.Split(s, ",") {
		condition = strings.TrimSpace(condition)
		switch condition {
		case "":
		case "5xx":
			o.serverError = true
		case "gateway-error":
			o.gatewayError = true
		case "connect-failure":
			o.connectFailure = true
		case "retriable-4xx":
			o.retriable4xx = true
		case "too-many-requests":
			o.tooManyRequests = true
		default:
			statusCode, err := strconv.Atoi(condition)
			if err != nil || statusCode < 100 || statusCode > 599 {
				return nil, xerrors.Errorf("invalid retry condition: %q", condition)
			}
			o.statusCodes = append(o.statusCodes, statusCode)
		}
	}
	return o, nil
}

func (o *On) CheckResponse(response *http.Response) bool {
	code := response.StatusCode
	switch {
	case o.serverError && code >= 500 && code < 600:
		return true
	case o.gatewayError && code >= 502 && code < 505:
		return true
	case o.retriable4xx && code == http.StatusConflict:
		return true
	case o.tooManyRequests && code == http.StatusTooManyRequests:
		return true
	}
	return slices.Contains(o.statusCodes, code)
}

// CheckError reports whether a transport error looks transient: a temporary
// network error or a connection dropped before any response.
func (o *On) CheckError(err error) bool {
	if !o.connectFailure && !o.serverError {
		return false
	}
	type temporary interface{ Temporary() bool }
	var terr temporary
	return (errors.As(err, &terr) && terr.Temporary()) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
