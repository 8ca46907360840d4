package lncore

import "errors"

var (
	// ErrInvalidPeerInfo is a peer address string that didn't parse.
	ErrInvalidPeerInfo = errors.New("invalid peer info")

	// ErrFailedPeerConnection covers every way a dial to a peer can fail.
	ErrFailedPeerConnection = errors.New("failed peer connection")

	// ErrInvalidInvoiceState means the invoice isn't in a state where the
	// operation is allowed.
	ErrInvalidInvoiceState = errors.New("invalid invoice state")

	// ErrInvalidPreimage means the preimage doesn't hash to the payment hash.
	ErrInvalidPreimage = errors.New("invalid preimage")

	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvoiceAlreadyExists = errors.New("invoice already exists")

	// ErrBootstrapFailed means the tor client never came up.
	ErrBootstrapFailed = errors.New("tor bootstrap failed")

	// ErrInvalidInput is for malformed arguments that aren't peer addresses.
	ErrInvalidInput = errors.New("invalid input")
)

// ErrorClass splits errors into the caller's fault and ours.
type ErrorClass int

const (
	// ServerError is anything internal, transport or bootstrap related.
	ServerError ErrorClass = iota

	// ClientError means the request itself was bad or raced with another.
	ClientError
)

func (c ErrorClass) String() string {
	if c == ClientError {
		return "client"
	}
	return "server"
}

// StatusCode maps the class onto an HTTP style code.
func (c ErrorClass) StatusCode() int {
	if c == ClientError {
		return 400
	}
	return 500
}

var clientErrors = []error{
	ErrInvalidPeerInfo,
	ErrInvalidInvoiceState,
	ErrInvalidPreimage,
	ErrInvoiceNotFound,
	ErrInvoiceAlreadyExists,
	ErrInvalidInput,
}

// ClassifyError decides which class err falls in.  Unknown errors are
// ServerError.
func ClassifyError(err error) ErrorClass {
	for _, ce := range clientErrors {
		if errors.Is(err, ce) {
			return ClientError
		}
	}
	return ServerError
}
