package common

import "fmt"

// ChainErrKind classifies the errors returned by the blockchain engine and its
// storage.
type ChainErrKind uint32

const (
	// Other ...
	Other ChainErrKind = iota
	// ResourceNotFound ...
	ResourceNotFound
	// MalformedData ...
	MalformedData
	// InvalidSignature ...
	InvalidSignature
	// DatabaseFault ...
	DatabaseFault
	// MachineFault ...
	MachineFault
	// DuplicatedConfirmedTx ...
	DuplicatedConfirmedTx
	// Unauthorized ...
	Unauthorized
)

// String ...
func (k ChainErrKind) String() string {
	switch k {
	case ResourceNotFound:
		return "resource not found"
	case MalformedData:
		return "malformed data"
	case InvalidSignature:
		return "invalid signature"
	case DatabaseFault:
		return "database fault"
	case MachineFault:
		return "machine fault"
	case DuplicatedConfirmedTx:
		return "duplicated confirmed tx"
	case Unauthorized:
		return "unauthorized"
	default:
		return "other"
	}
}

// ChainErr is an error with a kind. Its fields are exported so that it can
// travel inside messages of the block request channel.
type ChainErr struct {
	Kind ChainErrKind
	Msg  string
}

// NewChainErr ...
func NewChainErr(kind ChainErrKind, format string, args ...interface{}) ChainErr {
	return ChainErr{
		Kind: kind,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Error ...
func (e ChainErr) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// IsChainErr checks that an error is of type ChainErr and that its kind matches
// the provided one.
func IsChainErr(err error, kind ChainErrKind) bool {
	chainErr, ok := err.(ChainErr)
	return ok && chainErr.Kind == kind
}
