package errs

// 1xxx validation, 2xxx upstream, 4xxx sharding
var (
	ErrArgs            = NewCodeError(1001, "invalid argument")
	ErrPayload         = NewCodeError(1002, "malformed payload")
	ErrUpstreamTimeout = NewCodeError(2001, "api request timeout")
	ErrUpstreamFailed  = NewCodeError(2002, "operation failed")
	ErrWrongShard      = NewCodeError(4001, "connection belongs to another instance")
)
