package opensafety

import "errors"

var (
	ErrIllegalArgument = errors.New("error in function arguments")
	ErrRxOverflow      = errors.New("previous frame was not processed yet, receive queue full")
	ErrSodParameters   = errors.New("error in Safety Object Dictionary parameters")
	ErrNoBus           = errors.New("no bus configured")
)
