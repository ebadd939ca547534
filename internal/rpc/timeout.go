package rpc

import (
	"net"
	"time"
)

// zeroTime clears a previously set deadline (net.Conn convention: the zero
// Time value means "no deadline").
var zeroTime time.Time

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
