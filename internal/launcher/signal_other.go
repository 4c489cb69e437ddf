//go:build !unix

package launcher

import "syscall"

func signalName(sig syscall.Signal) string {
	return sig.String()
}
