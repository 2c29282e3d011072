package main

import (
	"fmt"
	"strconv"
)

// errUsage formats a user-facing flag-parsing error; kept distinct from
// errors.Wrap since these never originate from an internal/* sentinel.
func errUsage(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func parseHexByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}
