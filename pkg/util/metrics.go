package util

import "time"

func TimeOperationMicroseconds(op func()) int64 {
	start := time.Now()
	op()
	return time.Since(start).Microseconds()
}

// Count01 turns a success flag into a summable metric field.
func Count01(ok bool) int {
	if ok {
		return 1
	}
	return 0
}
