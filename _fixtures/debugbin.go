package main

import (
	"os"
	"strconv"
	"time"
)

// debugbin [seconds] [exitcode]
//
// Sleeps for the given number of seconds, then exits with the given code.
func main() {
	seconds, code := 0, 0
	if len(os.Args) > 1 {
		seconds, _ = strconv.Atoi(os.Args[1])
	}
	if len(os.Args) > 2 {
		code, _ = strconv.Atoi(os.Args[2])
	}
	time.Sleep(time.Duration(seconds) * time.Second)
	os.Exit(code)
}
