package session

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("session not found")
	ErrProvisioning       = errors.New("provisioning failed")
	ErrTimeout            = errors.New("execution timed out")
	ErrInstallJobNotFound = errors.New("install job not found")
	ErrInvalidPackage     = errors.New("invalid package name")
)

// TimeoutError is returned by Execute when the code outlives its deadline.
// It carries whatever output was captured before the process was killed.
type TimeoutError struct {
	Timeout time.Duration
	Stdout  string
	Stderr  string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeout
}
