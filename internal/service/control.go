package service

import "errors"

// Names registered with the Windows service control manager and event log.
const (
	ServiceName        = "Signflow"
	ServiceDisplayName = "Signflow Signature Service"
	ServiceDescription = "Runs the signflow signature request API and the overdue-request sweeper"
)

// ErrUnsupported is returned by the service control functions on platforms
// without a service control manager.
var ErrUnsupported = errors.New("signflow: service control is only available on Windows")
