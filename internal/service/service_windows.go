//go:build windows

package service

import (
	"fmt"
	"time"

	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/debug"
	"golang.org/x/sys/windows/svc/eventlog"
	"golang.org/x/sys/windows/svc/mgr"
)

// Event IDs written to the Application log.
const (
	eventLifecycle uint32 = 1
	eventFailure   uint32 = 2
)

// restartPolicy restarts the API after a crash with growing delays.
// The failure count resets after a day without crashes.
var (
	restartPolicy = []mgr.RecoveryAction{
		{Type: mgr.ServiceRestart, Delay: 5 * time.Second},
		{Type: mgr.ServiceRestart, Delay: 10 * time.Second},
		{Type: mgr.ServiceRestart, Delay: 30 * time.Second},
	}
	restartResetPeriod = uint32((24 * time.Hour).Seconds())
)

var elog debug.Log

// apiHandler adapts Application to svc.Handler.
type apiHandler struct {
	app *Application
}

func (h *apiHandler) Execute(args []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	status <- svc.Status{State: svc.StartPending}
	go h.app.Run()
	status <- svc.Status{State: svc.Running, Accepts: svc.AcceptStop | svc.AcceptShutdown}
	elog.Info(eventLifecycle, "signflow API accepting requests")

	for req := range requests {
		switch req.Cmd {
		case svc.Interrogate:
			status <- req.CurrentStatus
		case svc.Stop, svc.Shutdown:
			status <- svc.Status{State: svc.StopPending}
			elog.Info(eventLifecycle, "signflow API draining")
			h.app.Shutdown()
			h.app.Wait()
			return false, 0
		default:
			elog.Warning(eventFailure, fmt.Sprintf("ignoring control request %d", req.Cmd))
		}
	}
	return false, 0
}

// RunService hands the process to the service control manager. In debug
// mode it logs to the console and reacts to Ctrl+C instead.
func RunService(isDebug bool, app *Application) {
	run := svc.Run
	if isDebug {
		elog = debug.New(ServiceName)
		run = debug.Run
	} else {
		var err error
		if elog, err = eventlog.Open(ServiceName); err != nil {
			return
		}
	}
	defer elog.Close()

	if err := run(ServiceName, &apiHandler{app: app}); err != nil {
		elog.Error(eventFailure, fmt.Sprintf("%s exited: %v", ServiceName, err))
		return
	}
	elog.Info(eventLifecycle, fmt.Sprintf("%s stopped", ServiceName))
}

// InstallService registers exePath as an auto-start service with an event
// log source and the restart policy.
func InstallService(exePath string) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	if existing, err := m.OpenService(ServiceName); err == nil {
		existing.Close()
		return fmt.Errorf("service %s is already installed", ServiceName)
	}

	s, err := m.CreateService(ServiceName, exePath, mgr.Config{
		DisplayName: ServiceDisplayName,
		Description: ServiceDescription,
		StartType:   mgr.StartAutomatic,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer s.Close()

	if err := eventlog.InstallAsEventCreate(ServiceName, eventlog.Error|eventlog.Warning|eventlog.Info); err != nil {
		fmt.Printf("Warning: event log source not registered: %v\n", err)
	}
	if err := s.SetRecoveryActions(restartPolicy, restartResetPeriod); err != nil {
		fmt.Printf("Warning: restart policy not applied: %v\n", err)
	}
	return nil
}

func UninstallService() error {
	return withService(func(s *mgr.Service) error {
		_ = eventlog.Remove(ServiceName)
		return s.Delete()
	})
}

func StartService() error {
	return withService(func(s *mgr.Service) error {
		return s.Start()
	})
}

func StopService() error {
	return withService(func(s *mgr.Service) error {
		_, err := s.Control(svc.Stop)
		return err
	})
}

func IsWindowsService() (bool, error) {
	return svc.IsWindowsService()
}

func withService(fn func(s *mgr.Service) error) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to service manager: %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(ServiceName)
	if err != nil {
		return fmt.Errorf("service %s is not installed: %w", ServiceName, err)
	}
	defer s.Close()

	return fn(s)
}
