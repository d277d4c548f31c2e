//go:build !windows

package service

// RunService runs the API in the foreground. Outside Windows the process is
// supervised by systemd or a container runtime, which deliver SIGTERM.
func RunService(isDebug bool, app *Application) {
	app.Run()
}

func InstallService(exePath string) error { return ErrUnsupported }

func UninstallService() error { return ErrUnsupported }

func StartService() error { return ErrUnsupported }

func StopService() error { return ErrUnsupported }

func IsWindowsService() (bool, error) {
	return false, nil
}
