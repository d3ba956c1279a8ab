package main

import (
	kardianos "github.com/kardianos/service"
)

const serviceName = "probekit-statsd"

type serviceManager struct {
	program kardianos.Interface
	cfg     *kardianos.Config
}

func newServiceManager(program kardianos.Interface, settings string) *serviceManager {
	args := []string{"run"}
	if settings != "" {
		args = append(args, "--settings", settings)
	}

	return &serviceManager{
		program: program,
		cfg: &kardianos.Config{
			Name:        serviceName,
			DisplayName: "Probekit statsd",
			Description: "Aggregates statsd metrics and forwards them to Graphite.",
			Arguments:   args,
		},
	}
}

func (m *serviceManager) newService() (kardianos.Service, error) {
	return kardianos.New(m.program, m.cfg)
}

func (m *serviceManager) Install() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	if err := s.Install(); err != nil {
		return err
	}
	return s.Start()
}

func (m *serviceManager) Uninstall() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	_ = s.Stop()
	return s.Uninstall()
}

// Run blocks until the service manager, or an interrupt when run
// interactively, stops the program.
func (m *serviceManager) Run() error {
	s, err := m.newService()
	if err != nil {
		return err
	}
	return s.Run()
}
