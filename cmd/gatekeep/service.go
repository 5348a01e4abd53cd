package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/gatekeep/pkg/app"
)

// program adapts app.Run to the service manager's Start/Stop calls.
type program struct {
	params app.RunParams

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

var _ service.Interface = (*program)(nil)

func (p *program) Start(_ service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	params := p.params
	params.Context = ctx

	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan error, 1)
	done := p.done
	p.mu.Unlock()

	go func() { done <- app.Run(params) }()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	return <-done
}

// serviceArgs are the arguments the installed service runs with.
func serviceArgs(flags runFlags) []string {
	args := []string{"service", "run"}
	if flags.config != "" {
		args = append(args, "--config", flags.config)
	}
	if flags.dataDir != "" {
		args = append(args, "--data-dir", flags.dataDir)
	}
	if flags.logLevel != "" {
		args = append(args, "--log-level", flags.logLevel)
	}
	if flags.logFormat != "" {
		args = append(args, "--log-format", flags.logFormat)
	}
	if flags.watch {
		args = append(args, "--watch")
	}
	return args
}

func newService(flags runFlags, userService bool) (service.Service, error) {
	params, err := flags.params()
	if err != nil {
		return nil, err
	}
	cfg := &service.Config{
		Name:        "gatekeep",
		DisplayName: "gatekeep",
		Description: "Telegram group gatekeeper bot",
		Arguments:   serviceArgs(flags),
		Option:      service.KeyValue{"UserService": userService},
	}
	return service.New(&program{params: params}, cfg)
}

func serviceCmd() *cobra.Command {
	var (
		flags       runFlags
		userService bool
	)
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage gatekeep as a system service",
	}
	flags.register(cmd.PersistentFlags())
	cmd.PersistentFlags().BoolVar(&userService, "user", false, "Install as a per-user service")

	run := &cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := newService(flags, userService)
			if err != nil {
				return err
			}
			return svc.Run()
		},
	}
	cmd.AddCommand(run)

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the gatekeep service", capitalize(action)),
			RunE: func(cmd *cobra.Command, _ []string) error {
				svc, err := newService(flags, userService)
				if err != nil {
					return err
				}
				if err := service.Control(svc, action); err != nil {
					return fmt.Errorf("service %s: %w", action, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the service status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newService(flags, userService)
			if err != nil {
				return err
			}
			st, err := svc.Status()
			if err != nil && !errors.Is(err, service.ErrNotInstalled) {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), statusText(st, err))
			return nil
		},
	})
	return cmd
}

func statusText(st service.Status, err error) string {
	if errors.Is(err, service.ErrNotInstalled) {
		return "not installed"
	}
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
