package main

import (
	"context"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"opal/internal/config"
	"opal/internal/exits"
	"opal/internal/gate"
	"opal/internal/jit"
	"opal/internal/objspace"
	"opal/internal/ui"
)

func runWorkersWithUI(ctx context.Context, space *objspace.Space, g *gate.Gate, j *jit.JIT, rec *exits.Recorder, opts config.Options) error {
	events := j.Subscribe(256)
	outcome := make(chan error, 1)

	go func() {
		outcome <- runWorkers(ctx, space, g, j, rec, opts)
		j.CloseFeed()
	}()

	model := ui.NewMonitorModel("selftest", events)
	program := tea.NewProgram(model, tea.WithOutput(os.Stdout))
	_, uiErr := program.Run()
	err := <-outcome
	if uiErr != nil {
		return uiErr
	}
	return err
}
