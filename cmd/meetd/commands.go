package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/example/sirius-meet/internal/application"
	"github.com/example/sirius-meet/internal/config"
	"github.com/example/sirius-meet/internal/persistence"
)

type globals struct {
	cfg     config.Config
	logger  *slog.Logger
	out     io.Writer
	version string
}

type serveCmd struct {
	SkipMigrate bool `help:"Do not apply migrations before serving."`
}

func (c *serveCmd) Run(ctx context.Context, g *globals) error {
	return withStore(ctx, g, func(store persistence.Store) error {
		if !c.SkipMigrate {
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
		}

		handler, err := newHandler(ctx, g.cfg, store, g.logger)
		if err != nil {
			return err
		}
		server := configureHTTPServer(fmt.Sprintf(":%d", g.cfg.HTTPPort), handler)

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				g.logger.Error("failed to shutdown server", "error", err)
			}
		}()

		g.logger.Info("meeting API listening",
			"addr", server.Addr,
			"version", g.version,
			"driver", g.cfg.DatabaseDriver,
			"rtc_configured", g.cfg.RTCConfigured(),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server encountered error: %w", err)
		}
		g.logger.Info("meeting API stopped")
		return nil
	})
}

type migrateCmd struct{}

func (c *migrateCmd) Run(ctx context.Context, g *globals) error {
	return withStore(ctx, g, func(store persistence.Store) error {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		g.logger.Info("database migrations completed", "driver", g.cfg.DatabaseDriver)
		return nil
	})
}

type employeeCmd struct {
	Add  employeeAddCmd  `cmd:"" help:"Register an employee so they can sign in."`
	List employeeListCmd `cmd:"" help:"List active employees."`
}

type employeeAddCmd struct {
	NationalID  string `name:"national-id" required:"" help:"National identity number, digits only."`
	GivenNames  string `required:"" help:"Given names."`
	FamilyNames string `required:"" help:"Family names."`
	Role        string `required:"" enum:"farmer,agronomist,researcher,partner,consultant,student,investor" help:"Directory role (${enum})."`
	Inactive    bool   `help:"Register the employee as inactive."`
}

func (c *employeeAddCmd) Run(ctx context.Context, g *globals) error {
	return withStore(ctx, g, func(store persistence.Store) error {
		if err := store.Migrate(ctx); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		service := application.NewEmployeeServiceWithLogger(newEmployeeRepositoryAdapter(store), time.Now, g.cfg.StoreTimeout, g.logger)
		employee, err := service.RegisterEmployee(ctx, application.RegisterEmployeeParams{
			NationalID:  c.NationalID,
			GivenNames:  c.GivenNames,
			FamilyNames: c.FamilyNames,
			Role:        c.Role,
			Inactive:    c.Inactive,
		})
		if err != nil {
			var vErr *application.ValidationError
			if errors.As(err, &vErr) {
				return fmt.Errorf("invalid employee: %v", vErr.FieldErrors)
			}
			return err
		}
		_, err = fmt.Fprintf(g.out, "registered %s %s (%s)\n", employee.NationalID, employee.FullName, employee.Role)
		return err
	})
}

type employeeListCmd struct{}

func (c *employeeListCmd) Run(ctx context.Context, g *globals) error {
	return withStore(ctx, g, func(store persistence.Store) error {
		service := application.NewEmployeeServiceWithLogger(newEmployeeRepositoryAdapter(store), time.Now, g.cfg.StoreTimeout, g.logger)
		employees, err := service.ListActiveEmployees(ctx)
		if err != nil {
			return err
		}
		return writeEmployeeTable(g.out, employees)
	})
}

func writeEmployeeTable(w io.Writer, employees []application.Employee) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NATIONAL ID\tNAME\tROLE\tLAST LOGIN")
	for _, e := range employees {
		lastLogin := "-"
		if e.LastLogin != nil {
			lastLogin = e.LastLogin.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.NationalID, e.FullName, e.Role, lastLogin)
	}
	return tw.Flush()
}
