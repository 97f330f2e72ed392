/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"

	"github.com/friendsincode/ratatosk/internal/backend"
	"github.com/friendsincode/ratatosk/internal/logging"
	"github.com/friendsincode/ratatosk/internal/routing"
)

var checkRoutesFile string

var checkRoutesCmd = &cobra.Command{
	Use:   "check-routes",
	Short: "Validate a route config file",
	Long: `Parse and build a route config file without starting the proxy.

Exits non-zero when the file cannot be parsed or the tree cannot be built.

Examples:
  # Check the file from RATATOSK_ROUTES_PATH
  ratatosk check-routes

  # Check a specific file
  ratatosk check-routes --file ./routes.yaml
`,
	RunE: runCheckRoutes,
}

func init() {
	checkRoutesCmd.Flags().StringVarP(&checkRoutesFile, "file", "f", "", "Route config file (defaults to RATATOSK_ROUTES_PATH)")
}

func runCheckRoutes(cmd *cobra.Command, args []string) error {
	path := checkRoutesFile
	if path == "" {
		if err := loadConfig(); err != nil {
			return err
		}
		path = cfg.RoutesPath
	} else {
		logger = logging.Setup("development")
	}

	registry := backend.NewRegistry(backend.DefaultConfig(), logger)
	defer func() { _ = registry.Close() }()

	factory := routing.NewFactory(routing.WallClock(clock.New()), logger)
	registry.RegisterBuilders(factory)

	root, err := factory.LoadFile(path)
	if err != nil {
		return fmt.Errorf("route config invalid: %w", err)
	}

	fmt.Printf("route config ok: root strategy %q\n", root.Name())
	return nil
}
