/*
Copyright 2025 Jordi Gil.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Command opcore wires the daemon supervisor core into a standalone
// operator process: it builds the runner, supervisor and killer, serves
// metrics, and runs the killer on a shutdown signal. It spawns no watch
// loop of its own (that remains an external collaborator), so on its own
// it never spawns a daemon or tracks a resource.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/client"
	clientconfig "sigs.k8s.io/controller-runtime/pkg/client/config"
	ctrl "sigs.k8s.io/controller-runtime/pkg/manager/signals"

	"github.com/fluxgate/opcore/internal/config"
	"github.com/fluxgate/opcore/pkg/daemon"
	"github.com/fluxgate/opcore/pkg/shared/logging"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "/etc/opcore/config.yaml", "path to the operator configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		os.Stderr.WriteString("opcore: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(logging.Config{
		Level: logging.Level(cfg.Logging.Level),
		JSON:  cfg.Logging.Format == "json",
	})
	if err != nil {
		os.Stderr.WriteString("opcore: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx := ctrl.SetupSignalHandler()

	restConfig, err := clientconfig.GetConfig()
	if err != nil {
		logger.Error(err, "failed to load cluster configuration")
		os.Exit(1)
	}
	cl, err := client.New(restConfig, client.Options{})
	if err != nil {
		logger.Error(err, "failed to build cluster client")
		os.Exit(1)
	}

	clock := daemon.RealClock()
	engine := daemon.NewSyncEngine(daemon.WithWorkerPoolSize(cfg.Daemons.WorkerPoolSize))
	patcher := daemon.NewControllerRuntimePatcher(cl)
	runner := daemon.NewRunner(engine, patcher, clock, logger)
	supervisor := daemon.NewSupervisor(runner, clock, nil, logger)
	killer := daemon.NewKiller(supervisor, logger)

	go serveMetrics(cfg.Server.MetricsPort, logger)
	go watchConfig(ctx, configPath, logger)

	logger.Info("opcore started", "metrics_port", cfg.Server.MetricsPort, "polling_interval", cfg.Daemons.PollingInterval)

	<-ctx.Done()
	logger.Info("shutdown signal received, stopping daemons")

	shutdownCtx := context.Background()
	if err := killer.Run(shutdownCtx); err != nil {
		logger.Error(err, "error while stopping daemons during shutdown")
	}
	logger.Info("opcore stopped")
}

func serveMetrics(port string, logger interface{ Error(error, string, ...interface{}) }) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil && err != http.ErrServerClosed {
		logger.Error(err, "metrics server exited")
	}
}

func watchConfig(ctx context.Context, path string, logger interface {
	Info(string, ...interface{})
	Error(error, string, ...interface{})
}) {
	w := &config.Watcher{
		Path:     path,
		OnReload: func(*config.Config) {},
	}
	if err := w.Run(ctx); err != nil {
		logger.Error(err, "config watcher exited")
	}
}
