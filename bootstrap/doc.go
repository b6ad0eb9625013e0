// Package bootstrap runs a supervised process end to end.
//
// NewApp builds the logger, metrics, report channel, supervisor and
// optional probe server from a config.Config. Run starts telemetry,
// lets OnConfigure callbacks spawn slots, then blocks until a slot
// terminates or a shutdown signal arrives:
//
//	cfg, err := config.Load("ingest")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app, err := bootstrap.NewApp(cfg, deps)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	app.OnConfigure(spawnSlots)
//	if err := app.Run(context.Background()); err != nil {
//	    os.Exit(1)
//	}
package bootstrap
