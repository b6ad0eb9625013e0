// Package supervisor keeps a set of services alive.
//
// Each spawned service gets a slot: one goroutine that constructs the
// service from the shared deps value, runs it, and applies the slot's
// policy when Run returns.
//
//	restart forever:       construct -> run -> (crash | completion) -> construct ...
//	restart until report:  construct -> run -> completion -> construct ...
//	                                         -> crash -> log once -> terminated
//
// Wait is the host's terminal wait point. It returns a SERVICE_FATAL
// error as soon as any slot terminates.
//
//	sup := supervisor.New(deps)
//	tx, rx := reports.NewChannel(reports.DefaultCapacity)
//	sup.Spawn("poller", NewPoller, tx)
//	sup.SpawnWithSharedReceiver("alert", NewAlerter, rx)
//	err := sup.Wait(ctx)
package supervisor
