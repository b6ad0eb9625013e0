// Package alert turns the report channel into notifications.
//
// Service is the singleton consumer of the shared report receiver:
// supervised with SpawnWithSharedReceiver, it loops receiving one report
// and handing it to a Notifier. LogNotifier and WebhookNotifier are the
// stock notifiers.
package alert
