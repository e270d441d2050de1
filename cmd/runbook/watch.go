package main

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/nerrad567/runbook-core/internal/infrastructure/mqtt"
)

// errMQTTDisabled is returned by watch when no broker is configured.
var errMQTTDisabled = errors.New("mqtt is disabled or unreachable; set mqtt.enabled in the config")

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var automationID int
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream automation lifecycle events from MQTT until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(a *app) error {
				if a.mqtt == nil {
					return errMQTTDisabled
				}

				topic := mqtt.Topics{}.AllAutomationEvents()
				if automationID > 0 {
					topic = mqtt.Topics{}.AutomationEvents(automationID)
				}

				var mu sync.Mutex
				out := cmd.OutOrStdout()
				err := a.mqtt.Subscribe(topic, 1, func(t string, payload []byte) error {
					if _, _, ok := mqtt.ParseAutomationTopic(t); !ok {
						return nil
					}
					mu.Lock()
					defer mu.Unlock()
					_, err := out.Write(append(json.RawMessage(payload), '\n'))
					return err
				})
				if err != nil {
					return err
				}
				a.log.Info("watching automation events", "topic", topic)

				<-cmd.Context().Done()
				if err := a.mqtt.Unsubscribe(topic); err != nil {
					a.log.Warn("unsubscribing", "topic", topic, "error", err)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&automationID, "automation", 0, "only events for this automation id")
	return cmd
}
