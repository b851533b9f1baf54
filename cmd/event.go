package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/photobooth-payment/internal/core/events"
	"github.com/frahmantamala/photobooth-payment/internal/paymentstatus"
	"github.com/frahmantamala/photobooth-payment/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event bus commands",
	Long:  `Exercise the in-process event bus: publish test events and inspect what the handlers do with them`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long: `Publish a test event to an in-process bus wired to a throwaway status store.
charge.created runs the real seeding handler and prints the resulting record.
Any other type is delivered to a logging handler only.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishTestEvent(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var (
	eventChargeID string
	eventAmount   int64
	eventMethod   string
	eventData     string
)

func publishTestEvent(eventType string) error {
	lg := logger.LoggerWrapper()

	eventBus := events.NewEventBus(lg)
	store := paymentstatus.NewStore(paymentstatus.WithLogger(lg))
	defer store.Stop()
	service := paymentstatus.NewService(store, lg, paymentstatus.WithPublisher(eventBus))
	paymentstatus.NewEventHandler(service, lg).RegisterEventHandlers(eventBus)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		lg.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
			"payload", event.Payload())
		return nil
	})

	chargeID := eventChargeID
	if chargeID == "" {
		chargeID = fmt.Sprintf("test_%d", time.Now().UnixMilli())
	}

	var event events.Event
	switch eventType {
	case events.EventTypeChargeCreated:
		event = events.NewChargeCreatedEvent(chargeID, eventAmount, eventMethod, "cli_"+chargeID)
	default:
		event = events.BaseEvent{
			ID:        fmt.Sprintf("test-%d", time.Now().Unix()),
			Type:      eventType,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"message": eventData,
				"source":  "cli-command",
			},
		}
	}

	lg.Info("publishing test event", "event_type", eventType, "event_id", event.EventID())

	if err := eventBus.PublishSync(context.Background(), event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	eventBus.Wait()

	if eventType != events.EventTypeChargeCreated {
		lg.Info("test event published successfully")
		return nil
	}

	view, err := service.Get(context.Background(), chargeID)
	if err != nil {
		return fmt.Errorf("read seeded status: %w", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func init() {
	publishEventCmd.Flags().StringVar(&eventChargeID, "charge-id", "", "Charge id for charge.created (default test_<ms>)")
	publishEventCmd.Flags().Int64Var(&eventAmount, "amount", 100, "Amount for charge.created")
	publishEventCmd.Flags().StringVar(&eventMethod, "method", "promptpay", "Payment method for charge.created")
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
