package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/photobooth-payment/internal/poller"
	"github.com/frahmantamala/photobooth-payment/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	pollBaseURL  string
	pollInterval time.Duration
	pollTimeout  time.Duration
)

var pollCmd = &cobra.Command{
	Use:   "poll [charge-id]",
	Short: "Wait for a charge to settle",
	Long:  `Poll a running server's payment status endpoint the way the kiosk screen does, until the charge settles or the ceiling is reached`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL, interval, timeout := pollBaseURL, pollInterval, pollTimeout
		if baseURL == "" || interval == 0 || timeout == 0 {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if baseURL == "" {
				baseURL = cfg.Server.PublicBaseURL
			}
			if interval == 0 {
				interval = cfg.Poller.Interval
			}
			if timeout == 0 {
				timeout = cfg.Poller.Timeout
			}
		}

		p := poller.New(baseURL,
			poller.WithInterval(interval),
			poller.WithTimeout(timeout),
			poller.WithLogger(logger.LoggerWrapper()),
		)
		result, err := p.Wait(cmd.Context(), args[0])

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]interface{}{
			"status":   result.Status,
			"attempts": result.Attempts,
			"elapsed":  result.Elapsed.String(),
		})

		switch {
		case err == nil:
			return nil
		case errors.Is(err, poller.ErrPaymentFailed), errors.Is(err, poller.ErrPaymentExpired), errors.Is(err, poller.ErrPollTimeout):
			return fmt.Errorf("charge %s did not succeed: %w", args[0], err)
		default:
			return err
		}
	},
}

func init() {
	pollCmd.Flags().StringVar(&pollBaseURL, "base-url", "", "Relay base URL (default PUBLIC_BASE_URL)")
	pollCmd.Flags().DurationVar(&pollInterval, "interval", 0, "Time between status checks (default from config)")
	pollCmd.Flags().DurationVar(&pollTimeout, "timeout", 0, "Give up after this long (default from config)")

	rootCmd.AddCommand(pollCmd)
}
