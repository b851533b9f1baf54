package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/frahmantamala/photobooth-payment/internal/webhook"
	"github.com/spf13/cobra"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Webhook signing tools",
	Long:  `Sign gateway webhook payloads and deliver them to a running receiver`,
}

var signWebhookCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print signature headers for a payload",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := webhookPayload()
		if err != nil {
			return err
		}
		secret, err := webhookSecretOrConfig()
		if err != nil {
			return err
		}

		timestamp := webhookTimestamp
		if timestamp == "" {
			timestamp = fmt.Sprintf("%d", time.Now().Unix())
		}
		fmt.Printf("%s: %s\n", webhook.SignatureHeader, webhook.Sign(payload, timestamp, secret))
		fmt.Printf("%s: %s\n", webhook.TimestampHeader, timestamp)
		return nil
	},
}

var sendWebhookCmd = &cobra.Command{
	Use:   "send",
	Short: "Post a signed event to a receiver",
	RunE: func(cmd *cobra.Command, args []string) error {
		payload, err := webhookPayload()
		if err != nil {
			return err
		}
		secret, err := webhookSecretOrConfig()
		if err != nil {
			return err
		}
		return sendWebhook(cmd.Context(), webhookURL, payload, secret)
	},
}

var (
	webhookSecret    string
	webhookFile      string
	webhookType      string
	webhookChargeID  string
	webhookAmount    int64
	webhookTimestamp string
	webhookURL       string
)

// webhookPayload reads --file ("-" for stdin) or builds an event from
// --type and --charge-id.
func webhookPayload() ([]byte, error) {
	switch webhookFile {
	case "":
	case "-":
		return io.ReadAll(os.Stdin)
	default:
		return os.ReadFile(webhookFile)
	}

	if webhookChargeID == "" {
		return nil, fmt.Errorf("--charge-id or --file is required")
	}
	return json.Marshal(map[string]interface{}{
		"type": webhookType,
		"data": map[string]interface{}{
			"chargeId": webhookChargeID,
			"amount":   webhookAmount,
			"paymentMethod": map[string]string{
				"type": "QR_PROMPT_PAY",
			},
		},
	})
}

func webhookSecretOrConfig() (string, error) {
	if webhookSecret != "" {
		return webhookSecret, nil
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return "", err
	}
	if cfg.Webhook.Secret == "" {
		return "", fmt.Errorf("no secret given and BEAM_WEBHOOK_SECRET is not set")
	}
	return cfg.Webhook.Secret, nil
}

func sendWebhook(ctx context.Context, target string, payload []byte, secret string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	signature, timestamp := webhook.NewVerifier().SignNow(payload, secret)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.SignatureHeader, signature)
	req.Header.Set(webhook.TimestampHeader, timestamp)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("%s\n%s\n", resp.Status, strings.TrimSpace(string(body)))
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("receiver answered %d", resp.StatusCode)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{signWebhookCmd, sendWebhookCmd} {
		c.Flags().StringVar(&webhookSecret, "secret", "", "Signing secret (default BEAM_WEBHOOK_SECRET from config)")
		c.Flags().StringVar(&webhookFile, "file", "", "Payload file, - for stdin")
		c.Flags().StringVar(&webhookType, "type", webhook.TypeChargeSucceeded, "Event type when building a payload")
		c.Flags().StringVar(&webhookChargeID, "charge-id", "", "Charge id when building a payload")
		c.Flags().Int64Var(&webhookAmount, "amount", 100, "Amount when building a payload")
	}
	signWebhookCmd.Flags().StringVar(&webhookTimestamp, "timestamp", "", "Unix seconds to sign at (default now)")
	sendWebhookCmd.Flags().StringVar(&webhookURL, "url", "http://localhost:3000/api/webhook", "Receiver URL")

	webhookCmd.AddCommand(signWebhookCmd)
	webhookCmd.AddCommand(sendWebhookCmd)

	rootCmd.AddCommand(webhookCmd)
}
