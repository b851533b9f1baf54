package cmd

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/photobooth-payment/internal"
)

func setenv(key, value string) {
	old, had := os.LookupEnv(key)
	Expect(os.Setenv(key, value)).To(Succeed())
	DeferCleanup(func() {
		if had {
			os.Setenv(key, old)
		} else {
			os.Unsetenv(key)
		}
	})
}

var _ = Describe("loadConfig", func() {
	It("falls back to defaults without a config file", func() {
		cfg, err := loadConfig(GinkgoT().TempDir())

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Server.Port).To(Equal(3000))
		Expect(cfg.Payment.MinAmount).To(Equal(int64(100)))
		Expect(cfg.PaymentStatus.TTL).To(Equal(30 * time.Minute))
		Expect(cfg.Gateway.ResolvedBaseURL()).To(Equal(internal.GatewayProductionURL))
	})

	It("reads the deployment's variable names", func() {
		setenv("BEAM_API_KEY", "key-1")
		setenv("BEAM_MERCHANT_ID", "merchant-1")
		setenv("BEAM_ENV", "playground")
		setenv("BEAM_WEBHOOK_SECRET", "whsec")
		setenv("PORT", "8080")
		setenv("APP_ENV", "production")

		cfg, err := loadConfig(GinkgoT().TempDir())

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Gateway.HasCredentials()).To(BeTrue())
		Expect(cfg.Gateway.ResolvedBaseURL()).To(Equal(internal.GatewayPlaygroundURL))
		Expect(cfg.Webhook.Secret).To(Equal("whsec"))
		Expect(cfg.Webhook.SecretFor("backup")).To(Equal("whsec"))
		Expect(cfg.Webhook.SecretFor("staging")).To(Equal("whsec"))
		Expect(cfg.Server.Port).To(Equal(8080))
		Expect(cfg.IsProduction()).To(BeTrue())
	})

	It("prefers a route's own webhook secret", func() {
		setenv("BEAM_WEBHOOK_SECRET", "whsec")
		setenv("BEAM_WEBHOOK_BACKUP_SECRET", "whsec-backup")

		cfg, err := loadConfig(GinkgoT().TempDir())

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Webhook.SecretFor("primary")).To(Equal("whsec"))
		Expect(cfg.Webhook.SecretFor("backup")).To(Equal("whsec-backup"))
		Expect(cfg.Webhook.SecretFor("staging")).To(Equal("whsec"))
	})

	It("layers config.yml over the defaults", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "config.yml"), []byte(`
payment:
  max_amount: 5000
payment_status:
  ttl: 10m
`), 0o600)).To(Succeed())

		cfg, err := loadConfig(dir)

		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Payment.MaxAmount).To(Equal(int64(5000)))
		Expect(cfg.PaymentStatus.TTL).To(Equal(10 * time.Minute))
		Expect(cfg.Payment.Currency).To(Equal("THB"))
	})

	It("rejects invalid values", func() {
		setenv("ENV_PAYMENT_MIN_AMOUNT", "0")

		_, err := loadConfig(GinkgoT().TempDir())

		Expect(err).To(MatchError(ContainSubstring("min_amount must be positive")))
	})
})
