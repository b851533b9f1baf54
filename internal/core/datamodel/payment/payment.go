package payment

import "time"

type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSucceeded, StatusFailed, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether the kiosk should stop polling on s.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusExpired
}

func StatusValues() []string {
	return []string{string(StatusPending), string(StatusSucceeded), string(StatusFailed), string(StatusExpired)}
}

const (
	MethodPromptPay = "promptpay"
	MethodWeChat    = "wechat"
)

func MethodValues() []string {
	return []string{MethodPromptPay, MethodWeChat}
}

// Record is the last known state of one charge. Optional attributes stay nil
// until some writer supplies them.
type Record struct {
	ChargeID      string
	Status        Status
	Amount        *int64
	PaymentMethod *string
	ReferenceID   *string
	CreatedAt     time.Time
	LastUpdated   time.Time
}

// Patch is a partial write. Nil fields keep the stored value.
type Patch struct {
	Status        Status
	Amount        *int64
	PaymentMethod *string
	ReferenceID   *string
}

func (r Record) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(r.LastUpdated) > ttl
}
