package vnpay

import (
	"net/url"
	"time"

	"github.com/haiminhle/storefront-backend/pkg/config"
)

const (
	defaultVersion   = "2.1.0"
	defaultCommand   = "pay"
	defaultCurrCode  = "VND"
	defaultLocale    = "vn"
	defaultOrderType = "other"

	// payURLValidity bounds how long a generated redirect stays payable.
	payURLValidity = 15 * time.Minute
)

// Client builds signed redirect URLs for the hosted payment page.
type Client struct {
	cfg config.VNPayConfig
}

// NewClient wires the gateway client.
func NewClient(cfg config.VNPayConfig) *Client {
	return &Client{cfg: cfg}
}

// BuildPaymentURL returns the signed hosted-page URL for the given payment
// reference and amount (VND).
func (c *Client) BuildPaymentURL(txnRef string, amount int64, orderInfo, clientIP string, now time.Time) (string, error) {
	params := PayParams{
		Version:    defaultVersion,
		Command:    defaultCommand,
		TmnCode:    c.cfg.TmnCode,
		Amount:     amount,
		CurrCode:   defaultCurrCode,
		TxnRef:     txnRef,
		OrderInfo:  orderInfo,
		OrderType:  defaultOrderType,
		Locale:     defaultLocale,
		ReturnURL:  c.cfg.ReturnURL,
		IPAddr:     clientIP,
		CreateDate: now,
		ExpireDate: now.Add(payURLValidity),
	}

	values := params.Values()
	values.Set(paramSecureHash, Sign(values, c.cfg.HashSecret))

	base, err := url.Parse(c.cfg.PayURL)
	if err != nil {
		return "", err
	}
	base.RawQuery = values.Encode()
	return base.String(), nil
}
