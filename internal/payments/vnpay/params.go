package vnpay

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Gateway parameter names. The processor's parameter bag is loosely typed on
// the wire; PayParams below is the typed shape this side works with.
const (
	paramVersion           = "vnp_Version"
	paramCommand           = "vnp_Command"
	paramTmnCode           = "vnp_TmnCode"
	paramAmount            = "vnp_Amount"
	paramCurrCode          = "vnp_CurrCode"
	paramTxnRef            = "vnp_TxnRef"
	paramOrderInfo         = "vnp_OrderInfo"
	paramOrderType         = "vnp_OrderType"
	paramLocale            = "vnp_Locale"
	paramReturnURL         = "vnp_ReturnUrl"
	paramIPAddr            = "vnp_IpAddr"
	paramCreateDate        = "vnp_CreateDate"
	paramExpireDate        = "vnp_ExpireDate"
	paramResponseCode      = "vnp_ResponseCode"
	paramTransactionNo     = "vnp_TransactionNo"
	paramTransactionStatus = "vnp_TransactionStatus"
	paramBankCode          = "vnp_BankCode"
	paramPayDate           = "vnp_PayDate"
	paramSecureHash        = "vnp_SecureHash"
	paramSecureHashType    = "vnp_SecureHashType"
)

// ResponseCodeSuccess is the processor's code for a settled transaction.
const ResponseCodeSuccess = "00"

const dateLayout = "20060102150405"

// PayParams is the ordered, typed parameter set for a payment redirect.
// Amount is in VND; the wire format multiplies by 100.
type PayParams struct {
	Version    string
	Command    string
	TmnCode    string
	Amount     int64
	CurrCode   string
	TxnRef     string
	OrderInfo  string
	OrderType  string
	Locale     string
	ReturnURL  string
	IPAddr     string
	CreateDate time.Time
	ExpireDate time.Time
}

// Values renders the wire parameter bag. Zero-valued optional fields are
// omitted, matching what the processor signs on its side.
func (p PayParams) Values() url.Values {
	v := url.Values{}
	v.Set(paramVersion, p.Version)
	v.Set(paramCommand, p.Command)
	v.Set(paramTmnCode, p.TmnCode)
	v.Set(paramAmount, strconv.FormatInt(p.Amount*100, 10))
	v.Set(paramCurrCode, p.CurrCode)
	v.Set(paramTxnRef, p.TxnRef)
	v.Set(paramOrderInfo, p.OrderInfo)
	v.Set(paramOrderType, p.OrderType)
	v.Set(paramLocale, p.Locale)
	v.Set(paramReturnURL, p.ReturnURL)
	v.Set(paramIPAddr, p.IPAddr)
	if !p.CreateDate.IsZero() {
		v.Set(paramCreateDate, p.CreateDate.Format(dateLayout))
	}
	if !p.ExpireDate.IsZero() {
		v.Set(paramExpireDate, p.ExpireDate.Format(dateLayout))
	}
	return v
}

// Notification is the decoded parameter set of a return or IPN callback.
type Notification struct {
	TxnRef            string
	ResponseCode      string
	TransactionNo     string
	TransactionStatus string
	BankCode          string
	Amount            int64
	PayDate           time.Time
	SecureHash        string
}

// ParseNotification lifts the opaque callback query into the typed shape.
// Signature verification runs against the raw values, not this struct.
func ParseNotification(query url.Values) Notification {
	n := Notification{
		TxnRef:            query.Get(paramTxnRef),
		ResponseCode:      query.Get(paramResponseCode),
		TransactionNo:     query.Get(paramTransactionNo),
		TransactionStatus: query.Get(paramTransactionStatus),
		BankCode:          query.Get(paramBankCode),
		SecureHash:        query.Get(paramSecureHash),
	}
	if raw := query.Get(paramAmount); raw != "" {
		if cents, err := strconv.ParseInt(raw, 10, 64); err == nil {
			n.Amount = cents / 100
		}
	}
	if raw := query.Get(paramPayDate); raw != "" {
		if t, err := time.ParseInLocation(dateLayout, raw, time.Local); err == nil {
			n.PayDate = t
		}
	}
	return n
}

// Succeeded reports whether the processor settled the transaction.
func (n Notification) Succeeded() bool {
	return n.ResponseCode == ResponseCodeSuccess
}

// Sign computes the HMAC-SHA512 over the lexicographically sorted,
// url-encoded parameter set. The hash fields themselves are excluded.
func Sign(values url.Values, secret string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == paramSecureHash || k == paramSecureHashType {
			continue
		}
		if values.Get(k) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(values.Get(k)))
	}

	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(b.String()))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature and compares it against vnp_SecureHash in
// constant time.
func Verify(values url.Values, secret string) bool {
	supplied := values.Get(paramSecureHash)
	if supplied == "" {
		return false
	}
	expected := Sign(values, secret)
	return hmac.Equal([]byte(strings.ToLower(supplied)), []byte(expected))
}
