package gateway

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/arzanfood/api/internal/domain"
	"github.com/arzanfood/api/internal/platform/config"
)

// Form field names of the WebMoney Merchant interface.
const (
	fieldPayeePurse    = "LMI_PAYEE_PURSE"
	fieldPaymentNo     = "LMI_PAYMENT_NO"
	fieldPaymentAmount = "LMI_PAYMENT_AMOUNT"
	fieldPaymentDesc   = "LMI_PAYMENT_DESC"
	fieldResultURL     = "LMI_RESULT_URL"
	fieldSuccessURL    = "LMI_SUCCESS_URL"
	fieldFailURL       = "LMI_FAIL_URL"
	fieldPrerequest    = "LMI_PREREQUEST"
	fieldPayerPurse    = "LMI_PAYER_PURSE"
	fieldSysTransNo    = "LMI_SYS_TRANS_NO"
	fieldSysTransDate  = "LMI_SYS_TRANS_DATE"
	fieldHash          = "LMI_HASH"
)

// ProviderWebMoney is the registered name of this provider.
const ProviderWebMoney = "webmoney"

// WebMoney implements the WebMoney Merchant redirect protocol: the customer is
// sent to the gateway with a signed form, and the gateway calls back twice,
// first a precheck probe and then the payment confirmation.
type WebMoney struct {
	cfg config.GatewayConfig
}

// NewWebMoney validates the gateway credentials and constructs the provider.
func NewWebMoney(cfg config.GatewayConfig) (*WebMoney, error) {
	if strings.TrimSpace(cfg.Purse) == "" {
		return nil, errors.New("webmoney: merchant purse is required")
	}
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("webmoney: shared secret is required")
	}
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("webmoney: gateway url is required")
	}
	return &WebMoney{cfg: cfg}, nil
}

// Name identifies the provider.
func (w *WebMoney) Name() string { return ProviderWebMoney }

// BuildRedirect produces the payment form for the order. The order ID doubles
// as the gateway bill number, so callbacks can be matched back.
func (w *WebMoney) BuildRedirect(order domain.Order) (Redirect, error) {
	if w == nil {
		return Redirect{}, errors.New("webmoney: provider not initialised")
	}
	if strings.TrimSpace(order.ID) == "" {
		return Redirect{}, errors.New("webmoney: order id is required")
	}
	if order.Total <= 0 {
		return Redirect{}, fmt.Errorf("webmoney: non-positive total for order %s", order.ID)
	}

	fields := map[string]string{
		fieldPayeePurse:    w.cfg.Purse,
		fieldPaymentNo:     order.ID,
		fieldPaymentAmount: FormatAmount(order.Total),
		fieldPaymentDesc:   w.cfg.Description,
	}
	if w.cfg.ResultURL != "" {
		fields[fieldResultURL] = w.cfg.ResultURL
	}
	if w.cfg.SuccessURL != "" {
		fields[fieldSuccessURL] = w.cfg.SuccessURL
	}
	if w.cfg.FailURL != "" {
		fields[fieldFailURL] = w.cfg.FailURL
	}

	return Redirect{URL: w.cfg.URL, Fields: fields}, nil
}

// ParseCallback extracts the WebMoney callback fields. Field presence is not
// enforced here; the reconciliation service decides which fields each stage
// requires.
func (w *WebMoney) ParseCallback(values url.Values) (Callback, error) {
	if values == nil {
		return Callback{}, errors.New("webmoney: empty callback")
	}
	return Callback{
		Precheck:        strings.TrimSpace(values.Get(fieldPrerequest)) == "1",
		MerchantAccount: strings.TrimSpace(values.Get(fieldPayeePurse)),
		BillNumber:      strings.TrimSpace(values.Get(fieldPaymentNo)),
		Amount:          strings.TrimSpace(values.Get(fieldPaymentAmount)),
		PayerAccount:    strings.TrimSpace(values.Get(fieldPayerPurse)),
		TransactionID:   strings.TrimSpace(values.Get(fieldSysTransNo)),
		TransDate:       strings.TrimSpace(values.Get(fieldSysTransDate)),
		Checksum:        strings.TrimSpace(values.Get(fieldHash)),
	}, nil
}

// VerifyChecksum recomputes the MD5 signature over the stored order total and
// the callback fields. The amount component is the formatted total, never the
// amount string the caller sent, so a tampered amount cannot satisfy the hash.
func (w *WebMoney) VerifyChecksum(callback Callback, total int64) bool {
	if w == nil || callback.Checksum == "" {
		return false
	}
	expected := w.computeHash(FormatAmount(total), callback)
	return hmac.Equal([]byte(expected), []byte(strings.ToUpper(callback.Checksum)))
}

// computeHash concatenates the signature components in the order fixed by the
// Merchant interface and returns the uppercase hex MD5 digest.
func (w *WebMoney) computeHash(amount string, callback Callback) string {
	var b strings.Builder
	b.WriteString(w.cfg.Purse)
	b.WriteString(amount)
	b.WriteString(w.cfg.Secret)
	b.WriteString(callback.BillNumber)
	b.WriteString(callback.PayerAccount)
	b.WriteString(callback.TransactionID)
	b.WriteString(callback.TransDate)

	sum := md5.Sum([]byte(b.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// MerchantAccount exposes the configured purse for merchant checks.
func (w *WebMoney) MerchantAccount() string {
	if w == nil {
		return ""
	}
	return w.cfg.Purse
}
