package utils

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVNPay() *VNPay {
	v := NewVNPay(VNPayConfig{
		TmnCode:    "DEMO1234",
		HashSecret: "SECRETKEYSECRETKEYSECRETKEY",
		PayURL:     "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		ReturnURL:  "http://localhost:5173/payment/vnpay-return",
	})
	v.now = func() time.Time { return time.Date(2026, 3, 1, 3, 4, 5, 0, time.UTC) }
	return v
}

// callbackFrom turns a payment URL into the query the gateway would send back.
func callbackFrom(t *testing.T, v *VNPay, payURL, code string) url.Values {
	t.Helper()
	u, err := url.Parse(payURL)
	require.NoError(t, err)
	q := u.Query()
	q.Del(VNPSecureHash)
	q.Set("vnp_ResponseCode", code)
	q.Set("vnp_TransactionStatus", code)
	q.Set("vnp_TransactionNo", "14000001")
	q.Set("vnp_BankCode", "NCB")
	q.Set(VNPSecureHash, v.sign(CanonicalQuery(q)))
	q.Set(VNPSecureHashType, "HmacSHA512")
	return q
}

func TestBuildPaymentURL(t *testing.T) {
	v := newTestVNPay()
	payURL, err := v.BuildPaymentURL(VNPayPaymentRequest{
		TxnRef:    "ORD-1A2B3C",
		Amount:    150000,
		OrderInfo: "Thanh toan don hang ORD-1A2B3C",
		IPAddr:    "10.0.0.1",
	})
	require.NoError(t, err)

	u, err := url.Parse(payURL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "15000000", q.Get("vnp_Amount"))
	assert.Equal(t, "20260301100405", q.Get("vnp_CreateDate"))
	assert.Equal(t, "20260301101905", q.Get("vnp_ExpireDate"))
	assert.Equal(t, "vn", q.Get("vnp_Locale"))

	// the signed part is the canonical string in front of the hash
	raw := u.RawQuery
	idx := strings.Index(raw, "&"+VNPSecureHash+"=")
	require.Positive(t, idx)
	signData := raw[:idx]
	assert.Contains(t, signData, "vnp_OrderInfo=Thanh+toan+don+hang+ORD-1A2B3C")

	mac := hmac.New(sha512.New, []byte("SECRETKEYSECRETKEYSECRETKEY"))
	mac.Write([]byte(signData))
	assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), q.Get(VNPSecureHash))
}

func TestBuildPaymentURLRequiresConfig(t *testing.T) {
	v := NewVNPay(VNPayConfig{})
	_, err := v.BuildPaymentURL(VNPayPaymentRequest{TxnRef: "x", Amount: 1})
	assert.Error(t, err)

	_, err = newTestVNPay().BuildPaymentURL(VNPayPaymentRequest{TxnRef: "x"})
	assert.Error(t, err)
}

func TestCanonicalQuerySortsAndEscapes(t *testing.T) {
	q := url.Values{}
	q.Set("vnp_b", "two words")
	q.Set("vnp_a", "x&y=z")
	assert.Equal(t, "vnp_a=x%26y%3Dz&vnp_b=two+words", CanonicalQuery(q))
}

func TestVerifyAcceptsUntouchedCallback(t *testing.T) {
	v := newTestVNPay()
	payURL, err := v.BuildPaymentURL(VNPayPaymentRequest{TxnRef: "ORD-OK", Amount: 99000, OrderInfo: "pay"})
	require.NoError(t, err)

	res, err := v.Verify(callbackFrom(t, v, payURL, "00"))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ORD-OK", res.TxnRef)
	assert.Equal(t, 99000.0, res.Amount)
	assert.Equal(t, "Giao dịch thành công", res.Message)
}

func TestVerifyUpperCaseHash(t *testing.T) {
	v := newTestVNPay()
	payURL, err := v.BuildPaymentURL(VNPayPaymentRequest{TxnRef: "ORD-UP", Amount: 1000, OrderInfo: "pay"})
	require.NoError(t, err)
	q := callbackFrom(t, v, payURL, "00")
	q.Set(VNPSecureHash, strings.ToUpper(q.Get(VNPSecureHash)))

	_, err = v.Verify(q)
	assert.NoError(t, err)
}

func TestVerifyRejectsAnyAlteredParameter(t *testing.T) {
	v := newTestVNPay()
	payURL, err := v.BuildPaymentURL(VNPayPaymentRequest{TxnRef: "ORD-T", Amount: 250000, OrderInfo: "pay", BankCode: "NCB"})
	require.NoError(t, err)
	base := callbackFrom(t, v, payURL, "00")

	for key := range base {
		if key == VNPSecureHash || key == VNPSecureHashType {
			continue
		}
		t.Run(key, func(t *testing.T) {
			q := url.Values{}
			for k, vals := range base {
				q[k] = append([]string(nil), vals...)
			}
			q.Set(key, q.Get(key)+"1")
			_, err := v.Verify(q)
			assert.ErrorIs(t, err, ErrInvalidSignature)
		})
	}

	t.Run("added parameter", func(t *testing.T) {
		q := url.Values{}
		for k, vals := range base {
			q[k] = append([]string(nil), vals...)
		}
		q.Set("vnp_Extra", "1")
		_, err := v.Verify(q)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("missing hash", func(t *testing.T) {
		q := url.Values{}
		for k, vals := range base {
			q[k] = append([]string(nil), vals...)
		}
		q.Del(VNPSecureHash)
		_, err := v.Verify(q)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("hash type and foreign params are ignored", func(t *testing.T) {
		q := url.Values{}
		for k, vals := range base {
			q[k] = append([]string(nil), vals...)
		}
		q.Set(VNPSecureHashType, "SHA256")
		q.Set("utm_source", "mail")
		_, err := v.Verify(q)
		assert.NoError(t, err)
	})
}

func TestVerifyFailureCode(t *testing.T) {
	v := newTestVNPay()
	payURL, err := v.BuildPaymentURL(VNPayPaymentRequest{TxnRef: "ORD-C", Amount: 1000, OrderInfo: "pay"})
	require.NoError(t, err)

	res, err := v.Verify(callbackFrom(t, v, payURL, "24"))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "Khách hàng hủy giao dịch.", res.Message)
}

func TestVNPayResponseMessageUnknown(t *testing.T) {
	assert.Equal(t, VNPayResponseMessage("99"), VNPayResponseMessage("42"))
}
