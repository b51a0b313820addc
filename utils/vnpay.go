package utils

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	vnpVersion    = "2.1.0"
	vnpCommand    = "pay"
	vnpCurrency   = "VND"
	vnpOrderType  = "other"
	vnpDateLayout = "20060102150405"

	VNPSecureHash     = "vnp_SecureHash"
	VNPSecureHashType = "vnp_SecureHashType"

	// VNPSuccessCode is the gateway's response/transaction code for a settled payment.
	VNPSuccessCode = "00"
)

// PaymentExpiry is how long the gateway keeps the payment page open.
const PaymentExpiry = 15 * time.Minute

var ErrInvalidSignature = errors.New("invalid payment signature")

var vnpLocation = time.FixedZone("GMT+7", 7*60*60)

var vnpMessages = map[string]string{
	"00": "Giao dịch thành công",
	"07": "Trừ tiền thành công. Giao dịch bị nghi ngờ (liên quan tới lừa đảo, giao dịch bất thường).",
	"09": "Thẻ/Tài khoản của khách hàng chưa đăng ký dịch vụ InternetBanking tại ngân hàng.",
	"10": "Khách hàng xác thực thông tin thẻ/tài khoản không đúng quá 3 lần.",
	"11": "Đã hết hạn chờ thanh toán. Xin quý khách vui lòng thực hiện lại giao dịch.",
	"12": "Thẻ/Tài khoản của khách hàng bị khóa.",
	"13": "Quý khách nhập sai mật khẩu xác thực giao dịch (OTP).",
	"24": "Khách hàng hủy giao dịch.",
	"51": "Tài khoản của quý khách không đủ số dư để thực hiện giao dịch.",
	"65": "Tài khoản của Quý khách đã vượt quá hạn mức giao dịch trong ngày.",
	"75": "Ngân hàng thanh toán đang bảo trì.",
	"79": "Quý khách nhập sai mật khẩu thanh toán quá số lần quy định.",
	"99": "Các lỗi khác.",
}

// VNPayResponseMessage localizes a gateway response code.
func VNPayResponseMessage(code string) string {
	if msg, ok := vnpMessages[code]; ok {
		return msg
	}
	return vnpMessages["99"]
}

type VNPayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
}

// VNPay signs redirect URLs and verifies gateway callbacks.
type VNPay struct {
	cfg VNPayConfig
	now func() time.Time
}

func NewVNPay(cfg VNPayConfig) *VNPay {
	return &VNPay{cfg: cfg, now: time.Now}
}

// Enabled reports whether merchant credentials are configured.
func (v *VNPay) Enabled() bool {
	return v != nil && v.cfg.TmnCode != "" && v.cfg.HashSecret != ""
}

type VNPayPaymentRequest struct {
	TxnRef    string
	Amount    float64
	OrderInfo string
	IPAddr    string
	Locale    string
	BankCode  string
}

// BuildPaymentURL returns the gateway redirect URL carrying vnp_SecureHash.
func (v *VNPay) BuildPaymentURL(req VNPayPaymentRequest) (string, error) {
	if !v.Enabled() {
		return "", errors.New("vnpay is not configured")
	}
	if req.TxnRef == "" || req.Amount <= 0 {
		return "", errors.New("vnpay: txn ref and a positive amount are required")
	}
	locale := req.Locale
	if locale == "" {
		locale = "vn"
	}
	ip := req.IPAddr
	if ip == "" {
		ip = "127.0.0.1"
	}

	created := v.now().In(vnpLocation)
	params := url.Values{}
	params.Set("vnp_Version", vnpVersion)
	params.Set("vnp_Command", vnpCommand)
	params.Set("vnp_TmnCode", v.cfg.TmnCode)
	params.Set("vnp_Locale", locale)
	params.Set("vnp_CurrCode", vnpCurrency)
	params.Set("vnp_TxnRef", req.TxnRef)
	params.Set("vnp_OrderInfo", req.OrderInfo)
	params.Set("vnp_OrderType", vnpOrderType)
	params.Set("vnp_Amount", toVNPAmount(req.Amount))
	params.Set("vnp_ReturnUrl", v.cfg.ReturnURL)
	params.Set("vnp_IpAddr", ip)
	params.Set("vnp_CreateDate", created.Format(vnpDateLayout))
	params.Set("vnp_ExpireDate", created.Add(PaymentExpiry).Format(vnpDateLayout))
	if req.BankCode != "" {
		params.Set("vnp_BankCode", req.BankCode)
	}

	signData := CanonicalQuery(params)
	return v.cfg.PayURL + "?" + signData + "&" + VNPSecureHash + "=" + v.sign(signData), nil
}

// CanonicalQuery sorts keys and joins query-escaped k=v pairs with '&'.
// Only the first value of each key counts.
func CanonicalQuery(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(k)))
	}
	return b.String()
}

func (v *VNPay) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(v.cfg.HashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// VNPayResult is a verified callback.
type VNPayResult struct {
	TxnRef            string
	Amount            float64
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	Success           bool
	Message           string
}

// Verify recomputes the signature over every vnp_ field except the hash
// fields and compares it with vnp_SecureHash in constant time.
func (v *VNPay) Verify(query url.Values) (*VNPayResult, error) {
	provided, err := hex.DecodeString(strings.ToLower(query.Get(VNPSecureHash)))
	if err != nil || len(provided) == 0 {
		return nil, ErrInvalidSignature
	}

	signed := url.Values{}
	for k, vals := range query {
		if !strings.HasPrefix(k, "vnp_") || k == VNPSecureHash || k == VNPSecureHashType || len(vals) == 0 {
			continue
		}
		signed.Set(k, vals[0])
	}

	expected, _ := hex.DecodeString(v.sign(CanonicalQuery(signed)))
	if !hmac.Equal(expected, provided) {
		return nil, ErrInvalidSignature
	}

	amount, err := fromVNPAmount(query.Get("vnp_Amount"))
	if err != nil {
		return nil, fmt.Errorf("vnpay: bad amount: %w", err)
	}

	res := &VNPayResult{
		TxnRef:            query.Get("vnp_TxnRef"),
		Amount:            amount,
		ResponseCode:      query.Get("vnp_ResponseCode"),
		TransactionStatus: query.Get("vnp_TransactionStatus"),
		TransactionNo:     query.Get("vnp_TransactionNo"),
		BankCode:          query.Get("vnp_BankCode"),
	}
	res.Success = res.ResponseCode == VNPSuccessCode &&
		(res.TransactionStatus == "" || res.TransactionStatus == VNPSuccessCode)
	res.Message = VNPayResponseMessage(res.ResponseCode)
	return res, nil
}

func toVNPAmount(amount float64) string {
	return decimal.NewFromFloat(amount).Mul(decimal.NewFromInt(100)).Round(0).String()
}

func fromVNPAmount(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return d.Div(decimal.NewFromInt(100)).InexactFloat64(), nil
}
