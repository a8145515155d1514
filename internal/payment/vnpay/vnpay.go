package vnpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Version             = "2.1.0"
	CommandPay          = "pay"
	CommandRefund       = "refund"
	CurrencyVND         = "VND"
	OrderTypeOther      = "other"
	ResponseCodeSuccess = "00"
	// TransactionTypeFullRefund 全额退款
	TransactionTypeFullRefund = "02"
	// TransactionTypePartialRefund 部分退款
	TransactionTypePartialRefund = "03"
	timeLayout                   = "20060102150405"
)

var (
	ErrConfigInvalid    = errors.New("vnpay config invalid")
	ErrRequestFailed    = errors.New("vnpay request failed")
	ErrResponseInvalid  = errors.New("vnpay response invalid")
	ErrSignatureInvalid = errors.New("vnpay signature invalid")
	ErrRefundRejected   = errors.New("vnpay refund rejected")
)

// 网关时间统一使用越南时区
var gatewayZone = time.FixedZone("ICT", 7*60*60)

// Config VNPay 商户配置
type Config struct {
	TmnCode       string
	HashSecret    string
	PayURL        string
	APIURL        string
	ReturnURL     string
	Locale        string
	ExpireMinutes int
	Timeout       time.Duration
}

// Client VNPay 客户端
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
}

// PaymentInput 支付链接参数
type PaymentInput struct {
	TxnRef    string
	Amount    decimal.Decimal
	OrderInfo string
	ClientIP  string
}

// ReturnData 回跳参数解析结果
type ReturnData struct {
	TxnRef          string
	ResponseCode    string
	TransactionNo   string
	TransactionDate string
	BankCode        string
	Amount          decimal.Decimal
	Raw             map[string]string
}

// Success 网关是否确认支付成功
func (d *ReturnData) Success() bool {
	return d != nil && d.ResponseCode == ResponseCodeSuccess
}

// RefundInput 退款参数
type RefundInput struct {
	TxnRef          string
	TransactionNo   string
	TransactionDate string
	Amount          decimal.Decimal
	Full            bool
	OrderInfo       string
	CreatedBy       string
	ClientIP        string
}

// RefundResult 退款结果
type RefundResult struct {
	ResponseCode  string
	Message       string
	TransactionNo string
	Raw           map[string]interface{}
}

// ValidateConfig 校验配置完整性
func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.TmnCode) == "" {
		return fmt.Errorf("%w: tmn_code is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.HashSecret) == "" {
		return fmt.Errorf("%w: hash_secret is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.PayURL) == "" {
		return fmt.Errorf("%w: pay_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.ReturnURL) == "" {
		return fmt.Errorf("%w: return_url is required", ErrConfigInvalid)
	}
	return nil
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.ExpireMinutes <= 0 {
		cfg.ExpireMinutes = 15
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.Locale) == "" {
		cfg.Locale = "vn"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		now:        time.Now,
	}, nil
}

// BuildPaymentURL 生成带签名的支付跳转链接
func (c *Client) BuildPaymentURL(input PaymentInput) (string, error) {
	if strings.TrimSpace(input.TxnRef) == "" {
		return "", fmt.Errorf("%w: txn_ref is required", ErrConfigInvalid)
	}
	if !input.Amount.IsPositive() {
		return "", fmt.Errorf("%w: amount must be positive", ErrConfigInvalid)
	}
	clientIP := strings.TrimSpace(input.ClientIP)
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}
	orderInfo := strings.TrimSpace(input.OrderInfo)
	if orderInfo == "" {
		orderInfo = "Payment for " + input.TxnRef
	}
	now := c.now().In(gatewayZone)
	params := map[string]string{
		"vnp_Version":    Version,
		"vnp_Command":    CommandPay,
		"vnp_TmnCode":    c.cfg.TmnCode,
		"vnp_Amount":     FormatAmount(input.Amount),
		"vnp_CurrCode":   CurrencyVND,
		"vnp_TxnRef":     input.TxnRef,
		"vnp_OrderInfo":  orderInfo,
		"vnp_OrderType":  OrderTypeOther,
		"vnp_Locale":     c.cfg.Locale,
		"vnp_ReturnUrl":  c.cfg.ReturnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_CreateDate": now.Format(timeLayout),
		"vnp_ExpireDate": now.Add(time.Duration(c.cfg.ExpireMinutes) * time.Minute).Format(timeLayout),
	}
	query := buildQuery(params)
	signature := sign(query, c.cfg.HashSecret)
	return strings.TrimRight(c.cfg.PayURL, "?") + "?" + query + "&vnp_SecureHash=" + signature, nil
}

// VerifyReturn 校验回跳参数签名并解析
func (c *Client) VerifyReturn(values url.Values) (*ReturnData, error) {
	received := strings.TrimSpace(values.Get("vnp_SecureHash"))
	if received == "" {
		return nil, ErrSignatureInvalid
	}
	params := make(map[string]string, len(values))
	for key, vals := range values {
		if len(vals) == 0 || !strings.HasPrefix(key, "vnp_") {
			continue
		}
		if key == "vnp_SecureHash" || key == "vnp_SecureHashType" {
			continue
		}
		params[key] = vals[0]
	}
	expected := sign(buildQuery(params), c.cfg.HashSecret)
	if !hmac.Equal([]byte(strings.ToLower(expected)), []byte(strings.ToLower(received))) {
		return nil, ErrSignatureInvalid
	}

	amount, err := ParseAmount(params["vnp_Amount"])
	if err != nil {
		return nil, fmt.Errorf("%w: vnp_Amount", ErrResponseInvalid)
	}
	return &ReturnData{
		TxnRef:          params["vnp_TxnRef"],
		ResponseCode:    params["vnp_ResponseCode"],
		TransactionNo:   params["vnp_TransactionNo"],
		TransactionDate: params["vnp_PayDate"],
		BankCode:        params["vnp_BankCode"],
		Amount:          amount,
		Raw:             params,
	}, nil
}

// Refund 调用网关退款接口
func (c *Client) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if strings.TrimSpace(c.cfg.APIURL) == "" {
		return nil, fmt.Errorf("%w: api_url is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(input.TxnRef) == "" || !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: txn_ref and positive amount are required", ErrConfigInvalid)
	}
	now := c.now().In(gatewayZone)
	transactionType := TransactionTypePartialRefund
	if input.Full {
		transactionType = TransactionTypeFullRefund
	}
	transactionDate := strings.TrimSpace(input.TransactionDate)
	if transactionDate == "" {
		transactionDate = now.Format(timeLayout)
	}
	createdBy := strings.TrimSpace(input.CreatedBy)
	if createdBy == "" {
		createdBy = "merchant"
	}
	clientIP := strings.TrimSpace(input.ClientIP)
	if clientIP == "" {
		clientIP = "127.0.0.1"
	}
	orderInfo := strings.TrimSpace(input.OrderInfo)
	if orderInfo == "" {
		orderInfo = "Refund " + input.TxnRef
	}

	body := map[string]string{
		"vnp_RequestId":       strconv.FormatInt(now.UnixNano(), 10),
		"vnp_Version":         Version,
		"vnp_Command":         CommandRefund,
		"vnp_TmnCode":         c.cfg.TmnCode,
		"vnp_TransactionType": transactionType,
		"vnp_TxnRef":          input.TxnRef,
		"vnp_Amount":          FormatAmount(input.Amount),
		"vnp_TransactionNo":   input.TransactionNo,
		"vnp_TransactionDate": transactionDate,
		"vnp_CreateBy":        createdBy,
		"vnp_CreateDate":      now.Format(timeLayout),
		"vnp_IpAddr":          clientIP,
		"vnp_OrderInfo":       orderInfo,
	}
	// 退款接口使用竖线拼接的固定字段顺序签名
	hashData := strings.Join([]string{
		body["vnp_RequestId"],
		body["vnp_Version"],
		body["vnp_Command"],
		body["vnp_TmnCode"],
		body["vnp_TransactionType"],
		body["vnp_TxnRef"],
		body["vnp_Amount"],
		body["vnp_TransactionNo"],
		body["vnp_TransactionDate"],
		body["vnp_CreateBy"],
		body["vnp_CreateDate"],
		body["vnp_IpAddr"],
		body["vnp_OrderInfo"],
	}, "|")
	body["vnp_SecureHash"] = sign(hashData, c.cfg.HashSecret)

	respBytes, err := c.postJSON(ctx, c.cfg.APIURL, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(respBytes, &raw); err != nil {
		return nil, ErrResponseInvalid
	}
	result := &RefundResult{
		ResponseCode:  stringField(raw, "vnp_ResponseCode"),
		Message:       stringField(raw, "vnp_Message"),
		TransactionNo: stringField(raw, "vnp_TransactionNo"),
		Raw:           raw,
	}
	if result.ResponseCode != ResponseCodeSuccess {
		return result, fmt.Errorf("%w: %s %s", ErrRefundRejected, result.ResponseCode, result.Message)
	}
	return result, nil
}

// FormatAmount 网关金额为实际金额 x100 的整数
func FormatAmount(amount decimal.Decimal) string {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).StringFixed(0)
}

// ParseAmount 还原网关金额
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, err
	}
	return value.Div(decimal.NewFromInt(100)), nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// buildQuery 按键名排序并做表单编码
func buildQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var buf strings.Builder
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(url.QueryEscape(k))
		buf.WriteByte('=')
		buf.WriteString(url.QueryEscape(params[k]))
	}
	return buf.String()
}

func sign(content, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(content))
	return hex.EncodeToString(mac.Sum(nil))
}

func stringField(raw map[string]interface{}, key string) string {
	if raw == nil {
		return ""
	}
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
