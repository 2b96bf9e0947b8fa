package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cinepay/app/models/payment"
	"cinepay/pkg/booking"
	"cinepay/pkg/gateway/factory"
	"cinepay/pkg/gateway/momo"
	"cinepay/pkg/gateway/types"
	"cinepay/pkg/gateway/zalopay"
)

// fakeRepo 内存仓储，条件更新的语义和真实仓库一致
type fakeRepo struct {
	mu     sync.Mutex
	byCode map[string]*payment.Payment
	nextID uint64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byCode: map[string]*payment.Payment{}}
}

func (r *fakeRepo) Create(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	cp := *p
	r.byCode[p.PaymentCode] = &cp
	return nil
}

func (r *fakeRepo) Update(_ context.Context, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byCode[p.PaymentCode] = &cp
	return nil
}

func (r *fakeRepo) GetByID(_ context.Context, id uint64) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byCode {
		if p.ID == id && !p.Deleted {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetByCode(_ context.Context, code string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byCode[code]; ok && !p.Deleted {
		cp := *p
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) LatestByBookingID(_ context.Context, bookingID string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *payment.Payment
	for _, p := range r.byCode {
		if p.BookingID != bookingID || p.Deleted {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *fakeRepo) GetByTransactionID(_ context.Context, transactionID string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byCode {
		if p.TransactionID == transactionID && !p.Deleted {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) GetByCorrelationID(_ context.Context, transID string) (*payment.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byCode {
		if p.Deleted {
			continue
		}
		if v, ok := p.Metadata["trans_id"].(string); ok && v == transID {
			cp := *p
			return &cp, nil
		}
		if v, ok := p.GatewayResponse["app_trans_id"].(string); ok && v == transID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeRepo) HasCompletedForBooking(_ context.Context, bookingID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hasCompletedLocked(bookingID, 0), nil
}

func (r *fakeRepo) hasCompletedLocked(bookingID string, excludeID uint64) bool {
	for _, p := range r.byCode {
		if p.BookingID == bookingID && p.Status == string(payment.StatusCompleted) && !p.Deleted && p.ID != excludeID {
			return true
		}
	}
	return false
}

func (r *fakeRepo) MarkCompleted(_ context.Context, p *payment.Payment, transactionID string, gatewayResponse payment.JSON) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byCode[p.PaymentCode]
	if !ok || cur.Deleted {
		return false, nil
	}
	switch payment.Status(cur.Status) {
	case payment.StatusCompleted, payment.StatusRefunded, payment.StatusCancelled:
		return false, nil
	}
	if r.hasCompletedLocked(cur.BookingID, cur.ID) {
		return false, nil
	}

	now := time.Now()
	cur.Status = string(payment.StatusCompleted)
	cur.TransactionID = transactionID
	cur.GatewayResponse = gatewayResponse
	cur.PaidAt = &now
	cur.ExpiresAt = nil

	p.Status = cur.Status
	p.TransactionID = transactionID
	p.GatewayResponse = gatewayResponse
	p.PaidAt = &now
	p.ExpiresAt = nil
	return true, nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, p *payment.Payment, gatewayResponse payment.JSON) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byCode[p.PaymentCode]
	if !ok || cur.Deleted {
		return false, nil
	}
	switch payment.Status(cur.Status) {
	case payment.StatusCompleted, payment.StatusRefunded:
		return false, nil
	}

	cur.Status = string(payment.StatusFailed)
	cur.GatewayResponse = gatewayResponse
	p.Status = cur.Status
	p.GatewayResponse = gatewayResponse
	return true, nil
}

func (r *fakeRepo) SweepExpired(_ context.Context, graceDuration time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := time.Now().Add(-graceDuration)
	var count int64
	for _, p := range r.byCode {
		if p.Status == string(payment.StatusPending) && !p.Deleted &&
			p.ExpiresAt != nil && p.ExpiresAt.Before(cutoff) {
			now := time.Now()
			p.Deleted = true
			p.DeletedAt = &now
			count++
		}
	}
	return count, nil
}

// fakeNotifier 统计通知次数
type fakeNotifier struct {
	calls int64
}

func (n *fakeNotifier) PaymentCompleted(_ context.Context, _ string, _ *booking.PaymentInfo) error {
	atomic.AddInt64(&n.calls, 1)
	return nil
}

func (n *fakeNotifier) count() int64 {
	return atomic.LoadInt64(&n.calls)
}

// fakeSignals 内存版完成信号
type fakeSignals struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeSignals() *fakeSignals {
	return &fakeSignals{keys: map[string]bool{}}
}

func (s *fakeSignals) Set(key string, _ interface{}, _ time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = true
	return true
}

func (s *fakeSignals) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key]
}

const (
	momoSecret  = "momo-secret"
	zaloKey2    = "zalo-key2"
	vnpaySecret = "vnpay-secret"
)

func testService() (*Service, *fakeRepo, *fakeNotifier, *fakeSignals) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	signals := newFakeSignals()

	codecs := factory.NewCodecs(types.GatewayConfig{
		Momo: types.MomoConfig{
			PartnerCode: "MOMO_TEST",
			AccessKey:   "access-key",
			SecretKey:   momoSecret,
			// 不可达地址，下单会立刻失败，覆盖部分成功的路径
			Endpoint: "http://127.0.0.1:1",
		},
		ZaloPay: types.ZaloPayConfig{
			AppID:    "2553",
			Key1:     "zalo-key1",
			Key2:     zaloKey2,
			Endpoint: "http://127.0.0.1:1",
		},
		VNPay: types.VNPayConfig{
			TmnCode:    "CINEPAY1",
			HashSecret: vnpaySecret,
			URL:        "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
			ReturnURL:  "https://example.com/payments/vnpay/callback",
		},
	})

	return NewService(repo, codecs, notifier, signals), repo, notifier, signals
}

func hmacSHA256(data, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// seedPending 造一条 pending 记录
func seedPending(t *testing.T, repo *fakeRepo, code, bookingID, method string, amount int64) *payment.Payment {
	t.Helper()
	expiresAt := time.Now().Add(payment.PendingTimeout)
	p := &payment.Payment{
		PaymentCode: code,
		BookingID:   bookingID,
		Amount:      amount,
		Method:      method,
		Status:      string(payment.StatusPending),
		Metadata:    payment.JSON{},
		ExpiresAt:   &expiresAt,
	}
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}

// momoSuccessNotification 按 IPN 字段顺序签好名的成功通知
func momoSuccessNotification(orderID string, amount int64, resultCode string) *momo.Notification {
	n := &momo.Notification{
		PartnerCode:  "MOMO_TEST",
		OrderID:      orderID,
		RequestID:    orderID + "_1700000000000",
		Amount:       json.Number(strconv.FormatInt(amount, 10)),
		OrderInfo:    "Thanh toan dat ve",
		OrderType:    "momo_wallet",
		TransID:      json.Number("2720512345"),
		ResultCode:   json.Number(resultCode),
		Message:      "Successful.",
		PayType:      "qr",
		ResponseTime: json.Number("1700000012345"),
	}
	raw := "accessKey=access-key" +
		"&amount=" + n.Amount.String() +
		"&extraData=" + n.ExtraData +
		"&message=" + n.Message +
		"&orderId=" + n.OrderID +
		"&orderInfo=" + n.OrderInfo +
		"&orderType=" + n.OrderType +
		"&partnerCode=" + n.PartnerCode +
		"&payType=" + n.PayType +
		"&requestId=" + n.RequestID +
		"&responseTime=" + n.ResponseTime.String() +
		"&resultCode=" + n.ResultCode.String() +
		"&transId=" + n.TransID.String()
	n.Signature = hmacSHA256(raw, momoSecret)
	return n
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := testService()
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateInput{Method: "cash", Amount: 100})
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = svc.Create(ctx, &CreateInput{BookingID: "BK1", Method: "cash"})
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.Create(ctx, &CreateInput{BookingID: "BK1", Method: "paypal", Amount: 100})
	assert.ErrorIs(t, err, ErrInvalidMethod)
}

func TestCreateCash(t *testing.T) {
	svc, _, _, _ := testService()

	out, err := svc.Create(context.Background(), &CreateInput{
		BookingID: "BK1",
		Amount:    90000,
		Method:    "cash",
	})
	require.NoError(t, err)

	// 现金当场完成，没有有效期也没有跳转地址
	assert.Equal(t, string(payment.StatusCompleted), out.Payment.Status)
	assert.NotNil(t, out.Payment.PaidAt)
	assert.Nil(t, out.Payment.ExpiresAt)
	assert.Empty(t, out.PayURL)
	assert.NotEmpty(t, out.Payment.PaymentCode)
	assert.True(t, strings.HasPrefix(out.Payment.TransactionID, "TXN"))
}

func TestCreateRejectsPaidBooking(t *testing.T) {
	svc, _, _, _ := testService()
	ctx := context.Background()

	_, err := svc.Create(ctx, &CreateInput{BookingID: "BK1", Amount: 90000, Method: "cash"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &CreateInput{BookingID: "BK1", Amount: 90000, Method: "momo"})
	assert.ErrorIs(t, err, ErrBookingAlreadyPaid)
}

func TestCreateVNPay(t *testing.T) {
	svc, _, _, _ := testService()

	out, err := svc.Create(context.Background(), &CreateInput{
		BookingID: "BK2",
		Amount:    150000,
		Method:    "vnpay",
		ClientIP:  "203.0.113.10",
	})
	require.NoError(t, err)

	assert.Equal(t, string(payment.StatusPending), out.Payment.Status)
	require.NotNil(t, out.Payment.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(payment.PendingTimeout), *out.Payment.ExpiresAt, 5*time.Second)
	assert.NotEmpty(t, out.PayURL)
	assert.Equal(t, out.PayURL, out.Payment.Metadata["payment_url"])
}

func TestCreateGatewayFailureKeepsPending(t *testing.T) {
	svc, repo, _, _ := testService()

	// momo 的 endpoint 不可达，下单失败但记录保留
	out, err := svc.Create(context.Background(), &CreateInput{
		BookingID: "BK3",
		Amount:    90000,
		Method:    "momo",
	})
	require.NoError(t, err)
	assert.Empty(t, out.PayURL)
	assert.Equal(t, string(payment.StatusPending), out.Payment.Status)

	stored, err := repo.GetByCode(context.Background(), out.Payment.PaymentCode)
	require.NoError(t, err)
	assert.Equal(t, string(payment.StatusPending), stored.Status)
}

func TestMomoNotifyCompletesOnce(t *testing.T) {
	svc, repo, notifier, signals := testService()
	ctx := context.Background()
	seedPending(t, repo, "PAY1", "BK1", "momo", 90000)

	n := momoSuccessNotification("PAY1", 90000, "0")
	raw := payment.JSON{"resultCode": "0"}

	status, ack := svc.HandleMomoNotify(ctx, n, raw)
	assert.Equal(t, 200, status)
	assert.Equal(t, 0, ack.ResultCode)
	assert.Equal(t, "Success", ack.Message)

	// 网关重发同一通知，确认但不再产生新的流转
	status, ack = svc.HandleMomoNotify(ctx, n, raw)
	assert.Equal(t, 200, status)
	assert.Equal(t, 0, ack.ResultCode)
	assert.Equal(t, "Already processed", ack.Message)

	stored, err := repo.GetByCode(ctx, "PAY1")
	require.NoError(t, err)
	assert.Equal(t, string(payment.StatusCompleted), stored.Status)
	assert.Equal(t, "2720512345", stored.TransactionID)
	assert.NotNil(t, stored.PaidAt)
	assert.Nil(t, stored.ExpiresAt)

	assert.Equal(t, int64(1), notifier.count())
	assert.True(t, signals.Has("paid:PAY1"))
}

func TestMomoNotifyInvalidSignature(t *testing.T) {
	svc, repo, notifier, _ := testService()
	ctx := context.Background()
	seedPending(t, repo, "PAY1", "BK1", "momo", 90000)

	n := momoSuccessNotification("PAY1", 90000, "0")
	n.Amount = json.Number("1")

	status, ack := svc.HandleMomoNotify(ctx, n, payment.JSON{})
	assert.Equal(t, 400, status)
	assert.Equal(t, 1, ack.ResultCode)

	// 验签失败不允许触碰记录
	stored, _ := repo.GetByCode(ctx, "PAY1")
	assert.Equal(t, string(payment.StatusPending), stored.Status)
	assert.Equal(t, int64(0), notifier.count())
}

func TestMomoNotifyNotFound(t *testing.T) {
	svc, _, _, _ := testService()

	n := momoSuccessNotification("PAY404", 90000, "0")
	status, ack := svc.HandleMomoNotify(context.Background(), n, payment.JSON{})
	assert.Equal(t, 404, status)
	assert.Equal(t, 2, ack.ResultCode)
}

func TestMomoNotifyFailureRecorded(t *testing.T) {
	svc, repo, notifier, _ := testService()
	ctx := context.Background()
	seedPending(t, repo, "PAY1", "BK1", "momo", 90000)

	n := momoSuccessNotification("PAY1", 90000, "1006")
	status, ack := svc.HandleMomoNotify(ctx, n, payment.JSON{"resultCode": "1006"})
	assert.Equal(t, 200, status)
	assert.Equal(t, 0, ack.ResultCode)
	assert.Equal(t, "Failed payment recorded", ack.Message)

	stored, _ := repo.GetByCode(ctx, "PAY1")
	assert.Equal(t, string(payment.StatusFailed), stored.Status)
	assert.Equal(t, int64(0), notifier.count())
}

// zaloCallback 用 key2 签好 MAC 的回调
func zaloCallback(appTransID, appUser string, amount int64) *zalopay.Callback {
	data := `{"app_trans_id":"` + appTransID + `","app_user":"` + appUser +
		`","zp_trans_id":231000123456,"amount":` + strconv.FormatInt(amount, 10) + `}`
	return &zalopay.Callback{
		Data: data,
		MAC:  hmacSHA256(data, zaloKey2),
	}
}

func TestZaloPayNotifyCompletesOnce(t *testing.T) {
	svc, repo, notifier, _ := testService()
	ctx := context.Background()
	p := seedPending(t, repo, "PAY2", "BK2", "zalopay", 90000)
	p.Metadata["trans_id"] = "1700000000000"
	require.NoError(t, repo.Update(ctx, p))

	cb := zaloCallback("1700000000000", "PAY2", 90000)

	ack := svc.HandleZaloPayNotify(ctx, cb)
	assert.Equal(t, 1, ack.ReturnCode)
	assert.Equal(t, "Success", ack.ReturnMessage)

	ack = svc.HandleZaloPayNotify(ctx, cb)
	assert.Equal(t, 1, ack.ReturnCode)
	assert.Equal(t, "Already processed", ack.ReturnMessage)

	stored, _ := repo.GetByCode(ctx, "PAY2")
	assert.Equal(t, string(payment.StatusCompleted), stored.Status)
	assert.Equal(t, "231000123456", stored.TransactionID)
	assert.Equal(t, int64(1), notifier.count())
}

func TestZaloPayNotifyInvalidMAC(t *testing.T) {
	svc, repo, _, _ := testService()
	ctx := context.Background()
	seedPending(t, repo, "PAY2", "BK2", "zalopay", 90000)

	cb := zaloCallback("1700000000000", "PAY2", 90000)
	cb.MAC = "tampered"

	ack := svc.HandleZaloPayNotify(ctx, cb)
	assert.Equal(t, -1, ack.ReturnCode)

	stored, _ := repo.GetByCode(ctx, "PAY2")
	assert.Equal(t, string(payment.StatusPending), stored.Status)
}

func TestZaloPayNotifyOrderNotFound(t *testing.T) {
	svc, _, _, _ := testService()

	ack := svc.HandleZaloPayNotify(context.Background(), zaloCallback("9999999", "PAY404", 90000))
	assert.Equal(t, 2, ack.ReturnCode)
}

// vnpaySignedQuery 按 VNPay 规范化规则签名的回跳参数
func vnpaySignedQuery(orderID string, amount int64, responseCode string) map[string]string {
	params := map[string]string{
		"vnp_TmnCode":       "CINEPAY1",
		"vnp_TxnRef":        orderID,
		"vnp_Amount":        strconv.FormatInt(amount*100, 10),
		"vnp_ResponseCode":  responseCode,
		"vnp_TransactionNo": "14350299",
		"vnp_OrderInfo":     "Thanh toan dat ve",
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	// 本测试的键都是 vnp_ 前缀的安全字符，编码前后一致，直接排序
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+url.QueryEscape(params[k]))
	}
	signData := strings.Join(pairs, "&")

	mac := hmac.New(sha512.New, []byte(vnpaySecret))
	mac.Write([]byte(signData))
	params["vnp_SecureHash"] = hex.EncodeToString(mac.Sum(nil))
	return params
}

func TestVNPayReturnSuccess(t *testing.T) {
	svc, repo, notifier, _ := testService()
	ctx := context.Background()
	seedPending(t, repo, "PAY3", "BK3", "vnpay", 150000)

	outcome := svc.HandleVNPayReturn(ctx, vnpaySignedQuery("PAY3", 150000, "00"))
	require.True(t, outcome.OK)
	assert.Equal(t, "BK3", outcome.BookingID)
	assert.Equal(t, "PAY3", outcome.PaymentCode)
	assert.Equal(t, int64(150000), outcome.Amount)

	stored, _ := repo.GetByCode(ctx, "PAY3")
	assert.Equal(t, string(payment.StatusCompleted), stored.Status)
	assert.Equal(t, int64(1), notifier.count())

	// 重复回跳是幂等的
	outcome = svc.HandleVNPayReturn(ctx, vnpaySignedQuery("PAY3", 150000, "00"))
	assert.True(t, outcome.OK)
	assert.Equal(t, int64(1), notifier.count())
}

func TestVNPayReturnFailure(t *testing.T) {
	svc, repo, _, _ := testService()
	ctx := context.Background()
	seedPending(t, repo, "PAY3", "BK3", "vnpay", 150000)

	outcome := svc.HandleVNPayReturn(ctx, vnpaySignedQuery("PAY3", 150000, "24"))
	assert.False(t, outcome.OK)
	assert.Equal(t, "payment_failed", outcome.ErrorCode)
	assert.Equal(t, "24", outcome.ResponseCode)
	assert.Equal(t, "Khách hàng hủy giao dịch", outcome.Message)

	stored, _ := repo.GetByCode(ctx, "PAY3")
	assert.Equal(t, string(payment.StatusFailed), stored.Status)
}

func TestVNPayReturnTampered(t *testing.T) {
	svc, repo, _, _ := testService()
	ctx := context.Background()
	seedPending(t, repo, "PAY3", "BK3", "vnpay", 150000)

	query := vnpaySignedQuery("PAY3", 150000, "00")
	query["vnp_Amount"] = "100"

	outcome := svc.HandleVNPayReturn(ctx, query)
	assert.False(t, outcome.OK)
	assert.Equal(t, "invalid_signature", outcome.ErrorCode)

	stored, _ := repo.GetByCode(ctx, "PAY3")
	assert.Equal(t, string(payment.StatusPending), stored.Status)
}

// VNPay 不会把失败的回跳降级已经完成的记录
func TestVNPayReturnFailureDoesNotDowngrade(t *testing.T) {
	svc, repo, _, _ := testService()
	ctx := context.Background()
	p := seedPending(t, repo, "PAY3", "BK3", "vnpay", 150000)
	won, err := repo.MarkCompleted(ctx, p, "TXN1", payment.JSON{})
	require.NoError(t, err)
	require.True(t, won)

	outcome := svc.HandleVNPayReturn(ctx, vnpaySignedQuery("PAY3", 150000, "24"))
	assert.False(t, outcome.OK)

	stored, _ := repo.GetByCode(ctx, "PAY3")
	assert.Equal(t, string(payment.StatusCompleted), stored.Status)
}

func TestMomoReturnFailureMapsMessage(t *testing.T) {
	svc, repo, _, _ := testService()
	seedPending(t, repo, "PAY1", "BK1", "momo", 90000)

	outcome := svc.HandleMomoReturn(context.Background(), "PAY1", "1006", "")
	assert.False(t, outcome.OK)
	assert.Equal(t, "payment_failed", outcome.ErrorCode)
	assert.Equal(t, "Giao dịch thất bại do người dùng từ chối xác nhận thanh toán", outcome.Message)

	// momo 的回跳参数没有签名，永远不据此改状态
	stored, _ := repo.GetByCode(context.Background(), "PAY1")
	assert.Equal(t, string(payment.StatusPending), stored.Status)
}

func TestMomoReturnMissingParams(t *testing.T) {
	svc, _, _, _ := testService()
	outcome := svc.HandleMomoReturn(context.Background(), "", "0", "")
	assert.Equal(t, "invalid_params", outcome.ErrorCode)
}

func TestMomoReturnNotFound(t *testing.T) {
	svc, _, _, _ := testService()
	outcome := svc.HandleMomoReturn(context.Background(), "PAY404", "0", "")
	assert.Equal(t, "payment_not_found", outcome.ErrorCode)
}

// 回跳先到、IPN 后到：等待循环应当在 IPN 落库后返回 completed
func TestMomoReturnWaitsForNotify(t *testing.T) {
	svc, repo, _, _ := testService()
	ctx := context.Background()
	seedPending(t, repo, "PAY1", "BK1", "momo", 90000)

	go func() {
		time.Sleep(200 * time.Millisecond)
		n := momoSuccessNotification("PAY1", 90000, "0")
		svc.HandleMomoNotify(context.Background(), n, payment.JSON{})
	}()

	outcome := svc.HandleMomoReturn(ctx, "PAY1", "0", "")
	require.True(t, outcome.OK)
	assert.Equal(t, string(payment.StatusCompleted), outcome.Status)
}

func TestZaloPayReturnNotFound(t *testing.T) {
	svc, _, _, _ := testService()
	outcome := svc.HandleZaloPayReturn(context.Background(), "no-such-trans", "1")
	assert.Equal(t, "payment_not_found", outcome.ErrorCode)
}

func TestZaloPayReturnFailureMapsMessage(t *testing.T) {
	svc, repo, _, _ := testService()
	ctx := context.Background()
	p := seedPending(t, repo, "PAY2", "BK2", "zalopay", 90000)
	p.Metadata["trans_id"] = "1700000000000"
	require.NoError(t, repo.Update(ctx, p))

	outcome := svc.HandleZaloPayReturn(ctx, "1700000000000", "2")
	assert.False(t, outcome.OK)
	assert.Equal(t, "Giao dịch bị hủy bởi người dùng", outcome.Message)
}

// 并发重复通知只允许一次流转、一次订票通知
func TestConcurrentNotifyCompletesExactlyOnce(t *testing.T) {
	svc, repo, notifier, _ := testService()
	ctx := context.Background()
	seedPending(t, repo, "PAY1", "BK1", "momo", 90000)

	n := momoSuccessNotification("PAY1", 90000, "0")

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.HandleMomoNotify(ctx, n, payment.JSON{})
		}()
	}
	wg.Wait()

	stored, _ := repo.GetByCode(ctx, "PAY1")
	assert.Equal(t, string(payment.StatusCompleted), stored.Status)
	assert.Equal(t, int64(1), notifier.count())
}

func TestSweeperRemovesStalePending(t *testing.T) {
	svc, repo, _, _ := testService()
	ctx := context.Background()

	stale := seedPending(t, repo, "PAY_OLD", "BK9", "momo", 90000)
	old := time.Now().Add(-48 * time.Hour)
	stale.ExpiresAt = &old
	require.NoError(t, repo.Update(ctx, stale))

	seedPending(t, repo, "PAY_NEW", "BK10", "momo", 90000)

	stop := svc.StartExpirySweeper(20 * time.Millisecond)
	defer stop()
	time.Sleep(100 * time.Millisecond)

	_, err := repo.GetByCode(ctx, "PAY_OLD")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.GetByCode(ctx, "PAY_NEW")
	assert.NoError(t, err)
}
