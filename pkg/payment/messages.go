package payment

// GenericFailureMessage 没有命中任何响应码时的兜底文案
const GenericFailureMessage = "Thanh toán thất bại"

// momoMessages MoMo 结果码对应的用户可读文案
var momoMessages = map[string]string{
	"1":    "Giao dịch thất bại",
	"2":    "Giao dịch bị từ chối do sai thông tin",
	"9":    "Giao dịch bị từ chối bởi ngân hàng phát hành",
	"10":   "Giao dịch bị hủy",
	"11":   "Giao dịch thất bại do quá thời gian thanh toán",
	"12":   "Giao dịch thất bại do lỗi hệ thống",
	"13":   "Giao dịch thất bại do sai mật khẩu",
	"20":   "Số dư không đủ để thanh toán",
	"21":   "Số tiền vượt quá hạn mức thanh toán",
	"1001": "Giao dịch thất bại do tài khoản người dùng bị khóa",
	"1002": "Giao dịch bị từ chối bởi nhà phát hành thẻ",
	"1003": "Giao dịch bị hủy bởi người dùng",
	"1004": "Số tiền vượt quá hạn mức thanh toán của người dùng",
	"1005": "Giao dịch thất bại do url hoặc QR code đã hết hạn",
	"1006": "Giao dịch thất bại do người dùng từ chối xác nhận thanh toán",
}

// zalopayMessages ZaloPay 回跳 status 对应的文案
var zalopayMessages = map[string]string{
	"-1": "Giao dịch thất bại",
	"2":  "Giao dịch bị hủy bởi người dùng",
	"3":  "Giao dịch đang xử lý",
}

// vnpayMessages VNPay 响应码对应的文案
var vnpayMessages = map[string]string{
	"07": "Trừ tiền thành công. Giao dịch bị nghi ngờ (liên quan tới lừa đảo, giao dịch bất thường)",
	"09": "Thẻ/Tài khoản chưa đăng ký dịch vụ InternetBanking tại ngân hàng",
	"10": "Xác thực thông tin thẻ/tài khoản không đúng quá 3 lần",
	"11": "Đã hết hạn chờ thanh toán",
	"12": "Thẻ/Tài khoản bị khóa",
	"13": "Nhập sai mật khẩu xác thực giao dịch (OTP)",
	"24": "Khách hàng hủy giao dịch",
	"51": "Tài khoản không đủ số dư để thực hiện giao dịch",
	"65": "Tài khoản đã vượt quá hạn mức giao dịch trong ngày",
	"75": "Ngân hàng thanh toán đang bảo trì",
	"79": "Nhập sai mật khẩu thanh toán quá số lần quy định",
	"99": "Lỗi không xác định",
}

// MomoMessage 查 MoMo 结果码文案，未命中返回空串由调用方决定兜底
func MomoMessage(code string) string {
	return momoMessages[code]
}

// ZaloPayMessage 查 ZaloPay 状态码文案
func ZaloPayMessage(status string) string {
	if msg, ok := zalopayMessages[status]; ok {
		return msg
	}
	return GenericFailureMessage
}

// VNPayMessage 查 VNPay 响应码文案
func VNPayMessage(code string) string {
	if msg, ok := vnpayMessages[code]; ok {
		return msg
	}
	return GenericFailureMessage
}
