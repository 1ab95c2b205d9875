package shared

var messages = map[string]string{
	"error.bad_request":          "bad request",
	"error.unauthorized":         "unauthorized",
	"error.forbidden":            "forbidden",
	"error.internal":             "internal server error",
	"error.jwt_secret_missing":   "jwt secret is not configured",
	"error.auth_header_missing":  "authorization header is required",
	"error.auth_header_invalid":  "authorization header must be a bearer token",
	"error.token_invalid":        "token invalid or expired",
	"error.too_many_requests":    "too many requests, please retry later",
	"error.item_unavailable":     "item unavailable in requested quantity",
	"error.product_not_found":    "product not found",
	"error.product_exists":       "product already exists",
	"error.order_not_found":      "order not found",
	"error.order_exists":         "order already exists",
	"error.order_codes_revealed": "order codes already revealed",
	"error.order_voided":         "order voided",
	"error.file_required":        "file is required",
	"error.file_too_large":       "file too large",
	"error.price_invalid":        "price must be a decimal number",
}

// Message 返回消息键对应的文案，未知键原样返回。
func Message(key string) string {
	if msg, ok := messages[key]; ok {
		return msg
	}
	return key
}
