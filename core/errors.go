package core

import "errors"

// Error is a client-correctable failure with a stable machine code and a
// localized message that can be shown to the end user verbatim.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Challenge subsystem errors. All map to HTTP 400.
var (
	ErrCaptchaInvalidSession  = &Error{Code: "CAPTCHA_INVALID_SESSION", Message: "جلسة التحقق غير موجودة، يرجى طلب سؤال جديد"}
	ErrCaptchaExpired         = &Error{Code: "CAPTCHA_SESSION_EXPIRED", Message: "انتهت صلاحية جلسة التحقق، يرجى طلب سؤال جديد"}
	ErrCaptchaTooManyAttempts = &Error{Code: "CAPTCHA_TOO_MANY_ATTEMPTS", Message: "تجاوزت الحد الأقصى لعدد المحاولات، يرجى طلب سؤال جديد"}
	ErrCaptchaWrongAnswer     = &Error{Code: "CAPTCHA_WRONG_ANSWER", Message: "الإجابة غير صحيحة، حاول مرة أخرى"}
	ErrCaptchaRequired        = &Error{Code: "CAPTCHA_REQUIRED", Message: "يجب التحقق من أنك لست روبوتاً أولاً"}
	ErrMissingFields          = &Error{Code: "MISSING_FIELDS", Message: "يرجى تعبئة جميع الحقول المطلوبة"}
)

// Account errors.
var (
	ErrEmailTaken         = &Error{Code: "EMAIL_TAKEN", Message: "البريد الإلكتروني مسجل مسبقاً"}
	ErrInvalidCredentials = &Error{Code: "INVALID_CREDENTIALS", Message: "البريد الإلكتروني أو كلمة المرور غير صحيحة"}
)

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrInvalidExpiry    = errors.New("invalid expiry descriptor")
	ErrUserNotFound     = errors.New("user not found")
)
