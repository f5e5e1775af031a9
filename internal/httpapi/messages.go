package httpapi

// Visitor-facing messages. The shop is Persian-only.
const (
	msgTryAgain        = "خطایی رخ داد. لطفاً دوباره تلاش کنید."
	msgProductNotFound = "محصول مورد نظر یافت نشد."
	msgOrderNotFound   = "سفارش یافت نشد."

	msgAddedToCart       = "%s به سبد خرید اضافه شد"
	msgAddToCartFailed   = "خطا در افزودن محصول به سبد خرید"
	msgStockInsufficient = "موجودی %s کافی نیست."
	msgStockReduced      = "تعداد %s به دلیل محدودیت موجودی کاهش یافت."
	msgIncreased         = "تعداد %s افزایش یافت"
	msgDecreased         = "تعداد %s کاهش یافت"
	msgMinimumQuantity   = "حداقل تعداد محصول ۱ می‌باشد"
	msgQuantityChanged   = "تعداد %s به %d عدد تغییر یافت"
	msgQuantityRange     = "تعداد باید بین ۱ تا ۹۹ باشد."
	msgRemovedFromCart   = "%s از سبد خرید حذف شد"
	msgLineRemoved       = "محصول از سبد خرید حذف شد"
	msgCartCleared       = "سبد خرید پاک شد"
	msgCartEmpty         = "سبد خرید شما خالی است"
	msgCheckoutFailed    = "خطا در ثبت سفارش. لطفاً دوباره تلاش کنید."

	msgDiscountEmpty     = "لطفاً کد تخفیف را وارد کنید."
	msgDiscountInvalid   = "کد تخفیف معتبر نیست."
	msgDiscountExhausted = "این کد تخفیف منقضی شده است."
	msgDiscountApplied   = "کد تخفیف %d%% اعمال شد!"
	msgDiscountRemoved   = "کد تخفیف حذف شد."

	msgRegistered         = "ثبت‌نام با موفقیت انجام شد!"
	msgRegisterInvalid    = "لطفاً اطلاعات را صحیح وارد کنید."
	msgPasswordMismatch   = "رمزهای عبور با هم مطابقت ندارند."
	msgPasswordTooShort   = "رمز عبور باید حداقل ۸ کاراکتر باشد."
	msgUsernameTaken      = "این نام کاربری قبلاً ثبت شده است."
	msgWelcome            = "خوش آمدید %s!"
	msgInvalidCredentials = "نام کاربری یا رمز عبور صحیح نیست."
	msgLoggedOut          = "با موفقیت خارج شدید."
	msgLoginRequired      = "لطفاً ابتدا وارد حساب کاربری خود شوید."

	msgContactRequired = "لطفاً تمام فیلدها را پر کنید."
	msgContactTooShort = "پیام باید حداقل ۱۰ کاراکتر داشته باشد."
	msgContactSent     = "پیام شما با موفقیت ارسال شد. به زودی با شما تماس خواهیم گرفت."
)
