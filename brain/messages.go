package brain

// Localized conversation copy. Keys are looked up per lead language with
// an English fallback so a missing translation never breaks a turn.

const (
	msgGreeting        = "greeting"
	msgLanguagePrompt  = "language_prompt"
	msgWarmupPrompt    = "warmup_prompt"
	msgContactPrompt   = "contact_prompt"
	msgContactRetry    = "contact_retry"
	msgContactThanks   = "contact_thanks"
	msgAskBudget       = "ask_budget"
	msgAskPropertyType = "ask_property_type"
	msgAskLocation     = "ask_location"
	msgValuePropMatch  = "value_prop_match"
	msgValuePropNone   = "value_prop_none"
	msgMediaPreview    = "media_preview"
	msgEngagementIntro = "engagement_intro"
	msgNurture         = "nurture"
	msgHandoffAck      = "handoff_ack"
	msgBookingAck      = "booking_ack"
	msgFallback        = "fallback"
)

// LanguageButtons are offered in LANGUAGE_SELECT, in a fixed order.
var LanguageButtons = []string{"English", "فارسی", "العربية", "Русский"}

var languageByButton = map[string]string{
	"English": "en",
	"فارسی":   "fa",
	"العربية": "ar",
	"Русский": "ru",
	"en":      "en",
	"fa":      "fa",
	"ar":      "ar",
	"ru":      "ru",
}

// Canonical goal values stored in the goal slot.
const (
	GoalInvestment = "investment"
	GoalLiving     = "living"
	GoalResidency  = "residency"
)

// goalButtons returns the localized WARMUP choices.
func goalButtons(lang string) []string {
	switch lang {
	case "fa":
		return []string{"سرمایه‌گذاری", "برای زندگی", "اقامت"}
	case "ar":
		return []string{"استثمار", "للسكن", "إقامة"}
	case "ru":
		return []string{"Инвестиции", "Для жизни", "Резидентство"}
	default:
		return []string{"Investment", "For living", "Residency"}
	}
}

// goalByLabel maps every localized button label back to its canonical
// goal value.
var goalByLabel = map[string]string{
	"Investment": GoalInvestment, "For living": GoalLiving, "Residency": GoalResidency,
	"سرمایه‌گذاری": GoalInvestment, "برای زندگی": GoalLiving, "اقامت": GoalResidency,
	"استثمار": GoalInvestment, "للسكن": GoalLiving, "إقامة": GoalResidency,
	"Инвестиции": GoalInvestment, "Для жизни": GoalLiving, "Резидентство": GoalResidency,
}

var catalog = map[string]map[string]string{
	"en": {
		msgGreeting:        "Hi! 👋 I'm the assistant of this agency — I'll help you find the right property in a couple of minutes.",
		msgLanguagePrompt:  "Which language would you like to continue in?",
		msgWarmupPrompt:    "Great! What are you looking for a property for?",
		msgContactPrompt:   "Got it. To send you a tailored selection, what's the best phone number to reach you?",
		msgContactRetry:    "That doesn't look like a phone number. Could you send it like +971 50 123 4567?",
		msgContactThanks:   "Thank you! Our consultant will be in touch shortly.",
		msgAskBudget:       "What budget are you considering? A rough figure like 750k or 1.2m works fine.",
		msgAskPropertyType: "What type of property are you interested in — apartment, villa, townhouse?",
		msgAskLocation:     "Any preferred area or district?",
		msgValuePropMatch:  "We have %d projects matching your budget — only %d units left in the most popular one. I can reserve a viewing for you.",
		msgValuePropNone:   "The market is moving fast in this range right now. The best move is a quick free consultation — our expert will find off-market options for you.",
		msgMediaPreview:    "Of course! Here's a preview of our current projects — photos, plans and video tours are in the catalog I'm sending you now.",
		msgEngagementIntro: "Perfect, I have everything I need. Feel free to ask me anything about the projects, payment plans or the area.",
		msgNurture:         "Noted! If you'd like, I can send a comparison of the best options or book a free consultation.",
		msgHandoffAck:      "I've passed your conversation to our senior consultant — they will contact you personally.",
		msgBookingAck:      "Excellent! I'm connecting you with our consultant to arrange the details.",
		msgFallback:        "I'm having a little trouble right now — please try again in a moment.",
	},
	"fa": {
		msgGreeting:        "سلام! 👋 من دستیار این آژانس هستم — در چند دقیقه کمکتان می‌کنم ملک مناسب را پیدا کنید.",
		msgLanguagePrompt:  "مایلید به چه زبانی ادامه دهیم؟",
		msgWarmupPrompt:    "عالی! برای چه هدفی دنبال ملک هستید؟",
		msgContactPrompt:   "متوجه شدم. برای ارسال پیشنهادهای اختصاصی، بهترین شماره تماس شما چیست؟",
		msgContactRetry:    "این شبیه شماره تلفن نیست. می‌شود به این شکل بفرستید؟ +971 50 123 4567",
		msgContactThanks:   "متشکرم! مشاور ما به‌زودی با شما تماس می‌گیرد.",
		msgAskBudget:       "چه بودجه‌ای در نظر دارید؟ یک عدد تقریبی مثل 750k کافی است.",
		msgAskPropertyType: "چه نوع ملکی مد نظرتان است — آپارتمان، ویلا، تاون‌هاوس؟",
		msgAskLocation:     "منطقه یا محله خاصی مد نظرتان هست؟",
		msgValuePropMatch:  "%d پروژه مطابق بودجه شما داریم — در محبوب‌ترین آن‌ها فقط %d واحد باقی مانده. می‌توانم بازدید رزرو کنم.",
		msgValuePropNone:   "بازار در این محدوده خیلی داغ است. بهترین کار یک مشاوره رایگان کوتاه است — کارشناس ما گزینه‌های خارج از سایت را هم برایتان پیدا می‌کند.",
		msgMediaPreview:    "حتماً! این پیش‌نمایش پروژه‌های فعلی ماست — عکس‌ها، نقشه‌ها و تور ویدیویی در کاتالوگی است که الان می‌فرستم.",
		msgEngagementIntro: "عالی، همه چیز را دارم. هر سوالی درباره پروژه‌ها، شرایط پرداخت یا منطقه دارید بپرسید.",
		msgNurture:         "ثبت شد! اگر بخواهید مقایسه بهترین گزینه‌ها را بفرستم یا مشاوره رایگان رزرو کنم.",
		msgHandoffAck:      "گفتگوی شما را به مشاور ارشد منتقل کردم — شخصاً با شما تماس می‌گیرند.",
		msgBookingAck:      "عالی! شما را به مشاور ما وصل می‌کنم تا جزئیات را هماهنگ کند.",
		msgFallback:        "الان مشکل کوچکی پیش آمده — لطفاً چند لحظه دیگر دوباره امتحان کنید.",
	},
	"ar": {
		msgGreeting:        "مرحباً! 👋 أنا مساعد هذه الوكالة — سأساعدك في العثور على العقار المناسب خلال دقائق.",
		msgLanguagePrompt:  "بأي لغة تفضل أن نتابع؟",
		msgWarmupPrompt:    "رائع! ما هدفك من شراء العقار؟",
		msgContactPrompt:   "فهمت. لإرسال اختيارات مخصصة لك، ما أفضل رقم هاتف للتواصل؟",
		msgContactRetry:    "هذا لا يبدو رقم هاتف. هل يمكنك إرساله بهذا الشكل؟ +971 50 123 4567",
		msgContactThanks:   "شكراً لك! سيتواصل معك مستشارنا قريباً.",
		msgAskBudget:       "ما الميزانية التي تفكر فيها؟ رقم تقريبي مثل 750k يكفي.",
		msgAskPropertyType: "ما نوع العقار الذي يهمك — شقة، فيلا، تاون هاوس؟",
		msgAskLocation:     "هل لديك منطقة مفضلة؟",
		msgValuePropMatch:  "لدينا %d مشاريع تناسب ميزانيتك — بقي %d وحدات فقط في الأكثر طلباً. يمكنني حجز معاينة لك.",
		msgValuePropNone:   "السوق يتحرك بسرعة في هذا النطاق الآن. أفضل خطوة هي استشارة مجانية سريعة — سيجد خبيرنا خيارات خارج السوق لك.",
		msgMediaPreview:    "بالطبع! هذه لمحة عن مشاريعنا الحالية — الصور والمخططات وجولات الفيديو في الكتالوج الذي أرسله الآن.",
		msgEngagementIntro: "ممتاز، لدي كل ما أحتاجه. اسألني ما تشاء عن المشاريع أو خطط الدفع أو المنطقة.",
		msgNurture:         "تم! إذا رغبت أرسل لك مقارنة بأفضل الخيارات أو أحجز استشارة مجانية.",
		msgHandoffAck:      "حوّلت محادثتك إلى مستشارنا الأول — سيتواصل معك شخصياً.",
		msgBookingAck:      "ممتاز! أوصلك بمستشارنا لترتيب التفاصيل.",
		msgFallback:        "أواجه مشكلة بسيطة الآن — حاول مرة أخرى بعد قليل.",
	},
	"ru": {
		msgGreeting:        "Здравствуйте! 👋 Я ассистент этого агентства — за пару минут помогу подобрать подходящий объект.",
		msgLanguagePrompt:  "На каком языке вам удобнее продолжить?",
		msgWarmupPrompt:    "Отлично! Для какой цели вы подбираете недвижимость?",
		msgContactPrompt:   "Понял. Чтобы отправить персональную подборку, укажите удобный номер телефона.",
		msgContactRetry:    "Это не похоже на номер телефона. Отправьте, пожалуйста, в формате +971 50 123 4567.",
		msgContactThanks:   "Спасибо! Наш консультант скоро свяжется с вами.",
		msgAskBudget:       "Какой бюджет вы рассматриваете? Достаточно примерной цифры, например 750k.",
		msgAskPropertyType: "Какой тип недвижимости вас интересует — квартира, вилла, таунхаус?",
		msgAskLocation:     "Есть ли предпочтительный район?",
		msgValuePropMatch:  "У нас %d проектов под ваш бюджет — в самом популярном осталось всего %d лотов. Могу забронировать просмотр.",
		msgValuePropNone:   "Рынок в этом диапазоне сейчас очень активен. Лучший шаг — быстрая бесплатная консультация: наш эксперт найдёт варианты вне открытой продажи.",
		msgMediaPreview:    "Конечно! Вот превью наших текущих проектов — фото, планировки и видеотуры в каталоге, который я отправляю.",
		msgEngagementIntro: "Отлично, у меня есть всё необходимое. Спрашивайте о проектах, рассрочке или районе.",
		msgNurture:         "Принято! Могу отправить сравнение лучших вариантов или записать вас на бесплатную консультацию.",
		msgHandoffAck:      "Я передал ваш диалог старшему консультанту — он свяжется с вами лично.",
		msgBookingAck:      "Отлично! Соединяю вас с нашим консультантом для согласования деталей.",
		msgFallback:        "Небольшая заминка с моей стороны — попробуйте, пожалуйста, ещё раз через минуту.",
	},
}

// Message returns the localized copy for key, falling back to English.
func Message(lang, key string) string {
	if msgs, ok := catalog[lang]; ok {
		if m, ok := msgs[key]; ok {
			return m
		}
	}
	return catalog["en"][key]
}

// FallbackMessage is the localized "I'm having trouble" reply the
// dispatcher sends when a turn cannot complete.
func FallbackMessage(lang string) string {
	return Message(lang, msgFallback)
}
