package models

import "gorm.io/gorm"

// Default drip copy per language, stages 0..4. Stage 4 is the exit
// message; after it fires the scheduler disables the drip for the lead.
var defaultDripBodies = map[string][5]string{
	"en": {
		"Just checking in — are you still looking for a property? I can pull a fresh shortlist for you.",
		"A few new listings matching your budget came in today. Want me to send them over?",
		"Prices in the areas you liked are moving fast. Shall I book you a free consultation before they change again?",
		"Our senior consultant has an open slot this week. One quick call and you'll have a full market overview.",
		"I won't keep messaging you — if you ever pick the search back up, just write here and we'll continue where we stopped.",
	},
	"fa": {
		"فقط خواستم احوالی بپرسم — هنوز دنبال ملک هستید؟ می‌توانم یک لیست تازه برایتان آماده کنم.",
		"امروز چند ملک جدید مطابق بودجه شما اضافه شد. مایلید برایتان بفرستم؟",
		"قیمت‌ها در مناطق مورد علاقه شما به سرعت در حال تغییر است. یک مشاوره رایگان رزرو کنم؟",
		"مشاور ارشد ما این هفته وقت آزاد دارد. با یک تماس کوتاه دید کاملی از بازار پیدا می‌کنید.",
		"دیگر مزاحم نمی‌شوم — هر وقت دوباره به دنبال ملک بودید، همین‌جا پیام بدهید تا ادامه دهیم.",
	},
	"ar": {
		"أردت فقط الاطمئنان — هل ما زلت تبحث عن عقار؟ يمكنني تجهيز قائمة جديدة لك.",
		"وصلت اليوم عقارات جديدة ضمن ميزانيتك. هل أرسلها لك؟",
		"الأسعار في المناطق التي أعجبتك تتغير بسرعة. هل أحجز لك استشارة مجانية؟",
		"لدى مستشارنا الأول موعد متاح هذا الأسبوع. مكالمة قصيرة تمنحك صورة كاملة عن السوق.",
		"لن أزعجك بعد الآن — إذا عدت للبحث يومًا، راسلنا هنا وسنكمل من حيث توقفنا.",
	},
	"ru": {
		"Просто уточняю — вы всё ещё ищете недвижимость? Могу подготовить свежую подборку.",
		"Сегодня появились новые объекты в вашем бюджете. Прислать их вам?",
		"Цены в районах, которые вам понравились, быстро растут. Записать вас на бесплатную консультацию?",
		"У нашего старшего консультанта есть свободное окно на этой неделе. Один короткий звонок — и у вас полная картина рынка.",
		"Больше не буду писать — если вернётесь к поиску, просто напишите сюда, и мы продолжим с того же места.",
	},
}

// Ghost nudge copy per language. {{name}} is replaced with the lead's
// display name when known.
var defaultGhostBodies = map[string]string{
	"en": "{{name}}, you went quiet on me 🙂 The options we discussed are still on the table — want me to hold one for you?",
	"fa": "{{name}}، مدتی است خبری از شما نیست 🙂 گزینه‌هایی که صحبت کردیم هنوز موجودند — مایلید یکی را برایتان نگه دارم؟",
	"ar": "{{name}}، انقطعت أخبارك 🙂 الخيارات التي ناقشناها ما زالت متاحة — هل أحجز لك واحدًا منها؟",
	"ru": "{{name}}, вы куда-то пропали 🙂 Варианты, которые мы обсуждали, ещё доступны — придержать один для вас?",
}

// CreateDefaultFollowupTemplates seeds the drip and ghost templates for
// every supported language. Existing rows are left untouched.
func CreateDefaultFollowupTemplates(db *gorm.DB) error {
	for lang, bodies := range defaultDripBodies {
		for stage, body := range bodies {
			tpl := FollowupTemplate{
				Stage:    stage,
				Language: lang,
				Body:     body,
			}
			if err := db.FirstOrCreate(&tpl, "stage = ? AND language = ? AND is_ghost = ?", stage, lang, false).Error; err != nil {
				return err
			}
		}
	}
	for lang, body := range defaultGhostBodies {
		tpl := FollowupTemplate{
			Stage:    0,
			Language: lang,
			Body:     body,
			IsGhost:  true,
		}
		if err := db.FirstOrCreate(&tpl, "language = ? AND is_ghost = ?", lang, true).Error; err != nil {
			return err
		}
	}
	return nil
}
