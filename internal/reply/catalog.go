package reply

import "github.com/wolfman30/dental-concierge/internal/language"

type entry struct {
	ar, en string
	// requires lists placeholders that must all be set for ar/en to be
	// used; otherwise the partial texts are returned.
	requires             []Placeholder
	partialAR, partialEN string
}

var builtin = map[Slug]entry{
	SlugGreeting: {
		ar: "مرحباً! أنا مساعد الحجوزات الذكي للعيادة. أستطيع مساعدتك في حجز، تعديل، أو إلغاء المواعيد بالإضافة إلى الإجابة عن أسئلة الخدمات.",
		en: "Hello! I'm the concierge for your dental clinic. I can book, reschedule, or cancel appointments and answer service questions.",
	},
	SlugMissingFields: {
		ar: "لإتمام طلبك أحتاج إلى: {{missing_fields}}.",
		en: "To complete your request I still need: {{missing_fields}}.",
	},
	SlugBookingConfirmed: {
		ar:        "تم حجز موعدك مع الدكتور {{doctor_name}} في فرع {{clinic_branch}} يوم {{appointment_date}} الساعة {{appointment_time}}.",
		en:        "Your appointment with Dr. {{doctor_name}} at {{clinic_branch}} is booked for {{appointment_date}} at {{appointment_time}}.",
		requires:  []Placeholder{DoctorName, ClinicBranch, AppointmentDate, AppointmentTime},
		partialAR: "تم تسجيل طلبك، برجاء تزويدنا باسم الطبيب والفرع ووقت الموعد لتأكيد الحجز.",
		partialEN: "I have your request noted. Please share the doctor, branch, and preferred time so I can confirm the booking.",
	},
	SlugBookingCancelled: {
		ar: "تم إلغاء الموعد بنجاح. نأمل نراك قريباً!",
		en: "Your appointment has been cancelled successfully. We hope to see you soon!",
	},
	SlugBookingRescheduled: {
		ar:        "تم تعديل موعدك ليكون يوم {{appointment_date}} الساعة {{appointment_time}}.",
		en:        "Your appointment has been rescheduled to {{appointment_date}} at {{appointment_time}}.",
		requires:  []Placeholder{AppointmentDate, AppointmentTime},
		partialAR: "سأقوم بتعديل الموعد، هل يمكنك تحديد اليوم والوقت الجديدين؟",
		partialEN: "I'll reschedule that for you. Could you share the new date and time?",
	},
	SlugBookingReminder: {
		ar:        "تذكير: موعدك غداً مع الدكتور {{doctor_name}} في فرع {{clinic_branch}} الساعة {{appointment_time}}.",
		en:        "Reminder: Your appointment is tomorrow with Dr. {{doctor_name}} at the {{clinic_branch}} branch at {{appointment_time}}.",
		requires:  []Placeholder{DoctorName, ClinicBranch, AppointmentTime},
		partialAR: "تذكير: لديك موعد قريب في العيادة. يرجى التواصل معنا لتأكيد التفاصيل.",
		partialEN: "Reminder: You have an upcoming appointment at the clinic. Please contact us to confirm the details.",
	},
	SlugInquiry: {
		ar: "يسرّنا الرد على استفساراتك حول خدمات العيادة مثل التنظيف، التقويم، الزراعة أو التبييض. كيف يمكنني المساعدة؟",
		en: "I'm happy to help with any questions about our services such as cleaning, orthodontics, implants, or whitening. How can I assist you today?",
	},
	SlugFollowUp: {
		ar: "كيف تشعر بعد علاجك الأخير؟ هل ترغب بموعد متابعة؟",
		en: "How are you feeling after your recent treatment? Would you like to schedule a follow-up visit?",
	},
	SlugOrthodontics: {
		ar: "العلاج التقويمي يحتاج تقييم أولي مع الطبيب المختص، هل ترغب بتحديد موعد فحص؟",
		en: "Orthodontic treatment requires an initial assessment with a specialist. Would you like me to schedule a consultation?",
	},
	SlugUnknown: {
		ar: "لم أفهم طلبك تماماً، هل يمكنك التوضيح أكثر أو تحديد الخدمة التي تحتاجها؟",
		en: "I didn't fully catch that. Could you clarify what you need help with?",
	},
	SlugAlternatives: {
		ar: "الأطباء المتاحون في {{clinic_branch}} يوم {{appointment_date}}: {{doctor_names}}.",
		en: "Available doctors at {{clinic_branch}} on {{appointment_date}}: {{doctor_names}}.",
	},
	SlugFailureDoctorNotFound: {
		ar: "لم أتمكن من العثور على الطبيب المطلوب في هذا الفرع. هل تود اختيار طبيب آخر؟",
		en: "I couldn't find that doctor at this branch. Would you like to choose another doctor?",
	},
	SlugFailureNotAvailable: {
		ar: "الطبيب غير متاح في هذا اليوم. هل تود اختيار يوم آخر أو طبيب آخر؟",
		en: "The doctor isn't available on that day. Would you like another day or another doctor?",
	},
	SlugFailureOutsideHours: {
		ar: "الموعد المطلوب خارج ساعات العمل. العيادة تعمل من الأحد إلى الخميس من ٩ صباحاً حتى ٩ مساءً.",
		en: "That time is outside working hours. The clinic is open Sunday to Thursday, 9 AM to 9 PM.",
	},
	SlugFailureAlreadyBooked: {
		ar:        "الدكتور {{doctor_name}} غير متاح الساعة {{appointment_time}}. هل تود أن أقترح موعداً آخر؟",
		en:        "Dr. {{doctor_name}} is not available at {{appointment_time}}. Would you like me to suggest another slot?",
		requires:  []Placeholder{DoctorName, AppointmentTime},
		partialAR: "هذا الموعد محجوز مسبقاً. هل تود اختيار وقت آخر؟",
		partialEN: "That slot is already booked. Would you like another time?",
	},
	SlugFailureVerification: {
		ar: "لم أتمكن من التحقق من بيانات الحجز. يرجى التأكد من الاسم ورقم الجوال ورمز التحقق.",
		en: "I couldn't verify the booking details. Please check the name, phone number, and verification code.",
	},
	SlugFailureGeneral: {
		ar: "تعذر إتمام الطلب حالياً، يرجى المحاولة لاحقاً أو التواصل مع موظف الاستقبال.",
		en: "I couldn't complete the booking right now. Please try again later or call the clinic.",
	},
}

// Builtin returns the built-in template for slug in locale. Conditional
// entries fall back to their partial text when a required value is unset.
func Builtin(slug Slug, locale language.Locale, values Values) (string, bool) {
	e, ok := builtin[slug]
	if !ok {
		return "", false
	}
	full := values.Has(e.requires...)
	if locale == language.Arabic {
		if !full {
			return e.partialAR, true
		}
		return e.ar, true
	}
	if !full {
		return e.partialEN, true
	}
	return e.en, true
}
