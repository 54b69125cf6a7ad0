package i18n

import "fmt"

// MessageKey identifies a user-facing message.
type MessageKey int

const (
	MsgExtractionFailed MessageKey = iota
	MsgUnrelated
	MsgServiceUnavailable
	MsgGeneralUnavailable
	MsgGenericError
	MsgDefaultTitle
	MsgBookingConfirmed
	MsgSlotTaken
	MsgAvailabilityUnknown
	MsgInvalidDateTime
	MsgCalendarAPIError
	MsgUnexpectedError

	messageKeyCount
)

var keyNames = map[MessageKey]string{
	MsgExtractionFailed:    "extraction_failed",
	MsgUnrelated:           "unrelated",
	MsgServiceUnavailable:  "service_unavailable",
	MsgGeneralUnavailable:  "general_unavailable",
	MsgGenericError:        "generic_error",
	MsgDefaultTitle:        "default_title",
	MsgBookingConfirmed:    "booking_confirmed",
	MsgSlotTaken:           "slot_taken",
	MsgAvailabilityUnknown: "availability_unknown",
	MsgInvalidDateTime:     "invalid_datetime",
	MsgCalendarAPIError:    "calendar_api_error",
	MsgUnexpectedError:     "unexpected_error",
}

func (k MessageKey) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("message_key(%d)", int(k))
}

// Catalog holds one text per (key, language). Templated entries take
// fmt arguments in the order documented on each key in defaultEntries.
type Catalog struct {
	entries map[MessageKey]map[Language]string
}

// defaultEntries.
//
// MsgBookingConfirmed: date, time, duration minutes, title
// MsgSlotTaken: date, time, existing title, existing start, existing end
// MsgInvalidDateTime: date, time
// MsgCalendarAPIError, MsgUnexpectedError: error detail
var defaultEntries = map[MessageKey]map[Language]string{
	MsgExtractionFailed: {
		English: "❌ I couldn't understand the appointment details. Please include a date and time, for example: \"Meeting tomorrow at 15:00\".",
		Hebrew:  "❌ לא הצלחתי להבין את פרטי הפגישה. אנא ציין תאריך ושעה, לדוגמה: \"פגישה מחר בשעה 15:00\".",
	},
	MsgUnrelated: {
		English: "🙏 Sorry, I can only help with scheduling appointments and questions about scheduling.",
		Hebrew:  "🙏 מצטער, אני יכול לעזור רק בקביעת פגישות ובשאלות על קביעת פגישות.",
	},
	MsgServiceUnavailable: {
		English: "❌ Google Calendar service not configured. Please set up credentials file.",
		Hebrew:  "❌ שירות גוגל קלנדר לא מוגדר. אנא הגדר את קובץ האישורים.",
	},
	MsgGeneralUnavailable: {
		English: "❌ I can't answer questions right now. Please try again later.",
		Hebrew:  "❌ אני לא יכול לענות על שאלות כרגע. אנא נסה שוב מאוחר יותר.",
	},
	MsgGenericError: {
		English: "Sorry, an error occurred. Please try again.",
		Hebrew:  "מצטער, אירעה שגיאה. אנא נסה שוב.",
	},
	MsgDefaultTitle: {
		English: "Appointment",
		Hebrew:  "פגישה",
	},
	MsgBookingConfirmed: {
		English: "✅ Appointment scheduled successfully!\n📅 Date: %s\n🕐 Time: %s\n⏱️ Duration: %d minutes\n📝 Title: %s",
		Hebrew:  "✅ הפגישה נקבעה בהצלחה!\n📅 תאריך: %s\n🕐 שעה: %s\n⏱️ משך: %d דקות\n📝 נושא: %s",
	},
	MsgSlotTaken: {
		English: "⚠️ The slot on %s at %s is already taken by \"%s\" (%s - %s). Please choose another time.",
		Hebrew:  "⚠️ המועד %s בשעה %s כבר תפוס על ידי \"%s\" (%s - %s). אנא בחר שעה אחרת.",
	},
	MsgAvailabilityUnknown: {
		English: "⚠️ I couldn't check the calendar for conflicts right now. Please try again later.",
		Hebrew:  "⚠️ לא הצלחתי לבדוק את היומן כרגע. אנא נסה שוב מאוחר יותר.",
	},
	MsgInvalidDateTime: {
		English: "❌ Invalid date or time (%s %s). Please use a date like 2025-01-31 and a 24-hour time like 14:30.",
		Hebrew:  "❌ תאריך או שעה לא תקינים (%s %s). אנא השתמש בתאריך כמו 2025-01-31 ובשעה בפורמט 24 שעות כמו 14:30.",
	},
	MsgCalendarAPIError: {
		English: "❌ Error scheduling appointment: %s",
		Hebrew:  "❌ שגיאה בקביעת הפגישה: %s",
	},
	MsgUnexpectedError: {
		English: "❌ Unexpected error: %s",
		Hebrew:  "❌ שגיאה לא צפויה: %s",
	},
}

// NewCatalog builds a catalog and verifies that every key has text for
// every language.
func NewCatalog(entries map[MessageKey]map[Language]string) (*Catalog, error) {
	for key := MessageKey(0); key < messageKeyCount; key++ {
		texts, ok := entries[key]
		if !ok {
			return nil, fmt.Errorf("catalog is missing key %s", key)
		}
		for _, lang := range languages {
			if texts[lang] == "" {
				return nil, fmt.Errorf("catalog key %s has no %s text", key, lang)
			}
		}
	}
	return &Catalog{entries: entries}, nil
}

var defaultCatalog = mustCatalog(defaultEntries)

func mustCatalog(entries map[MessageKey]map[Language]string) *Catalog {
	c, err := NewCatalog(entries)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return defaultCatalog
}

// Text returns the message for key in lang.
func (c *Catalog) Text(key MessageKey, lang Language) string {
	return c.entries[key][lang]
}

// Format fills the templated message for key in lang.
func (c *Catalog) Format(key MessageKey, lang Language, args ...any) string {
	return fmt.Sprintf(c.entries[key][lang], args...)
}
