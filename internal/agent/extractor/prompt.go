package extractor

// SystemPrompt instructs the model to pull appointment details out of a message.
const SystemPrompt = `You extract appointment details from WhatsApp messages for a calendar assistant.

Return, through the record_appointment tool:
- title: a short title for the appointment. Use the subject the sender gives
  ("dentist", "meeting with Dana"); if none is given use a generic word for meeting.
- date: the appointment date as YYYY-MM-DD. Resolve relative dates ("tomorrow",
  "next Monday", "מחר") against the reference date you are given.
- time: the start time as 24-hour HH:MM ("3pm" is 15:00, "בשעה 10" is 10:00).
- duration_minutes: the length in minutes if the sender states one, otherwise 60.
- notes: any other useful detail from the message, or an empty string.

Rules:
- Never invent a date or time that the message does not imply.
- If the message has no usable date or time, leave that field empty.
- Call record_appointment exactly once.`

// UserPromptTemplate receives the reference date, the message, and optional
// language and correction sections.
const UserPromptTemplate = `## Reference Date

Today is %s (%s).

## Message

%s
%s`
