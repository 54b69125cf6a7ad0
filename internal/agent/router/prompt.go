package router

// SystemPrompt instructs the model to classify one inbound message.
const SystemPrompt = `You route incoming WhatsApp messages for an appointment scheduling assistant.

Classify the message into exactly one category:

- APPOINTMENT: the sender wants to book, schedule or set up a meeting or appointment
  at some date or time ("Schedule a meeting for tomorrow at 3pm", "קבע לי פגישה מחר בשעה 10").
- GENERAL: a question about scheduling itself, such as how booking works, what
  information is needed, or opening hours ("How do I book an appointment?").
- UNRELATED: anything else (weather, jokes, news, small talk).

Also report the language the message is written in: "hebrew" or "english".
If the message mixes languages, pick the one most of the words are in.

Call the classify_message tool exactly once. Do not answer the message.`

// UserPromptTemplate wraps the raw message.
const UserPromptTemplate = "Classify this message:\n\n%s"
